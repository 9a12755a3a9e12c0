package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNotification(t *testing.T) {
	evt, err := decodeNotification(PostInsertChannel, `{"id":42,"community_id":7}`)
	require.NoError(t, err)
	assert.Equal(t, InsertEvent{Table: PostsTable, ID: 42, CommunityID: 7}, evt)

	evt, err = decodeNotification(RecordShareInsertChannel, `{"id":3,"community_id":7}`)
	require.NoError(t, err)
	assert.Equal(t, RecordSharesTable, evt.Table)
}

func TestDecodeNotificationRejectsBadInput(t *testing.T) {
	_, err := decodeNotification("comments_inserted", `{"id":1,"community_id":1}`)
	assert.Error(t, err)

	_, err = decodeNotification(PostInsertChannel, `not json`)
	assert.Error(t, err)

	_, err = decodeNotification(PostInsertChannel, `{"id":1}`)
	assert.Error(t, err)
}

func TestSubscriberSetDispatchesToEveryMatch(t *testing.T) {
	subs := newSubscriberSet()
	var first, second int
	a := subs.add(PostsTable, 1, func(InsertEvent) { first++ })
	subs.add(PostsTable, 1, func(InsertEvent) { second++ })

	subs.dispatch(InsertEvent{Table: PostsTable, ID: 10, CommunityID: 1})
	a.Unsubscribe()
	subs.dispatch(InsertEvent{Table: PostsTable, ID: 11, CommunityID: 1})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}
