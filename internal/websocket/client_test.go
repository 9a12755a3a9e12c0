package websocket

import (
	"testing"

	"agri-compath/internal/engine/actors"
	"agri-compath/internal/feed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	msg, err := ParseCommand([]byte(`{"action":"show_topics"}`))
	require.NoError(t, err)
	assert.IsType(t, &actors.ShowTopicsMsg{}, msg)

	msg, err = ParseCommand([]byte(`{"action":"open_thread","topic":{"type":"post","id":12}}`))
	require.NoError(t, err)
	assert.Equal(t, &actors.OpenThreadMsg{Topic: feed.ItemKey{Kind: feed.KindPost, ID: 12}}, msg)

	msg, err = ParseCommand([]byte(`{"action":"reload"}`))
	require.NoError(t, err)
	assert.IsType(t, &actors.ReloadMsg{}, msg)
}

func TestParseCommandRejectsBadInput(t *testing.T) {
	for _, input := range []string{
		`not json`,
		`{"action":"delete_everything"}`,
		`{"action":"open_thread"}`,
		`{"action":"open_thread","topic":{"type":"comment","id":1}}`,
	} {
		_, err := ParseCommand([]byte(input))
		assert.Error(t, err, input)
	}
}
