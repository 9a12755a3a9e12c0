package feed

import (
	"math/rand"
	"testing"

	"agri-compath/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupAttachesRepliesAndPromotesOrphans(t *testing.T) {
	items := []Item{
		topicPost(1, 0, "T1"),
		replyPost(2, 1, 1),
		replyPost(3, 99, 2),
	}

	g := Group(items)

	require.Len(t, g.Topics, 2)

	topic, ok := g.Find(ItemKey{Kind: KindPost, ID: 1})
	require.True(t, ok)
	assert.False(t, topic.IsOrphan)
	assert.Equal(t, []int64{2}, replyIDs(topic))

	orphan, ok := g.Find(ItemKey{Kind: KindPost, ID: 3})
	require.True(t, ok)
	assert.True(t, orphan.IsOrphan)
	assert.Empty(t, orphan.Replies)

	_, ok = g.Find(ItemKey{Kind: KindPost, ID: 2})
	assert.False(t, ok, "a reply with a loaded parent must not become a topic")
}

func TestGroupPutsAlertsBeforeRecentActivity(t *testing.T) {
	a := topicPost(1, 5, "A")
	b := alertPost(2, 1)

	g := Group([]Item{a, b})

	assert.Equal(t, []ItemKey{b.Key(), a.Key()}, topicKeys(g))
}

func TestGroupOrdersByLastActivity(t *testing.T) {
	items := []Item{
		topicPost(1, 0, "old topic, new reply"),
		topicPost(2, 10, "newer topic"),
		recordShare(1, 5),
		replyPost(3, 1, 20),
	}

	g := Group(items)

	assert.Equal(t, []ItemKey{
		{Kind: KindPost, ID: 1},
		{Kind: KindPost, ID: 2},
		{Kind: KindRecord, ID: 1},
	}, topicKeys(g))
	assert.Equal(t, at(20), g.Topics[0].LastActivity())
}

func TestGroupBreaksActivityTiesByID(t *testing.T) {
	g := Group([]Item{topicPost(2, 3, ""), topicPost(1, 3, "")})

	assert.Equal(t, []ItemKey{{Kind: KindPost, ID: 1}, {Kind: KindPost, ID: 2}}, topicKeys(g))
}

func TestGroupNeverUsesRecordSharesAsParents(t *testing.T) {
	share := recordShare(7, 0)
	reply := replyPost(8, 7, 1)

	g := Group([]Item{share, reply})

	require.Len(t, g.Topics, 2)
	orphan, ok := g.Find(reply.Key())
	require.True(t, ok)
	assert.True(t, orphan.IsOrphan)

	shareTopic, ok := g.Find(share.Key())
	require.True(t, ok)
	assert.Empty(t, shareTopic.Replies)
}

func TestGroupAttachesLaterRepliesToAnOrphan(t *testing.T) {
	g := Group([]Item{replyPost(5, 99, 0), replyPost(6, 5, 1)})

	require.Len(t, g.Topics, 1)
	assert.True(t, g.Topics[0].IsOrphan)
	assert.Equal(t, []int64{6}, replyIDs(g.Topics[0]))
}

func TestGroupEmpty(t *testing.T) {
	g := Group(nil)
	assert.Empty(t, g.Topics)
	assert.Empty(t, g.Flatten())
}

func TestReplyOrderIgnoresArrivalOrder(t *testing.T) {
	parent := topicPost(1, 0, "T")
	replies := []Item{
		replyPost(2, 1, 4),
		replyPost(3, 1, 1),
		replyPost(4, 1, 3),
		replyPost(5, 1, 2),
		replyPost(6, 1, 2),
	}
	want := []int64{3, 5, 6, 4, 2}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		arrived := append([]Item{}, replies...)
		rng.Shuffle(len(arrived), func(a, b int) { arrived[a], arrived[b] = arrived[b], arrived[a] })
		// The parent itself may also arrive after its replies.
		arrived = append(arrived, parent)

		g := Group(arrived)
		require.Len(t, g.Topics, 1)
		assert.Equal(t, want, replyIDs(g.Topics[0]))
	}
}

// randomItems builds a community with topics, record shares, alerts and
// replies to present, missing and reply parents.
func randomItems(rng *rand.Rand) []Item {
	n := rng.Intn(30)
	items := make([]Item, 0, n)
	for id := int64(1); id <= int64(n); id++ {
		minutes := rng.Intn(60)
		switch rng.Intn(5) {
		case 0:
			items = append(items, recordShare(id, minutes))
		case 1, 2:
			items = append(items, replyPost(id, int64(rng.Intn(n+5)+1), minutes))
		case 3:
			items = append(items, alertPost(id, minutes))
		default:
			items = append(items, topicPost(id, minutes, "T"))
		}
	}
	return items
}

func TestGroupProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iteration := 0; iteration < 300; iteration++ {
		items := randomItems(rng)
		g := Group(items)

		// Idempotent over its own flattening.
		assert.Equal(t, g, Group(g.Flatten()))

		// Every item appears exactly once.
		seen := make(map[ItemKey]int)
		for _, item := range g.Flatten() {
			seen[item.Key()]++
		}
		require.Len(t, seen, len(items))
		assert.Equal(t, len(items), g.Len())
		for key, count := range seen {
			assert.Equal(t, 1, count, key.String())
		}

		// Alerts first.
		alertsDone := false
		for _, topic := range g.Topics {
			if !topic.IsAlert() {
				alertsDone = true
				continue
			}
			assert.False(t, alertsDone, "alert topic after a non-alert topic")
		}

		roots := make(map[ItemKey]bool)
		for _, item := range items {
			if _, isReply := parentKey(item); !isReply {
				roots[item.Key()] = true
			}
		}

		for _, topic := range g.Topics {
			_, isReply := parentKey(topic.Item)
			if !isReply {
				// Non-replies are topics, never orphans.
				assert.False(t, topic.IsOrphan)
				assert.True(t, roots[topic.Key()])
				continue
			}
			// Replies only stand alone as orphans of a missing parent.
			assert.True(t, topic.IsOrphan)
			parent, _ := parentKey(topic.Item)
			assert.False(t, roots[parent])
		}

		// Replies to a present topic sit under it in chronological order.
		for _, topic := range g.Topics {
			for i, reply := range topic.Replies {
				if !topic.IsOrphan {
					assert.Equal(t, topic.Key(), ItemKey{Kind: KindPost, ID: *reply.ParentID})
				}
				if i > 0 {
					assert.False(t, reply.CreatedAt.Before(topic.Replies[i-1].CreatedAt))
				}
			}
		}
	}
}

func TestGroupDoesNotModifyInput(t *testing.T) {
	items := []Item{replyPost(2, 1, 1), topicPost(1, 0, "T")}
	before := append([]Item{}, items...)

	Group(items)

	assert.Equal(t, before, items)
}

func TestMergeInterleavesCollections(t *testing.T) {
	posts := []*models.Post{
		{ID: 1, CreatedAt: at(0)},
		{ID: 2, CreatedAt: at(10)},
	}
	shares := []*models.RecordShare{
		{ID: 1, CreatedAt: at(5)},
		{ID: 2, CreatedAt: at(10)},
	}

	items := Merge(posts, shares)

	keys := make([]ItemKey, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.Key())
	}
	assert.Equal(t, []ItemKey{
		{Kind: KindPost, ID: 1},
		{Kind: KindRecord, ID: 1},
		{Kind: KindPost, ID: 2},
		{Kind: KindRecord, ID: 2},
	}, keys)
}
