package feed

import (
	"sort"
	"time"

	"agri-compath/internal/models"
)

// OrphanMarker prefixes the content of a reply whose parent is not loaded.
const OrphanMarker = "[reply destination unknown] "

// Topic is a top-level item with the replies that answer it.
type Topic struct {
	Item     Item
	Replies  []*models.Post
	IsOrphan bool
}

func (t Topic) Key() ItemKey {
	return t.Item.Key()
}

// IsAlert reports whether the topic is an alert post. Record shares never are.
func (t Topic) IsAlert() bool {
	if post, ok := t.Item.(PostItem); ok {
		return post.Post.IsAlert
	}
	return false
}

// LastActivity is the creation time of the newest reply, or of the topic
// itself when it has none.
func (t Topic) LastActivity() time.Time {
	if n := len(t.Replies); n > 0 {
		return t.Replies[n-1].CreatedAt
	}
	return t.Item.Created()
}

// Grouping is the result of Group. It is not modified after construction.
type Grouping struct {
	Topics []Topic
	index  map[ItemKey]int
}

// Find returns the topic with the given key.
func (g Grouping) Find(key ItemKey) (Topic, bool) {
	i, ok := g.index[key]
	if !ok {
		return Topic{}, false
	}
	return g.Topics[i], true
}

// Flatten returns every item of the grouping, topics and replies, as they
// were given to Group.
func (g Grouping) Flatten() []Item {
	var items []Item
	for _, topic := range g.Topics {
		items = append(items, topic.Item)
		for _, reply := range topic.Replies {
			items = append(items, PostItem{Post: reply})
		}
	}
	return items
}

// Len counts the items in the grouping.
func (g Grouping) Len() int {
	n := 0
	for _, topic := range g.Topics {
		n += 1 + len(topic.Replies)
	}
	return n
}

// Group partitions items into topics and replies. Items that are not replies
// open a topic; replies join their parent's topic, or become an orphan topic
// of their own when the parent is absent. Alert topics come first, then
// topics by most recent activity.
func Group(items []Item) Grouping {
	sorted := SortItems(items)

	topics := make([]Topic, 0, len(sorted))
	index := make(map[ItemKey]int, len(sorted))

	for _, item := range sorted {
		if _, isReply := parentKey(item); isReply {
			continue
		}
		index[item.Key()] = len(topics)
		topics = append(topics, Topic{Item: item, Replies: []*models.Post{}})
	}

	for _, item := range sorted {
		parent, isReply := parentKey(item)
		if !isReply {
			continue
		}
		reply := item.(PostItem).Post
		if i, ok := index[parent]; ok {
			topics[i].Replies = append(topics[i].Replies, reply)
			continue
		}
		index[item.Key()] = len(topics)
		topics = append(topics, Topic{Item: item, Replies: []*models.Post{}, IsOrphan: true})
	}

	sort.SliceStable(topics, func(i, j int) bool {
		ai, aj := topics[i].IsAlert(), topics[j].IsAlert()
		if ai != aj {
			return ai
		}
		return topics[i].LastActivity().After(topics[j].LastActivity())
	})

	for i, topic := range topics {
		index[topic.Key()] = i
	}
	return Grouping{Topics: topics, index: index}
}
