// Package feed turns a community's posts and record shares into grouped
// discussion topics.
package feed

import (
	"fmt"
	"sort"
	"time"

	"agri-compath/internal/models"
)

// ItemKind tags the variants of Item on the wire.
type ItemKind string

const (
	KindPost   ItemKind = "post"
	KindRecord ItemKind = "record"
)

// ItemKey identifies an item across both collections. Post and record share
// ids come from different sequences, so the kind is part of the key.
type ItemKey struct {
	Kind ItemKind `json:"type"`
	ID   int64    `json:"id"`
}

func (k ItemKey) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}

// Item is either a PostItem or a RecordItem.
type Item interface {
	Key() ItemKey
	Created() time.Time
	isItem()
}

type PostItem struct {
	Post *models.Post
}

type RecordItem struct {
	Share *models.RecordShare
}

func (i PostItem) Key() ItemKey       { return ItemKey{Kind: KindPost, ID: i.Post.ID} }
func (i PostItem) Created() time.Time { return i.Post.CreatedAt }
func (PostItem) isItem()              {}

func (i RecordItem) Key() ItemKey       { return ItemKey{Kind: KindRecord, ID: i.Share.ID} }
func (i RecordItem) Created() time.Time { return i.Share.CreatedAt }
func (RecordItem) isItem()              {}

// parentKey returns the key of the post a reply answers. Record shares and
// topic posts have no parent.
func parentKey(item Item) (ItemKey, bool) {
	switch it := item.(type) {
	case PostItem:
		if it.Post.ParentID == nil {
			return ItemKey{}, false
		}
		return ItemKey{Kind: KindPost, ID: *it.Post.ParentID}, true
	case RecordItem:
		return ItemKey{}, false
	default:
		panic(fmt.Sprintf("feed: unknown item type %T", item))
	}
}

// SortItems returns a copy of items ordered by creation time. Ties are broken
// by kind and id so the result does not depend on the input order.
func SortItems(items []Item) []Item {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Created().Equal(b.Created()) {
			return a.Created().Before(b.Created())
		}
		ka, kb := a.Key(), b.Key()
		if ka.Kind != kb.Kind {
			return ka.Kind == KindPost
		}
		return ka.ID < kb.ID
	})
	return sorted
}

// Merge normalizes posts and record shares into one chronological list.
func Merge(posts []*models.Post, shares []*models.RecordShare) []Item {
	items := make([]Item, 0, len(posts)+len(shares))
	for _, post := range posts {
		items = append(items, PostItem{Post: post})
	}
	for _, share := range shares {
		items = append(items, RecordItem{Share: share})
	}
	return SortItems(items)
}
