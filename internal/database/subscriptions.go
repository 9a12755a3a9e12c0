package database

import (
	"sync"
)

type subscriber struct {
	table       Table
	communityID int64
	handler     func(InsertEvent)
}

// subscriberSet fans insert events out to the subscribers whose table and
// community match.
type subscriberSet struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[int64]*subscriber
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[int64]*subscriber)}
}

func (s *subscriberSet) add(table Table, communityID int64, handler func(InsertEvent)) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs[id] = &subscriber{table: table, communityID: communityID, handler: handler}

	return &subscription{remove: func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}}
}

func (s *subscriberSet) dispatch(evt InsertEvent) {
	s.mu.RLock()
	matched := make([]func(InsertEvent), 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.table == evt.Table && sub.communityID == evt.CommunityID {
			matched = append(matched, sub.handler)
		}
	}
	s.mu.RUnlock()

	for _, handler := range matched {
		handler(evt)
	}
}

func (s *subscriberSet) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

type subscription struct {
	once   sync.Once
	remove func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.remove)
}
