package actors

import (
	stdctx "context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"agri-compath/internal/database"
	"agri-compath/internal/feed"
	"agri-compath/internal/models"
	"agri-compath/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Message types for CommunityViewActor
type (
	// ShowTopicsMsg switches the view to the topic list.
	ShowTopicsMsg struct{}

	// OpenThreadMsg switches the view to one topic with all of its replies.
	OpenThreadMsg struct {
		Topic feed.ItemKey `json:"topic"`
	}

	// ReloadMsg fetches the whole community again, e.g. after a failed load.
	ReloadMsg struct{}

	// GetTopicsMsg is answered with a *feed.TopicListView.
	GetTopicsMsg struct{}

	// GetThreadMsg is answered with a *feed.ThreadView or an *utils.AppError.
	GetThreadMsg struct {
		Topic feed.ItemKey `json:"topic"`
	}

	itemsLoadedMsg struct {
		seq   int
		items []feed.Item
		err   error
	}

	insertNotifiedMsg struct {
		event database.InsertEvent
	}

	itemFetchedMsg struct {
		event database.InsertEvent
		item  feed.Item
		err   error
	}
)

// Publisher receives every rendered update of a view.
type Publisher interface {
	Publish(payload []byte)
}

// ViewUpdate is what a live view pushes to its client.
type ViewUpdate struct {
	Event  string              `json:"event"`
	Topics *feed.TopicListView `json:"topics,omitempty"`
	Thread *feed.ThreadView    `json:"thread,omitempty"`
	Error  string              `json:"error,omitempty"`
}

const (
	EventTopics = "topics"
	EventThread = "thread"
	EventError  = "error"
)

// CommunityViewActor owns the items of one open community view. It
// subscribes to inserts when started and releases the subscriptions when
// stopped; all state changes happen inside Receive.
type CommunityViewActor struct {
	session     models.Session
	communityID int64
	root        *actor.RootContext
	fetcher     *feed.Fetcher
	source      database.InsertSource
	publisher   Publisher
	metrics     *utils.MetricsCollector
	logger      *slog.Logger

	items         map[feed.ItemKey]feed.Item
	grouping      feed.Grouping
	state         feed.LoadState
	thread        *feed.ItemKey
	loadSeq       int
	subscriptions []database.Subscription
	ctx           stdctx.Context
	cancel        stdctx.CancelFunc
}

func NewCommunityViewActor(
	session models.Session,
	communityID int64,
	root *actor.RootContext,
	fetcher *feed.Fetcher,
	source database.InsertSource,
	publisher Publisher,
	metrics *utils.MetricsCollector,
	logger *slog.Logger,
) actor.Actor {
	return &CommunityViewActor{
		session:     session,
		communityID: communityID,
		root:        root,
		fetcher:     fetcher,
		source:      source,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger.With("community_id", communityID, "user_id", session.UserID),
		items:       make(map[feed.ItemKey]feed.Item),
		grouping:    feed.Group(nil),
		state:       feed.StateLoading,
	}
}

func (a *CommunityViewActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.handleStarted(context)

	case *actor.Stopping:
		a.handleStopping()

	case *itemsLoadedMsg:
		a.handleItemsLoaded(msg)

	case *insertNotifiedMsg:
		a.handleInsertNotified(context, msg)

	case *itemFetchedMsg:
		a.handleItemFetched(msg)

	case *ShowTopicsMsg:
		a.thread = nil
		a.publish()

	case *OpenThreadMsg:
		topic := msg.Topic
		a.thread = &topic
		a.publish()

	case *ReloadMsg:
		a.load(context.Self())
		a.publish()

	case *GetTopicsMsg:
		context.Respond(feed.RenderTopicList(a.communityID, a.state, a.grouping))

	case *GetThreadMsg:
		view, err := feed.RenderThread(a.communityID, a.state, a.grouping, msg.Topic)
		if err != nil {
			context.Respond(err)
			return
		}
		context.Respond(view)

	case *actor.Stopped, *actor.Restarting:

	default:
		a.logger.Debug("CommunityViewActor: unknown message", "type", fmt.Sprintf("%T", msg))
	}
}

func (a *CommunityViewActor) handleStarted(context actor.Context) {
	a.ctx, a.cancel = stdctx.WithCancel(stdctx.Background())
	a.metrics.ViewOpened()

	// Subscribe before loading so no insert falls between the two.
	self := context.Self()
	notify := func(evt database.InsertEvent) {
		a.root.Send(self, &insertNotifiedMsg{event: evt})
	}
	a.subscriptions = []database.Subscription{
		a.source.SubscribeInserts(database.PostsTable, a.communityID, notify),
		a.source.SubscribeInserts(database.RecordSharesTable, a.communityID, notify),
	}

	a.logger.Info("community view opened")
	a.load(self)
	a.publish()
}

func (a *CommunityViewActor) handleStopping() {
	for _, sub := range a.subscriptions {
		sub.Unsubscribe()
	}
	a.subscriptions = nil
	if a.cancel != nil {
		a.cancel()
	}
	a.metrics.ViewClosed()
	a.logger.Info("community view closed")
}

// load starts a full fetch. Results of an older load are dropped when they
// arrive after a newer one was started.
func (a *CommunityViewActor) load(self *actor.PID) {
	a.loadSeq++
	a.state = feed.StateLoading

	seq, ctx, fetcher, root, communityID := a.loadSeq, a.ctx, a.fetcher, a.root, a.communityID
	go func() {
		items, err := fetcher.Fetch(ctx, communityID)
		root.Send(self, &itemsLoadedMsg{seq: seq, items: items, err: err})
	}()
}

func (a *CommunityViewActor) handleItemsLoaded(msg *itemsLoadedMsg) {
	if msg.seq != a.loadSeq {
		return
	}
	if msg.err != nil {
		a.state = feed.StateLoadFailed
		a.logger.Warn("community view load failed", "error", msg.err)
		a.publish()
		return
	}

	for _, item := range msg.items {
		a.items[item.Key()] = item
	}
	a.state = feed.StateLoaded
	a.regroup()
	a.publish()
}

func (a *CommunityViewActor) handleInsertNotified(context actor.Context, msg *insertNotifiedMsg) {
	key, ok := keyFor(msg.event)
	if !ok {
		return
	}
	if _, known := a.items[key]; known {
		return
	}

	self, ctx, fetcher, root, evt := context.Self(), a.ctx, a.fetcher, a.root, msg.event
	go func() {
		item, err := fetcher.FetchOne(ctx, evt)
		root.Send(self, &itemFetchedMsg{event: evt, item: item, err: err})
	}()
}

func (a *CommunityViewActor) handleItemFetched(msg *itemFetchedMsg) {
	if msg.err != nil {
		a.metrics.IncrementErrors()
		a.logger.Warn("failed to fetch inserted item", "table", msg.event.Table, "id", msg.event.ID, "error", msg.err)
		return
	}

	key := msg.item.Key()
	if _, known := a.items[key]; known {
		return
	}
	a.items[key] = msg.item

	startTime := time.Now()
	a.regroup()
	a.metrics.AddOperationLatency("regroup_on_insert", time.Since(startTime))
	a.publish()
}

func (a *CommunityViewActor) regroup() {
	items := make([]feed.Item, 0, len(a.items))
	for _, item := range a.items {
		items = append(items, item)
	}
	a.grouping = feed.Group(items)
}

func (a *CommunityViewActor) publish() {
	update := ViewUpdate{Event: EventTopics}
	if a.thread != nil {
		update.Event = EventThread
		view, err := feed.RenderThread(a.communityID, a.state, a.grouping, *a.thread)
		if err != nil {
			update.Error = err.Error()
		} else {
			update.Thread = view
		}
	} else {
		update.Topics = feed.RenderTopicList(a.communityID, a.state, a.grouping)
	}

	payload, err := json.Marshal(update)
	if err != nil {
		a.logger.Error("failed to encode view update", "error", err)
		return
	}
	a.publisher.Publish(payload)
}

func keyFor(evt database.InsertEvent) (feed.ItemKey, bool) {
	switch evt.Table {
	case database.PostsTable:
		return feed.ItemKey{Kind: feed.KindPost, ID: evt.ID}, true
	case database.RecordSharesTable:
		return feed.ItemKey{Kind: feed.KindRecord, ID: evt.ID}, true
	}
	return feed.ItemKey{}, false
}
