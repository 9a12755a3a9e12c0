package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"agri-compath/internal/utils"

	"github.com/lib/pq"
)

// Channels raised by the notify_row_inserted trigger.
const (
	PostInsertChannel        = "post_inserted"
	RecordShareInsertChannel = "record_share_inserted"
)

var channelTables = map[string]Table{
	PostInsertChannel:        PostsTable,
	RecordShareInsertChannel: RecordSharesTable,
}

// Notifier listens for insert notifications on a dedicated PostgreSQL
// connection and hands them to matching subscribers.
type Notifier struct {
	listener     *pq.Listener
	subs         *subscriberSet
	metrics      *utils.MetricsCollector
	logger       *slog.Logger
	pingInterval time.Duration
}

func NewNotifier(connectionString string, metrics *utils.MetricsCollector, logger *slog.Logger) (*Notifier, error) {
	n := &Notifier{
		subs:         newSubscriberSet(),
		metrics:      metrics,
		logger:       logger.With("component", "notifier"),
		pingInterval: 90 * time.Second,
	}
	n.listener = pq.NewListener(connectionString, 10*time.Second, time.Minute, n.onListenerEvent)

	for channel := range channelTables {
		if err := n.listener.Listen(channel); err != nil {
			n.listener.Close()
			return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
		}
	}

	return n, nil
}

// SubscribeInserts implements InsertSource.
func (n *Notifier) SubscribeInserts(table Table, communityID int64, handler func(InsertEvent)) Subscription {
	return n.subs.add(table, communityID, handler)
}

// Run delivers notifications until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	n.logger.Info("insert notifier started")
	ticker := time.NewTicker(n.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("insert notifier stopped")
			return

		case notification, ok := <-n.listener.Notify:
			if !ok {
				return
			}
			if notification == nil {
				// Reconnected. Inserts made during the outage are not replayed.
				n.logger.Warn("listener connection re-established, notifications may have been missed")
				continue
			}

			evt, err := decodeNotification(notification.Channel, notification.Extra)
			if err != nil {
				n.logger.Error("dropping malformed notification", "channel", notification.Channel, "error", err)
				continue
			}

			n.metrics.InsertEventReceived(string(evt.Table))
			n.subs.dispatch(evt)

		case <-ticker.C:
			if err := n.listener.Ping(); err != nil {
				n.logger.Warn("listener ping failed", "error", err)
			}
		}
	}
}

func (n *Notifier) Close() error {
	return n.listener.Close()
}

func (n *Notifier) onListenerEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		n.logger.Debug("listener connected")
	case pq.ListenerEventDisconnected:
		n.logger.Warn("listener disconnected", "error", err)
	case pq.ListenerEventReconnected:
		n.logger.Info("listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		n.logger.Error("listener connection attempt failed", "error", err)
	}
}

func decodeNotification(channel, payload string) (InsertEvent, error) {
	table, ok := channelTables[channel]
	if !ok {
		return InsertEvent{}, fmt.Errorf("unknown channel %q", channel)
	}

	var evt InsertEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return InsertEvent{}, fmt.Errorf("invalid payload: %w", err)
	}
	if evt.ID == 0 || evt.CommunityID == 0 {
		return InsertEvent{}, fmt.Errorf("payload missing id or community_id: %s", payload)
	}

	evt.Table = table
	return evt, nil
}
