package feed

import (
	"io"
	"log/slog"
	"time"

	"agri-compath/internal/models"
	"agri-compath/internal/utils"

	"github.com/prometheus/client_golang/prometheus"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func topicPost(id int64, minutes int, title string) PostItem {
	post := &models.Post{ID: id, CommunityID: 1, Content: "topic", CreatedAt: at(minutes)}
	if title != "" {
		post.Title = &title
	}
	return PostItem{Post: post}
}

func replyPost(id, parent int64, minutes int) PostItem {
	return PostItem{Post: &models.Post{ID: id, CommunityID: 1, Content: "reply", ParentID: &parent, CreatedAt: at(minutes)}}
}

func alertPost(id int64, minutes int) PostItem {
	item := topicPost(id, minutes, "alert")
	item.Post.IsAlert = true
	return item
}

func recordShare(id int64, minutes int) RecordItem {
	return RecordItem{Share: &models.RecordShare{
		ID:          id,
		CommunityID: 1,
		RecordID:    id,
		CreatedAt:   at(minutes),
		Record:      models.Record{ID: id, Date: "2024-06-01", Type: models.RecordHarvest, Crop: "rice"},
	}}
}

func topicKeys(g Grouping) []ItemKey {
	keys := make([]ItemKey, 0, len(g.Topics))
	for _, topic := range g.Topics {
		keys = append(keys, topic.Key())
	}
	return keys
}

func replyIDs(topic Topic) []int64 {
	ids := make([]int64, 0, len(topic.Replies))
	for _, reply := range topic.Replies {
		ids = append(ids, reply.ID)
	}
	return ids
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *utils.MetricsCollector {
	return utils.NewMetricsCollector(prometheus.NewRegistry())
}
