package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"agri-compath/internal/api"
	"agri-compath/internal/models"
)

var (
	crops       = []string{"rice", "wheat", "soybean", "tomato", "cabbage", "onion", "potato", "strawberry"}
	recordTypes = []models.RecordType{
		models.RecordPesticide,
		models.RecordFertilizer,
		models.RecordWork,
		models.RecordHarvest,
		models.RecordAccounting,
	}
	// Farmers type dates in whatever layout they are used to.
	dateLayouts = []string{"2006-01-02", "2006/01/02", "Jan 2, 2006", "01/02/2006"}
	questions   = []string{
		"When do you start transplanting?",
		"Which fertilizer worked best this season?",
		"Anyone seeing aphids already?",
		"How are you handling the late rain?",
		"Looking for a used tiller, any leads?",
	}
)

const numWorkers = 5

// SimulateActivities lets every user act once per tick until ctx is done.
func (s *Simulator) SimulateActivities(ctx context.Context) {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	jobs := make(chan *SimulatedUser, len(s.users))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range jobs {
				s.act(ctx, user)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case <-ticker.C:
			for _, user := range s.users {
				select {
				case jobs <- user:
				default: // Don't block if channel is full
				}
			}
			for _, communityID := range s.communities {
				if s.chance(s.config.AlertFrequency) {
					s.broadcast(ctx, communityID)
				}
			}
		}
	}
}

// chance reports whether an event with the given hourly frequency happens
// in this tick.
func (s *Simulator) chance(perHour float64) bool {
	return rand.Float64() < perHour/3600.0*s.config.TickInterval.Seconds()
}

func (s *Simulator) act(ctx context.Context, user *SimulatedUser) {
	communityID := user.Communities[rand.Intn(len(user.Communities))]

	if s.chance(s.config.TopicFrequency) {
		s.createTopic(ctx, user, communityID)
	}
	if s.chance(s.config.ReplyFrequency) {
		s.reply(ctx, user, communityID)
	}
	if s.chance(s.config.ShareFrequency) {
		s.shareRecord(ctx, user, communityID)
	}
}

func (s *Simulator) createTopic(ctx context.Context, user *SimulatedUser, communityID int64) {
	req := api.CreatePostRequest{
		Title:   fmt.Sprintf("%s notes from %s", crops[rand.Intn(len(crops))], user.Session.DisplayName),
		Content: questions[rand.Intn(len(questions))],
	}

	var post models.Post
	if err := s.makeRequest(ctx, http.MethodPost, communityPath(communityID, "/posts"), user.Token, req, &post); err != nil {
		s.logger.Debug("failed to create topic", "community_id", communityID, "error", err)
		return
	}

	s.mu.Lock()
	s.topics[communityID] = append(s.topics[communityID], post.ID)
	s.mu.Unlock()

	s.stats.mu.Lock()
	s.stats.TotalTopics++
	s.stats.mu.Unlock()
}

func (s *Simulator) reply(ctx context.Context, user *SimulatedUser, communityID int64) {
	s.mu.RLock()
	topics := s.topics[communityID]
	if len(topics) == 0 {
		s.mu.RUnlock()
		return
	}
	// Newer topics draw more replies.
	topicID := topics[len(topics)-1-recentIndex(len(topics))]
	s.mu.RUnlock()

	req := api.CreatePostRequest{
		Content:  fmt.Sprintf("%s here, same on our side.", user.Session.DisplayName),
		ParentID: &topicID,
	}
	if err := s.makeRequest(ctx, http.MethodPost, communityPath(communityID, "/posts"), user.Token, req, nil); err != nil {
		s.logger.Debug("failed to reply", "community_id", communityID, "topic_id", topicID, "error", err)
		return
	}

	s.stats.mu.Lock()
	s.stats.TotalReplies++
	s.stats.mu.Unlock()
}

func recentIndex(n int) int {
	i := int(rand.ExpFloat64() * 2)
	if i >= n {
		return n - 1
	}
	return i
}

func (s *Simulator) shareRecord(ctx context.Context, user *SimulatedUser, communityID int64) {
	day := time.Now().AddDate(0, 0, -rand.Intn(30))
	req := api.CreateRecordRequest{
		Date:   day.Format(dateLayouts[rand.Intn(len(dateLayouts))]),
		Type:   string(recordTypes[rand.Intn(len(recordTypes))]),
		Crop:   crops[rand.Intn(len(crops))],
		Amount: strconv.Itoa(rand.Intn(500)+1) + " kg",
	}

	var record models.Record
	if err := s.makeRequest(ctx, http.MethodPost, "/records", user.Token, req, &record); err != nil {
		s.logger.Debug("failed to log record", "error", err)
		return
	}
	if err := s.makeRequest(ctx, http.MethodPost, communityPath(communityID, "/shares"), user.Token, api.ShareRecordRequest{RecordID: record.ID}, nil); err != nil {
		s.logger.Debug("failed to share record", "record_id", record.ID, "community_id", communityID, "error", err)
		return
	}

	s.stats.mu.Lock()
	s.stats.TotalShares++
	s.stats.mu.Unlock()
}

func (s *Simulator) broadcast(ctx context.Context, communityID int64) {
	req := api.BroadcastRequest{
		Title:   "Weather alert",
		Content: "Frost expected tonight, cover seedbeds.",
	}
	if err := s.makeRequest(ctx, http.MethodPost, "/admin"+communityPath(communityID, "/alerts"), s.admin.Token, req, nil); err != nil {
		s.logger.Debug("failed to broadcast", "community_id", communityID, "error", err)
		return
	}

	s.stats.mu.Lock()
	s.stats.TotalAlerts++
	s.stats.mu.Unlock()
}

func communityPath(communityID int64, suffix string) string {
	return "/communities/" + strconv.FormatInt(communityID, 10) + suffix
}
