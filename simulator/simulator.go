package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"agri-compath/internal/api"
	"agri-compath/internal/middleware"
	"agri-compath/internal/models"

	"github.com/google/uuid"
)

type SimConfig struct {
	NumUsers       int
	NumCommunities int
	// NumViewers live views are held open for the whole run.
	NumViewers     int
	SimulationTime time.Duration
	TickInterval   time.Duration
	// Frequencies are per user per hour, alerts per community per hour.
	TopicFrequency float64
	ReplyFrequency float64
	ShareFrequency float64
	AlertFrequency float64
	ZipfS          float64
	EngineURL      string
	JWTSecret      string
}

type SimulationStats struct {
	mu              sync.RWMutex
	StartTime       time.Time
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	AverageLatency  time.Duration
	TotalTopics     int
	TotalReplies    int
	TotalShares     int
	TotalAlerts     int
	OpenViews       int
	UpdatesReceived int64
}

// SimulatedUser is a community member with a session token minted for the run.
type SimulatedUser struct {
	Session     models.Session
	Token       string
	Communities []int64
}

type Simulator struct {
	config      SimConfig
	stats       *SimulationStats
	auth        *middleware.Authenticator
	users       []*SimulatedUser
	admin       *SimulatedUser
	communities []int64
	// Topic post IDs per community, for replies.
	topics map[int64][]int64
	client *http.Client
	logger *slog.Logger
	mu     sync.RWMutex
}

func NewSimulator(config SimConfig, logger *slog.Logger) (*Simulator, error) {
	if config.NumUsers < 1 || config.NumCommunities < 1 {
		return nil, fmt.Errorf("need at least one user and one community")
	}
	if config.ZipfS <= 1 {
		return nil, fmt.Errorf("zipf exponent must be greater than 1, got %v", config.ZipfS)
	}
	if config.TickInterval <= 0 {
		config.TickInterval = 500 * time.Millisecond
	}
	auth, err := middleware.NewAuthenticator(config.JWTSecret, logger)
	if err != nil {
		return nil, err
	}

	return &Simulator{
		config: config,
		stats:  &SimulationStats{StartTime: time.Now()},
		auth:   auth,
		topics: make(map[int64][]int64),
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("component", "simulator"),
	}, nil
}

// Run sets up users and communities, then posts and watches until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("starting simulation", "users", s.config.NumUsers, "communities", s.config.NumCommunities, "viewers", s.config.NumViewers)

	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.SimulateActivities(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runViewers(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	return nil
}

func (s *Simulator) initialize(ctx context.Context) error {
	s.logger.Info("phase 1: minting sessions")
	if err := s.createUsers(); err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}

	s.logger.Info("phase 2: creating communities")
	if err := s.createCommunities(ctx); err != nil {
		return fmt.Errorf("failed to create communities: %w", err)
	}

	s.logger.Info("phase 3: assigning memberships")
	s.assignMemberships()
	return nil
}

func (s *Simulator) createUsers() error {
	mint := func(name string, role models.Role) (*SimulatedUser, error) {
		session := models.Session{UserID: uuid.New(), DisplayName: name, Role: role}
		token, err := s.auth.GenerateToken(session.UserID, session.DisplayName, session.Role)
		if err != nil {
			return nil, err
		}
		return &SimulatedUser{Session: session, Token: token}, nil
	}

	admin, err := mint("co-op office", models.RoleAdmin)
	if err != nil {
		return err
	}
	s.admin = admin

	s.users = make([]*SimulatedUser, 0, s.config.NumUsers)
	for i := 0; i < s.config.NumUsers; i++ {
		user, err := mint(fmt.Sprintf("farmer_%d", i), models.RoleMember)
		if err != nil {
			return err
		}
		s.users = append(s.users, user)
	}
	return nil
}

func (s *Simulator) createCommunities(ctx context.Context) error {
	s.communities = make([]int64, 0, s.config.NumCommunities)
	for i := 0; i < s.config.NumCommunities; i++ {
		name := fmt.Sprintf("%s growers %d", crops[rand.Intn(len(crops))], i)

		var community models.Community
		if err := s.makeRequest(ctx, http.MethodPost, "/admin/communities", s.admin.Token, api.CreateCommunityRequest{Name: name}, &community); err != nil {
			return err
		}
		s.communities = append(s.communities, community.ID)
		s.logger.Debug("community created", "community_id", community.ID, "name", name)
	}
	return nil
}

// assignMemberships gives each user a Zipf-distributed number of communities,
// so most farmers are active in one or two.
func (s *Simulator) assignMemberships() {
	n := len(s.communities)
	var zipf *rand.Zipf
	if n > 1 {
		zipf = rand.NewZipf(rand.New(rand.NewSource(time.Now().UnixNano())), s.config.ZipfS, 1, uint64(n-1))
	}

	for _, user := range s.users {
		joins := 1
		if zipf != nil {
			joins = int(zipf.Uint64()) + 1
		}
		available := make([]int64, n)
		copy(available, s.communities)
		rand.Shuffle(n, func(i, j int) { available[i], available[j] = available[j], available[i] })
		user.Communities = available[:joins]
	}
}

// makeRequest sends data as JSON and decodes a successful response into out.
// Error responses are returned as errors carrying the service's code.
func (s *Simulator) makeRequest(ctx context.Context, method, endpoint, token string, data, out interface{}) error {
	var body io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.EngineURL+endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.recordRequestMetrics(start, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		json.NewDecoder(resp.Body).Decode(&apiErr)
		err = fmt.Errorf("%s %s failed with status %d: %s %s", method, endpoint, resp.StatusCode, apiErr.Code, apiErr.Message)
		s.recordRequestMetrics(start, err)
		return err
	}

	s.recordRequestMetrics(start, nil)
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) recordRequestMetrics(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	latency := time.Since(start)
	s.stats.TotalRequests++
	if err != nil {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}

	totalLatency := s.stats.AverageLatency * time.Duration(s.stats.TotalRequests-1)
	s.stats.AverageLatency = (totalLatency + latency) / time.Duration(s.stats.TotalRequests)
}

func (s *Simulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			s.logger.Info("simulation metrics",
				"elapsed", time.Since(s.stats.StartTime).Round(time.Second).String(),
				"req_per_sec", fmt.Sprintf("%.2f", m.RequestsPerSecond),
				"avg_latency", m.AverageLatency.String(),
				"topics", m.TotalTopics,
				"replies", m.TotalReplies,
				"shares", m.TotalShares,
				"alerts", m.TotalAlerts,
				"open_views", m.OpenViews,
				"updates", m.UpdatesReceived,
				"errors", m.ErrorCount,
			)
		}
	}
}

// SimulationMetrics holds the metrics of the simulation
type SimulationMetrics struct {
	TotalUsers        int
	TotalCommunities  int
	TotalTopics       int
	TotalReplies      int
	TotalShares       int
	TotalAlerts       int
	OpenViews         int
	UpdatesReceived   int64
	AverageLatency    time.Duration
	ErrorCount        int
	RequestsPerSecond float64
}

// GetMetrics returns the current simulation metrics
func (s *Simulator) GetMetrics() SimulationMetrics {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	elapsed := time.Since(s.stats.StartTime)
	return SimulationMetrics{
		TotalUsers:        len(s.users),
		TotalCommunities:  len(s.communities),
		TotalTopics:       s.stats.TotalTopics,
		TotalReplies:      s.stats.TotalReplies,
		TotalShares:       s.stats.TotalShares,
		TotalAlerts:       s.stats.TotalAlerts,
		OpenViews:         s.stats.OpenViews,
		UpdatesReceived:   s.stats.UpdatesReceived,
		AverageLatency:    s.stats.AverageLatency,
		ErrorCount:        int(s.stats.FailedRequests),
		RequestsPerSecond: float64(s.stats.TotalRequests) / elapsed.Seconds(),
	}
}
