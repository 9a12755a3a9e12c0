package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"agri-compath/internal/api"
	"agri-compath/internal/database"
	"agri-compath/internal/engine"
	"agri-compath/internal/engine/actors"
	"agri-compath/internal/feed"
	"agri-compath/internal/middleware"
	"agri-compath/internal/models"
	"agri-compath/internal/utils"
	"agri-compath/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	db          *database.MemoryDB
	http        *httptest.Server
	community   *models.Community
	member      models.Session
	memberToken string
	adminToken  string
	auth        *middleware.Authenticator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := utils.NewMetricsCollector(prometheus.NewRegistry())

	db := database.NewMemoryDB()
	community := &models.Community{Name: "rice growers"}
	require.NoError(t, db.CreateCommunity(context.Background(), community))

	system := actor.NewActorSystem()
	fetcher := feed.NewFetcher(db, metrics, logger)
	poster := feed.NewPoster(db, metrics, logger)
	eng := engine.NewEngine(system, fetcher, db, metrics, logger)
	hub := websocket.NewHub(eng, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	auth, err := middleware.NewAuthenticator("test-secret", logger)
	require.NoError(t, err)

	server := NewServer(eng, hub, fetcher, poster, db, auth, middleware.DefaultCORSConfig(nil), metrics, logger)
	ts := httptest.NewServer(server.Routes(nil))
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})

	member := models.Session{UserID: uuid.New(), DisplayName: "Taro", Role: models.RoleMember}
	memberToken, err := auth.GenerateToken(member.UserID, member.DisplayName, member.Role)
	require.NoError(t, err)
	adminToken, err := auth.GenerateToken(uuid.New(), "Co-op office", models.RoleAdmin)
	require.NoError(t, err)

	return &testServer{
		db:          db,
		http:        ts,
		community:   community,
		member:      member,
		memberToken: memberToken,
		adminToken:  adminToken,
		auth:        auth,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, ts.http.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (ts *testServer) path(suffix string) string {
	return "/communities/" + itoa(ts.community.ID) + suffix
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]interface{}](t, resp)["status"])
}

func TestRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, ts.path("/topics"), "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, ts.path("/topics"), "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, utils.ErrInvalidToken, decode[api.ErrorResponse](t, resp).Code)
}

func TestPostAndSnapshot(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, ts.path("/posts"), ts.memberToken, api.CreatePostRequest{Title: "Seedlings", Content: "When do you sow?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	topic := decode[models.Post](t, resp)
	assert.Equal(t, ts.member.UserID, topic.UserID)

	resp = ts.do(t, http.MethodPost, ts.path("/posts"), ts.memberToken, api.CreatePostRequest{Content: "Mid April", ParentID: &topic.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/admin"+ts.path("/alerts"), ts.adminToken, api.BroadcastRequest{Title: "Frost", Content: "Cover beds tonight"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	alert := decode[models.Post](t, resp)
	assert.True(t, alert.IsAlert)

	resp = ts.do(t, http.MethodGet, ts.path("/topics"), ts.memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[feed.TopicListView](t, resp)
	assert.Equal(t, feed.StateLoaded, list.Status)
	require.Len(t, list.Topics, 2)
	assert.Equal(t, alert.ID, list.Topics[0].Item.ID)
	assert.True(t, list.Topics[0].IsAlert)
	assert.Equal(t, topic.ID, list.Topics[1].Item.ID)
	assert.Equal(t, 1, list.Topics[1].ReplyCount)

	resp = ts.do(t, http.MethodGet, ts.path("/topics/post/"+itoa(topic.ID)), ts.memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	thread := decode[feed.ThreadView](t, resp)
	require.Len(t, thread.Topic.Replies, 1)
	assert.Equal(t, "Mid April", thread.Topic.Replies[0].Content)
}

func TestRejectedWrites(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/admin"+ts.path("/alerts"), ts.memberToken, api.BroadcastRequest{Title: "Frost", Content: "!"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	missing := int64(12345)
	resp = ts.do(t, http.MethodPost, ts.path("/posts"), ts.memberToken, api.CreatePostRequest{Content: "hello?", ParentID: &missing})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, utils.ErrParentNotFound, decode[api.ErrorResponse](t, resp).Code)

	resp = ts.do(t, http.MethodPost, "/communities/999/posts", ts.memberToken, api.CreatePostRequest{Content: "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, utils.ErrCommunityNotFound, decode[api.ErrorResponse](t, resp).Code)

	req, err := http.NewRequest(http.MethodPost, ts.http.URL+ts.path("/posts"), strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.memberToken)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestSnapshotErrors(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/communities/999/topics", ts.memberToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, ts.path("/topics/comment/1"), ts.memberToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, ts.path("/topics/post/1"), ts.memberToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ts.db.FailOn("GetCommunityPosts", errors.New("connection reset"))
	resp = ts.do(t, http.MethodGet, ts.path("/topics"), ts.memberToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, utils.ErrLoadFailed, decode[api.ErrorResponse](t, resp).Code)
}

func TestRecordShareAppearsAsTopic(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/records", ts.memberToken, api.CreateRecordRequest{
		Date: "2024/06/01",
		Type: "harvest",
		Crop: "rice",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	record := decode[models.Record](t, resp)
	assert.Equal(t, "2024-06-01", record.Date)

	resp = ts.do(t, http.MethodPost, ts.path("/shares"), ts.memberToken, api.ShareRecordRequest{RecordID: record.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	share := decode[models.RecordShare](t, resp)

	resp = ts.do(t, http.MethodGet, ts.path("/topics"), ts.memberToken, nil)
	list := decode[feed.TopicListView](t, resp)
	require.Len(t, list.Topics, 1)
	assert.Equal(t, feed.KindRecord, list.Topics[0].Item.Type)
	assert.Equal(t, share.ID, list.Topics[0].Item.ID)
	require.NotNil(t, list.Topics[0].Item.Record)
	assert.Equal(t, "rice", list.Topics[0].Item.Record.Crop)
}

func TestAdminCreatesCommunity(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/admin/communities", ts.memberToken, api.CreateCommunityRequest{Name: "orchards"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/admin/communities", ts.adminToken, api.CreateCommunityRequest{Name: "orchards"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	community := decode[models.Community](t, resp)

	resp = ts.do(t, http.MethodGet, "/communities/"+itoa(community.ID)+"/topics", ts.memberToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func dialView(t *testing.T, ts *testServer, token string) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws?token=" + token + "&communityId=" + itoa(ts.community.ID)
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readUntil(t *testing.T, conn *ws.Conn, match func(actors.ViewUpdate) bool) actors.ViewUpdate {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var update actors.ViewUpdate
		require.NoError(t, conn.ReadJSON(&update))
		if match(update) {
			return update
		}
	}
}

func TestWebSocketLiveView(t *testing.T) {
	ts := newTestServer(t)
	conn := dialView(t, ts, ts.memberToken)

	readUntil(t, conn, func(u actors.ViewUpdate) bool {
		return u.Topics != nil && u.Topics.Status == feed.StateLoaded
	})
	assert.Equal(t, 2, ts.db.SubscriberCount())

	resp := ts.do(t, http.MethodPost, ts.path("/posts"), ts.memberToken, api.CreatePostRequest{Title: "Weeds", Content: "Any tips?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	topic := decode[models.Post](t, resp)

	update := readUntil(t, conn, func(u actors.ViewUpdate) bool {
		return u.Topics != nil && len(u.Topics.Topics) == 1
	})
	assert.Equal(t, topic.ID, update.Topics.Topics[0].Item.ID)

	require.NoError(t, conn.WriteJSON(websocket.Command{
		Action: websocket.ActionOpenThread,
		Topic:  &feed.ItemKey{Kind: feed.KindPost, ID: topic.ID},
	}))
	update = readUntil(t, conn, func(u actors.ViewUpdate) bool { return u.Event == actors.EventThread })
	require.NotNil(t, update.Thread)
	assert.Equal(t, topic.ID, update.Thread.Topic.Item.ID)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "dance"}))
	update = readUntil(t, conn, func(u actors.ViewUpdate) bool { return u.Event == actors.EventError })
	assert.Contains(t, update.Error, "dance")

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return ts.db.SubscriberCount() == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws?token=bogus&communityId=" + itoa(ts.community.ID)
	_, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
