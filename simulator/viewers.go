package simulator

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// runViewers holds NumViewers live views open and counts the updates they
// receive.
func (s *Simulator) runViewers(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < s.config.NumViewers; i++ {
		user := s.users[i%len(s.users)]
		communityID := user.Communities[0]

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.watch(ctx, user, communityID)
		}()
	}
	wg.Wait()
}

func (s *Simulator) watch(ctx context.Context, user *SimulatedUser, communityID int64) {
	endpoint := strings.Replace(s.config.EngineURL, "http", "ws", 1) + "/ws?" + url.Values{
		"token":       {user.Token},
		"communityId": {strconv.FormatInt(communityID, 10)},
	}.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		s.logger.Warn("failed to open live view", "community_id", communityID, "error", err)
		return
	}

	s.stats.mu.Lock()
	s.stats.OpenViews++
	s.stats.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			s.stats.mu.Lock()
			s.stats.UpdatesReceived++
			s.stats.mu.Unlock()
		}
	}()

	select {
	case <-ctx.Done():
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
		<-done
	case <-done:
		conn.Close()
	}

	s.stats.mu.Lock()
	s.stats.OpenViews--
	s.stats.mu.Unlock()
}
