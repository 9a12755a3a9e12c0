package handlers

import (
	"net/http"
	"strconv"

	"agri-compath/internal/utils"
	"agri-compath/internal/websocket"
)

// HandleWebSocket opens a live view of one community for the connecting
// user. The view lives until the connection closes.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 1. Authenticate using JWT from query parameter
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			s.writeError(w, r, utils.NewUnauthorizedError("missing authentication token"))
			return
		}
		claims, err := s.Auth.ValidateToken(tokenString)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		session := claims.Session()

		communityID, err := strconv.ParseInt(r.URL.Query().Get("communityId"), 10, 64)
		if err != nil || communityID <= 0 {
			s.writeError(w, r, utils.NewAppError(utils.ErrInvalidInput, "invalid communityId", err))
			return
		}
		if _, err := s.DB.GetCommunity(r.Context(), communityID); err != nil {
			s.writeError(w, r, err)
			return
		}

		// 2. Upgrade connection
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already replied with an HTTP error.
			s.Logger.Warn("websocket upgrade failed", "user_id", session.UserID, "error", err)
			return
		}

		// 3. Open the view, then register the client that carries it
		client := &websocket.Client{
			Hub:         s.Hub,
			Session:     session,
			CommunityID: communityID,
			Router:      s.Engine,
			Conn:        conn,
			Send:        make(chan []byte, 256),
			Logger:      s.Logger,
		}
		client.View = s.Engine.OpenView(session, communityID, client)
		client.Hub.Register <- client

		s.Logger.Info("live view connected", "user_id", session.UserID, "community_id", communityID)

		// 4. Start read and write pumps
		go client.WritePump()
		go client.ReadPump()
	}
}
