package handlers

import (
	"context"
	"net/http"

	"agri-compath/internal/api"
	"agri-compath/internal/feed"
	"agri-compath/internal/middleware"
	"agri-compath/internal/models"
	"agri-compath/internal/utils"
)

// HandleCreatePost handles topic and reply creation. Open live views pick
// the new post up from the insert notification.
func (s *Server) HandleCreatePost() http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, session models.Session) {
		communityID, err := pathID(r, "communityId")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req api.CreatePostRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		post, err := s.Poster.CreatePost(r.Context(), session, communityID, feed.NewPost{
			Title:    req.Title,
			Content:  req.Content,
			ParentID: req.ParentID,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, post)
	})
}

// HandleShareRecord surfaces one of the caller's records in a community.
func (s *Server) HandleShareRecord() http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, session models.Session) {
		communityID, err := pathID(r, "communityId")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req api.ShareRecordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		share, err := s.Poster.ShareRecord(r.Context(), session, communityID, req.RecordID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, share)
	})
}

// HandleCreateRecord logs a farm record for the caller.
func (s *Server) HandleCreateRecord() http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, session models.Session) {
		var req api.CreateRecordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		record, err := s.Poster.CreateRecord(r.Context(), session, feed.NewRecord{
			Date:   req.Date,
			Type:   models.RecordType(req.Type),
			Crop:   req.Crop,
			Detail: req.Detail,
			Amount: req.Amount,
			Memo:   req.Memo,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, record)
	})
}

// HandleBroadcast posts an alert topic. Admins only.
func (s *Server) HandleBroadcast() http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, session models.Session) {
		communityID, err := pathID(r, "communityId")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req api.BroadcastRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		post, err := s.Poster.Broadcast(r.Context(), session, communityID, req.Title, req.Content)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, post)
	})
}

// HandleCreateCommunity opens a community. Admins only.
func (s *Server) HandleCreateCommunity() http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, session models.Session) {
		var req api.CreateCommunityRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		community, err := s.Poster.CreateCommunity(r.Context(), session, req.Name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, community)
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, session models.Session)

// authenticated hands the request's session to h and bounds the request
// context by RequestTimeout.
func (s *Server) authenticated(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			s.writeError(w, r, utils.NewUnauthorizedError("no session"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()
		h(w, r.WithContext(ctx), session)
	}
}
