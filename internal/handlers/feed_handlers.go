package handlers

import (
	"context"
	"net/http"

	"agri-compath/internal/feed"
	"agri-compath/internal/utils"

	"github.com/gorilla/mux"
)

// HandleTopics returns a snapshot of a community's topic list.
func (s *Server) HandleTopics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		communityID, err := pathID(r, "communityId")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		grouping, err := s.snapshot(r.Context(), communityID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, feed.RenderTopicList(communityID, feed.StateLoaded, grouping))
	}
}

// HandleThread returns a snapshot of one topic with all of its replies.
func (s *Server) HandleThread() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		communityID, err := pathID(r, "communityId")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		itemID, err := pathID(r, "itemId")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		kind := feed.ItemKind(mux.Vars(r)["kind"])
		if kind != feed.KindPost && kind != feed.KindRecord {
			s.writeError(w, r, utils.NewAppError(utils.ErrInvalidInput, "topic type must be post or record", nil))
			return
		}

		grouping, err := s.snapshot(r.Context(), communityID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		view, err := feed.RenderThread(communityID, feed.StateLoaded, grouping, feed.ItemKey{Kind: kind, ID: itemID})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) snapshot(ctx context.Context, communityID int64) (feed.Grouping, error) {
	ctx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	if _, err := s.DB.GetCommunity(ctx, communityID); err != nil {
		return feed.Grouping{}, err
	}
	items, err := s.Fetcher.Fetch(ctx, communityID)
	if err != nil {
		return feed.Grouping{}, err
	}
	return feed.Group(items), nil
}
