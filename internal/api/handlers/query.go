package handlers

import (
	"context"
	"net/http"

	"encoding/json"

	"github.com/klugworks/klugstore/internal/api"
	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/engine"
)

// Composer turns retrieved entries into a grounded prose answer. Nil
// disables answer composition; queries then return matches only.
type Composer interface {
	Compose(ctx context.Context, question string, entries []*domain.Entry) (string, error)
}

type QueryHandler struct {
	eng      Engine
	composer Composer
}

func NewQueryHandler(eng Engine, composer Composer) *QueryHandler {
	return &QueryHandler{eng: eng, composer: composer}
}

type QueryRequest struct {
	Question string        `json:"question"`
	TopK     int           `json:"top_k"`
	Filter   FilterRequest `json:"filter"`
	Answer   bool          `json:"answer"`
}

type QueryMatchResponse struct {
	Entry *EntryResponse `json:"entry"`
	Score float32        `json:"score"`
}

type QueryResponse struct {
	Matches []QueryMatchResponse `json:"matches"`
	NoMatch bool                 `json:"no_match"`
	Answer  string               `json:"answer,omitempty"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	filter, err := req.Filter.toDomain()
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out, err := h.eng.Query(r.Context(), engine.QueryInput{
		Question: req.Question,
		TopK:     req.TopK,
		Filter:   filter,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := QueryResponse{
		Matches: make([]QueryMatchResponse, len(out.Matches)),
		NoMatch: out.NoMatch,
	}
	for i, m := range out.Matches {
		resp.Matches[i] = QueryMatchResponse{Entry: entryToResponse(m.Entry), Score: m.Score}
	}

	if req.Answer && h.composer != nil {
		entries := make([]*domain.Entry, len(out.Matches))
		for i, m := range out.Matches {
			entries[i] = m.Entry
		}
		answer, err := h.composer.Compose(r.Context(), req.Question, entries)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		resp.Answer = answer
	}

	api.Success(w, http.StatusOK, resp)
}
