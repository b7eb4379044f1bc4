package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klugworks/klugstore/internal/api"
	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/engine"
)

type ResolutionHandler struct {
	eng Engine
}

func NewResolutionHandler(eng Engine) *ResolutionHandler {
	return &ResolutionHandler{eng: eng}
}

type ResolveRequest struct {
	Action         string `json:"action"`
	RevisedContent string `json:"revised_content,omitempty"`
}

type ResolveResponse struct {
	State       string          `json:"state"`
	Entry       *EntryResponse  `json:"entry,omitempty"`
	Ingest      *IngestResponse `json:"ingest,omitempty"`
	DroppedTags []string        `json:"dropped_tags,omitempty"`
}

func (h *ResolutionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "resolution id is required")
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	action, err := domain.ParseResolutionAction(req.Action)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out, err := h.eng.Resolve(r.Context(), engine.ResolveInput{
		ResolutionID:   id,
		Action:         action,
		RevisedContent: req.RevisedContent,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ResolveResponse{State: string(out.State), DroppedTags: out.DroppedTags}
	if out.Entry != nil {
		resp.Entry = entryToResponse(out.Entry)
	}
	if out.Ingest != nil {
		resp.Ingest = ingestToResponse(out.Ingest)
	}
	api.Success(w, http.StatusOK, resp)
}
