package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/klugworks/klugstore/internal/api"
	"github.com/klugworks/klugstore/internal/api/middleware"
	"github.com/klugworks/klugstore/internal/chunker"
	"github.com/klugworks/klugstore/internal/domain"
	"github.com/klugworks/klugstore/internal/engine"
)

// Engine is the knowledge engine surface the HTTP layer consumes.
type Engine interface {
	Ingest(ctx context.Context, input engine.IngestInput) (*engine.IngestResult, error)
	Query(ctx context.Context, input engine.QueryInput) (*engine.QueryOutput, error)
	List(ctx context.Context, input engine.ListInput) (*engine.ListPage, error)
	Delete(ctx context.Context, filter domain.Filter, privileged bool) (int64, error)
	MarkOutdated(ctx context.Context, id string) (*domain.Entry, error)
	Resolve(ctx context.Context, input engine.ResolveInput) (*engine.ResolveResult, error)
	BulkImport(ctx context.Context, input engine.ImportInput, privileged bool) (*engine.ImportResult, error)
}

type EntryHandler struct {
	eng Engine
}

func NewEntryHandler(eng Engine) *EntryHandler {
	return &EntryHandler{eng: eng}
}

// FilterRequest is the wire form of an entry filter. Dates accept
// RFC 3339 or a plain YYYY-MM-DD; "date" is shorthand for one UTC day.
type FilterRequest struct {
	Source    string   `json:"source,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
	Author    string   `json:"author,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	DateFrom  string   `json:"date_from,omitempty"`
	DateTo    string   `json:"date_to,omitempty"`
	Date      string   `json:"date,omitempty"`
}

func (f FilterRequest) toDomain() (domain.Filter, error) {
	filter := domain.Filter{
		Source:    domain.Source(f.Source),
		SourceURL: f.SourceURL,
		Author:    f.Author,
		Tags:      f.Tags,
	}

	if f.Date != "" {
		day, err := parseDate(f.Date)
		if err != nil {
			return domain.Filter{}, err
		}
		filter.DateFrom, filter.DateTo = domain.DayRange(day)
		return filter, nil
	}

	if f.DateFrom != "" {
		from, err := parseDate(f.DateFrom)
		if err != nil {
			return domain.Filter{}, err
		}
		filter.DateFrom = from
	}
	if f.DateTo != "" {
		to, err := parseDate(f.DateTo)
		if err != nil {
			return domain.Filter{}, err
		}
		filter.DateTo = to
	}
	return filter, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			"date must be RFC 3339 or YYYY-MM-DD", domain.ErrInvalidFilter)
	}
	return t, nil
}

type EntryResponse struct {
	ID             string            `json:"id"`
	Content        string            `json:"content"`
	Author         string            `json:"author"`
	Source         string            `json:"source"`
	SourceURL      string            `json:"source_url,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	EmbeddingModel string            `json:"embedding_model"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

func entryToResponse(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:             e.ID,
		Content:        e.Content,
		Author:         e.Author,
		Source:         string(e.Source),
		SourceURL:      e.SourceURL,
		Tags:           e.Tags,
		Metadata:       e.AdditionalMetadata,
		EmbeddingModel: e.EmbeddingModel,
		CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type ConflictResponse struct {
	ResolutionID  string   `json:"resolution_id"`
	Kind          string   `json:"kind"`
	CandidateText string   `json:"candidate_text"`
	ExistingIDs   []string `json:"existing_ids"`
	BestScore     float32  `json:"best_score"`
	Options       []string `json:"options"`
	State         string   `json:"state"`
}

func conflictToResponse(c *domain.ConflictDescriptor) *ConflictResponse {
	options := make([]string, len(c.Options))
	for i, o := range c.Options {
		options[i] = string(o)
	}
	return &ConflictResponse{
		ResolutionID:  c.ResolutionID,
		Kind:          string(c.Kind),
		CandidateText: c.CandidateText,
		ExistingIDs:   c.ExistingIDs,
		BestScore:     c.BestScore,
		Options:       options,
		State:         string(c.State),
	}
}

type IngestItemResponse struct {
	Status   string            `json:"status"`
	Entry    *EntryResponse    `json:"entry,omitempty"`
	Conflict *ConflictResponse `json:"conflict,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

type IngestResponse struct {
	Items     []IngestItemResponse `json:"items"`
	Created   int                  `json:"created"`
	Conflicts int                  `json:"conflicts"`
	Failed    int                  `json:"failed"`
}

func ingestToResponse(res *engine.IngestResult) *IngestResponse {
	out := &IngestResponse{
		Items:     make([]IngestItemResponse, len(res.Items)),
		Created:   res.Created,
		Conflicts: res.Conflicts,
		Failed:    res.Failed,
	}
	for i, item := range res.Items {
		wire := IngestItemResponse{Status: string(item.Status), Reason: item.Reason}
		if item.Entry != nil {
			wire.Entry = entryToResponse(item.Entry)
		}
		if item.Conflict != nil {
			wire.Conflict = conflictToResponse(item.Conflict)
		}
		out.Items[i] = wire
	}
	return out
}

type IngestRequest struct {
	Content   string            `json:"content"`
	Author    string            `json:"author"`
	SourceURL string            `json:"source_url"`
	Tags      []string          `json:"tags"`
	Format    string            `json:"format"`
	Metadata  map[string]string `json:"metadata"`
}

func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Author == "" {
		api.Error(w, http.StatusBadRequest, "author is required")
		return
	}

	result, err := h.eng.Ingest(r.Context(), engine.IngestInput{
		Content:   req.Content,
		Author:    req.Author,
		Source:    domain.SourceInteractive,
		SourceURL: req.SourceURL,
		Tags:      req.Tags,
		Format:    chunker.ParseFormat(req.Format),
		Metadata:  req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Created == 0 {
		// nothing landed: every chunk conflicted or failed
		status = http.StatusAccepted
	}
	api.Success(w, status, ingestToResponse(result))
}

type EntryListResponse struct {
	Items   []*EntryResponse `json:"items"`
	Cursor  string           `json:"cursor,omitempty"`
	HasMore bool             `json:"has_more"`
}

func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, err := FilterRequest{
		Source:    q.Get("source"),
		SourceURL: q.Get("source_url"),
		Author:    q.Get("author"),
		Tags:      q["tag"],
		DateFrom:  q.Get("date_from"),
		DateTo:    q.Get("date_to"),
		Date:      q.Get("date"),
	}.toDomain()
	if err != nil {
		api.HandleError(w, err)
		return
	}

	limit := 20
	if limitStr := q.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.eng.List(r.Context(), engine.ListInput{
		Filter: filter,
		Cursor: q.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*EntryResponse, len(page.Items))
	for i, e := range page.Items {
		items[i] = entryToResponse(e)
	}
	api.Success(w, http.StatusOK, EntryListResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

type DeleteRequest struct {
	Filter FilterRequest `json:"filter"`
}

type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	filter, err := req.Filter.toDomain()
	if err != nil {
		api.HandleError(w, err)
		return
	}

	count, err := h.eng.Delete(r.Context(), filter, middleware.IsPrivileged(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, DeleteResponse{Deleted: count})
}

// MarkOutdated flags an entry for review without changing its content.
func (h *EntryHandler) MarkOutdated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "entry id is required")
		return
	}

	entry, err := h.eng.MarkOutdated(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, entryToResponse(entry))
}

type ImportItemRequest struct {
	Content   string            `json:"content"`
	SourceURL string            `json:"source_url"`
	Tags      []string          `json:"tags"`
	Metadata  map[string]string `json:"metadata"`
}

type ImportRequest struct {
	Author string              `json:"author"`
	Format string              `json:"format"`
	Items  []ImportItemRequest `json:"items"`
}

type ImportResponse struct {
	Created   int `json:"created"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`
	Rejected  int `json:"rejected"`
}

func (h *EntryHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Author == "" {
		api.Error(w, http.StatusBadRequest, "author is required")
		return
	}

	items := make([]engine.ImportItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = engine.ImportItem{
			Content:   item.Content,
			SourceURL: item.SourceURL,
			Tags:      item.Tags,
			Metadata:  item.Metadata,
		}
	}

	result, err := h.eng.BulkImport(r.Context(), engine.ImportInput{
		Author: req.Author,
		Format: req.Format,
		Items:  items,
	}, middleware.IsPrivileged(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ImportResponse{
		Created:   result.Created,
		Conflicts: result.Conflicts,
		Failed:    result.Failed,
		Rejected:  result.Rejected,
	})
}
