package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klugworks/klugstore/internal/domain"
)

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", domain.ErrEmptyContent, http.StatusBadRequest},
		{"underspecified filter", domain.ErrUnderspecifiedFilter, http.StatusBadRequest},
		{"not found", domain.ErrEntryNotFound, http.StatusNotFound},
		{"resolution not found", domain.ErrResolutionNotFound, http.StatusNotFound},
		{"unauthorized", domain.ErrCapabilityRequired, http.StatusUnauthorized},
		{"unavailable", domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable},
		{"consistency", domain.ErrVectorOrphan, http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped domain error", fmt.Errorf("context: %w", domain.ErrEntryNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainErrorToHTTP(tt.err))
		})
	}
}

func TestHandleErrorIncludesCode(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, domain.ErrCapabilityRequired)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ErrCodeUnauthorized, body.Code)
	assert.NotEmpty(t, body.Error)
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, map[string]string{"id": "e1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{"id": "e1"}, body.Data)
}
