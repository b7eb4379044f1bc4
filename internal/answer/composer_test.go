package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klugworks/klugstore/internal/domain"
)

type fakeChatAPI struct {
	lastReq openai.ChatCompletionRequest
	reply   string
	err     error
	calls   int
}

func (f *fakeChatAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func TestComposeNoEntriesSkipsModelCall(t *testing.T) {
	api := &fakeChatAPI{reply: "should not be used"}
	c := NewComposerWithAPI(api, "test-model")

	got, err := c.Compose(context.Background(), "what is the deploy window?", nil)
	require.NoError(t, err)
	assert.Equal(t, Fallback, got)
	assert.Zero(t, api.calls)
}

func TestComposeIncludesEntriesInPrompt(t *testing.T) {
	api := &fakeChatAPI{reply: "The deploy window is Tuesday."}
	c := NewComposerWithAPI(api, "test-model")

	got, err := c.Compose(context.Background(), "when do we deploy?", []*domain.Entry{
		{Content: "The deploy window is Tuesday.", Author: "alice", SourceURL: "https://team.example/c/ops/p1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "The deploy window is Tuesday.", got)

	require.Len(t, api.lastReq.Messages, 1)
	prompt := api.lastReq.Messages[0].Content
	assert.Contains(t, prompt, "when do we deploy?")
	assert.Contains(t, prompt, "The deploy window is Tuesday.")
	assert.Contains(t, prompt, "alice")
	assert.Contains(t, prompt, "https://team.example/c/ops/p1")
}

func TestComposeAPIFailure(t *testing.T) {
	api := &fakeChatAPI{err: errors.New("rate limited")}
	c := NewComposerWithAPI(api, "test-model")

	_, err := c.Compose(context.Background(), "q", []*domain.Entry{{Content: "fact"}})
	require.Error(t, err)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeUnavailable, de.Code)
}

func TestComposeEmptyReplyFallsBack(t *testing.T) {
	api := &fakeChatAPI{reply: "   "}
	c := NewComposerWithAPI(api, "test-model")

	got, err := c.Compose(context.Background(), "q", []*domain.Entry{{Content: "fact"}})
	require.NoError(t, err)
	assert.Equal(t, Fallback, got)
}
