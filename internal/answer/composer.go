// Package answer composes a grounded natural-language answer from
// retrieved entries. The model is constrained to the supplied entries;
// an empty or unsupported question yields the fallback answer rather
// than a hallucination.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/klugworks/klugstore/internal/domain"
)

// Fallback is returned when the retrieved entries do not cover the
// question, or when no entries were retrieved at all.
const Fallback = "I don't know the answer to that question."

const promptTemplate = `Based on the following knowledge entries, answer the question: %q

Available knowledge:
%s

Important instructions:
1. Only use information from the provided knowledge entries
2. If the information isn't in the knowledge entries, respond with "I don't know"
3. Don't make up or infer information that isn't explicitly stated
4. If multiple relevant pieces of information exist, combine them into a coherent answer

Answer:`

// API is the chat completion capability the composer consumes.
type API interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Composer turns (question, entries) into prose.
type Composer struct {
	api       API
	model     string
	maxTokens int
}

// NewComposer creates a Composer backed by the OpenAI chat API.
func NewComposer(apiKey, model string) *Composer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Composer{
		api:       openai.NewClient(apiKey),
		model:     model,
		maxTokens: 2048,
	}
}

// NewComposerWithAPI creates a Composer with a custom API (for testing).
func NewComposerWithAPI(api API, model string) *Composer {
	return &Composer{api: api, model: model, maxTokens: 2048}
}

// Compose answers the question from the given entries only. With no
// entries it short-circuits to the fallback without a model call.
func (c *Composer) Compose(ctx context.Context, question string, entries []*domain.Entry) (string, error) {
	if len(entries) == 0 {
		return Fallback, nil
	}

	var contexts strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&contexts, "Entry %d (by %s", i+1, e.Author)
		if e.SourceURL != "" {
			fmt.Fprintf(&contexts, ", %s", e.SourceURL)
		}
		fmt.Fprintf(&contexts, "):\n%s\n\n", e.Content)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(promptTemplate, question, strings.TrimSpace(contexts.String())),
			},
		},
	})
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable,
			"answer composition failed", err)
	}
	if len(resp.Choices) == 0 {
		return Fallback, nil
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Fallback, nil
	}
	return text, nil
}
