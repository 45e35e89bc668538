package assist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/config"
)

// ErrDisabled is returned by NopRewriter.
var ErrDisabled = errors.New("assist: no rewriter configured")

const (
	rewriteTimeout = 15 * time.Second
	systemPrompt   = "You write short copy for link-in-bio pages. Reply with the text only."
)

// Rewriter turns a prompt into a short piece of text.
type Rewriter interface {
	Rewrite(ctx context.Context, prompt string) (string, error)
}

type NopRewriter struct{}

func (NopRewriter) Rewrite(context.Context, string) (string, error) { return "", ErrDisabled }

// OpenAIRewriter calls the chat completion API.
type OpenAIRewriter struct {
	client *openai.Client
	model  string
	logger *zap.SugaredLogger
}

// NewRewriter returns an OpenAI backed rewriter, or NopRewriter when no API
// key is configured.
func NewRewriter(cfg config.OpenAI, logger *zap.SugaredLogger) Rewriter {
	if cfg.APIKey == "" {
		logger.Infow("text assist disabled, OPENAI_API_KEY not set")
		return NopRewriter{}
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	logger.Infow("text assist enabled", "model", cfg.Model)
	return &OpenAIRewriter{client: openai.NewClientWithConfig(oc), model: cfg.Model, logger: logger}
}

func (o *OpenAIRewriter) Rewrite(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rewriteTimeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxCompletionTokens: 120,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	o.logger.Debugw("rewrite completed", "model", o.model, "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
