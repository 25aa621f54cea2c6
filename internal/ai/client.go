// Package ai wraps the generative-text provider behind a small interface.
// The provider is reached through its OpenAI-compatible chat endpoint.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"smart-task-manager/backend/internal/cache"
	"smart-task-manager/backend/internal/config"

	"github.com/mudler/xlog"
	"github.com/sashabaranov/go-openai"
)

var (
	ErrNotConfigured = errors.New("ai provider is not configured")
	ErrEmptyResponse = errors.New("ai provider returned an empty response")
)

// Generator produces text for a prompt. systemInstruction may be empty.
type Generator interface {
	Generate(ctx context.Context, prompt, systemInstruction string) (string, error)
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	completer chatCompleter
	model     string
	breaker   *cache.CircuitBreaker
}

func NewClient(cfg config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return newClient(openai.NewClientWithConfig(clientConfig), cfg.Model), nil
}

func newClient(completer chatCompleter, model string) *Client {
	return &Client{
		completer: completer,
		model:     model,
		breaker:   cache.NewCircuitBreaker(cache.DefaultCircuitBreakerConfig()),
	}
}

func (c *Client) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	var text string
	err := c.breaker.Execute(func() error {
		resp, err := c.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.model,
			Messages: messages,
		})
		if err != nil {
			return fmt.Errorf("failed to generate content: %w", err)
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return ErrEmptyResponse
		}
		return nil
	})
	if err != nil {
		xlog.Warn("AI generation failed", "model", c.model, "error", err)
		return "", err
	}

	return text, nil
}

func (c *Client) Stats() map[string]interface{} {
	return map[string]interface{}{
		"model":   c.model,
		"breaker": c.breaker.GetStats(),
	}
}
