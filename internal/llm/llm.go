// Package llm asks an OpenAI-compatible model for a short comment on the
// results of the class.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/feedback/internal/llm/prompts"
	"github.com/pavelanni/feedback/internal/model"
)

// ErrEmptyComment is returned when the model answers without a comment.
var ErrEmptyComment = errors.New("LLM returned an empty comment")

// CommentResult is the JSON object the model is asked to produce.
type CommentResult struct {
	Comment string `json:"comment"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptStandard,
	}
}

// WithVariant selects the prompt variant.
func (c *Client) WithVariant(v prompts.PromptVariant) *Client {
	c.variant = v
	return c
}

// ClassComment asks the model to comment on the class statistics, in the
// document language.
func (c *Client) ClassComment(ctx context.Context, lang string, exam model.ExamInfo, cs *model.ClassStatistics, total float64) (string, error) {
	if err := prompts.Load(prompts.Embedded); err != nil {
		return "", fmt.Errorf("load prompts: %w", err)
	}
	prompt, err := prompts.BuildClassPrompt(c.variant, lang, exam, cs, total)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return parseComment(raw)
}

func parseComment(raw string) (string, error) {
	var result CommentResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &result); err != nil {
		return "", fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	comment := strings.TrimSpace(result.Comment)
	if comment == "" {
		return "", ErrEmptyComment
	}
	return comment, nil
}

// extractJSON drops anything around the outermost JSON object; some local
// models wrap their answer in a code fence.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
