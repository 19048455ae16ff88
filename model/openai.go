package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jonwraymond/invokeops/resilience"
)

// Config configures the OpenAI-compatible client.
type Config struct {
	// APIKey is sent as a bearer token. Credential discovery is the caller's job.
	APIKey string
	// BaseURL overrides the API root (e.g. a gateway or local server).
	BaseURL string
	// Model is the default model name.
	Model string
	// HTTPClient overrides the transport.
	HTTPClient *http.Client
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return ErrMissingModel
	}
	return nil
}

// OpenAI is a Client for OpenAI-compatible chat completion APIs.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
	}, nil
}

// Generate sends one chat completion request and returns the first choice.
func (c *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	req := c.request(p)
	if req.Model == "" {
		return "", resilience.Terminal(ErrMissingModel)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", resilience.ErrEmptyResult)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: finish reason %q", resilience.ErrEmptyResult, resp.Choices[0].FinishReason)
	}
	return content, nil
}

func (c *OpenAI) request(p Prompt) openai.ChatCompletionRequest {
	model := p.Model
	if model == "" {
		model = c.model
	}

	var msgs []openai.ChatCompletionMessage
	if p.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.System,
		})
	}
	msgs = append(msgs, userMessage(p))

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: p.Temperature,
		TopP:        p.TopP,
		MaxTokens:   p.MaxTokens,
	}
	if p.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

// userMessage uses MultiContent only when images are present; the API
// rejects messages that set both Content and MultiContent.
func userMessage(p Prompt) openai.ChatCompletionMessage {
	if len(p.Images) == 0 {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: p.Text,
		}
	}

	parts := make([]openai.ChatMessagePart, 0, len(p.Images)+1)
	for _, img := range p.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    img.DataURL(),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	if p.Text != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: p.Text,
		})
	}
	return openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	}
}

// classify marks request errors that a retry cannot fix as terminal.
// Rate limits (429) and server errors stay transient.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && terminalStatus(apiErr.HTTPStatusCode) {
		return resilience.Terminal(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && terminalStatus(reqErr.HTTPStatusCode) {
		return resilience.Terminal(err)
	}
	return err
}

func terminalStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}
