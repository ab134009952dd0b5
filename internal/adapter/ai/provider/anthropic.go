package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// Anthropic speaks the Messages API.
type Anthropic struct {
	baseURL string
	version string
}

// NewAnthropic builds the strategy; version is the anthropic-version header.
func NewAnthropic(baseURL, version string) *Anthropic {
	if version == "" {
		version = "2023-06-01"
	}
	return &Anthropic{baseURL: trimBase(baseURL), version: version}
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ID implements Strategy.
func (a *Anthropic) ID() domain.ProviderID { return domain.ProviderAnthropic }

// BuildRequest implements Strategy. max_tokens is mandatory for this API.
func (a *Anthropic) BuildRequest(ctx context.Context, req Request) (*http.Request, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	hr, err := newJSONRequest(ctx, a.baseURL+"/messages", anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []chatMessage{{Role: "user", Content: req.User}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}
	hr.Header.Set("x-api-key", req.APIKey)
	hr.Header.Set("anthropic-version", a.version)
	return hr, nil
}

// ParseText reads the first content block of type text. Thinking and
// tool blocks may precede it.
func (a *Anthropic) ParseText(body []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", errors.New("no content returned")
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return nonEmpty(block.Text)
		}
	}
	return "", errEmptyText
}

// ParseError reads {"type":"error","error":{"type","message"}}.
func (a *Anthropic) ParseError(status int, body []byte) Failure {
	var e anthropicError
	if err := json.Unmarshal(body, &e); err != nil || e.Error == nil || e.Error.Message == "" {
		return fallbackFailure(status, body)
	}
	return Failure{Status: status, Code: e.Error.Type, Type: e.Error.Type, Message: e.Error.Message}
}
