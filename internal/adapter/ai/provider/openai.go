package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// OpenAICompatible speaks the chat/completions dialect shared by OpenAI,
// Groq and OpenRouter.
type OpenAICompatible struct {
	id      domain.ProviderID
	baseURL string
	headers map[string]string
}

// NewOpenAICompatible builds the strategy. headers are sent on every call.
func NewOpenAICompatible(id domain.ProviderID, baseURL string, headers map[string]string) *OpenAICompatible {
	return &OpenAICompatible{id: id, baseURL: trimBase(baseURL), headers: headers}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error *struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// ID implements Strategy.
func (s *OpenAICompatible) ID() domain.ProviderID { return s.id }

// BuildRequest implements Strategy.
func (s *OpenAICompatible) BuildRequest(ctx context.Context, req Request) (*http.Request, error) {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.User})
	hr, err := newJSONRequest(ctx, s.baseURL+"/chat/completions", chatRequest{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}
	hr.Header.Set("Authorization", "Bearer "+req.APIKey)
	for k, v := range s.headers {
		hr.Header.Set(k, v)
	}
	return hr, nil
}

// ParseText reads choices[0].message.content.
func (s *OpenAICompatible) ParseText(body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return nonEmpty(resp.Choices[0].Message.Content)
}

// ParseError reads {"error":{"message","type","code"}}.
func (s *OpenAICompatible) ParseError(status int, body []byte) Failure {
	var e chatError
	if err := json.Unmarshal(body, &e); err != nil || e.Error == nil || e.Error.Message == "" {
		return fallbackFailure(status, body)
	}
	return Failure{Status: status, Code: codeString(e.Error.Code), Type: e.Error.Type, Message: e.Error.Message}
}
