package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// Google speaks the Gemini generateContent API. The key travels as a query parameter.
type Google struct {
	baseURL string
}

// NewGoogle builds the strategy.
func NewGoogle(baseURL string) *Google { return &Google{baseURL: trimBase(baseURL)} }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

// ID implements Strategy.
func (g *Google) ID() domain.ProviderID { return domain.ProviderGoogle }

// BuildRequest implements Strategy.
func (g *Google) BuildRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body geminiRequest
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.User}}}}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens
	body.GenerationConfig.Temperature = req.Temperature

	u := g.baseURL + "/models/" + url.PathEscape(req.Model) + ":generateContent?key=" + url.QueryEscape(req.APIKey)
	return newJSONRequest(ctx, u, body)
}

// ParseText joins the text parts of candidates[0].
func (g *Google) ParseText(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no candidates returned")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return nonEmpty(b.String())
}

// ParseError reads {"error":{"code","message","status","details":[{"reason"}]}}.
// The first detail reason (e.g. API_KEY_INVALID) wins over the status.
func (g *Google) ParseError(status int, body []byte) Failure {
	var e geminiError
	if err := json.Unmarshal(body, &e); err != nil || e.Error == nil || e.Error.Message == "" {
		return fallbackFailure(status, body)
	}
	f := Failure{Status: status, Type: e.Error.Status, Code: e.Error.Status, Message: e.Error.Message}
	for _, d := range e.Error.Details {
		if d.Reason != "" {
			f.Code = d.Reason
			break
		}
	}
	return f
}
