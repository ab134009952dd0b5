package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

func testConfig() config.Config {
	return config.Config{
		OpenAIBaseURL:     "https://api.openai.test/v1/",
		GoogleBaseURL:     "https://gemini.test/v1beta",
		AnthropicBaseURL:  "https://anthropic.test/v1",
		AnthropicVersion:  "2023-06-01",
		OpenRouterBaseURL: "https://openrouter.test/api/v1",
		OpenRouterReferer: "https://app.example",
		OpenRouterTitle:   "AI Translator",
		GroqBaseURL:       "https://groq.test/openai/v1",
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestFromConfig_CoversEveryProvider(t *testing.T) {
	set, err := FromConfig(testConfig())
	require.NoError(t, err)
	for _, p := range domain.AllProviders() {
		st, err := set.Get(p)
		require.NoError(t, err, "provider %s", p)
		assert.Equal(t, p, st.ID())
	}
	_, err = set.Get("mistral")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNewSet_RejectsMissingAndDuplicate(t *testing.T) {
	_, err := NewSet(NewGoogle("x"))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = NewSet(NewGoogle("x"), NewGoogle("y"))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestBuildRequest_WireShapes(t *testing.T) {
	set, err := FromConfig(testConfig())
	require.NoError(t, err)
	req := Request{Model: "m-1", APIKey: "secret", System: "sys", User: "hello", MaxTokens: 256, Temperature: 0.3}
	ctx := context.Background()

	tests := []struct {
		provider domain.ProviderID
		url      string
		headers  map[string]string
		check    func(t *testing.T, body map[string]any)
	}{
		{
			provider: domain.ProviderOpenAI,
			url:      "https://api.openai.test/v1/chat/completions",
			headers:  map[string]string{"Authorization": "Bearer secret"},
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "m-1", body["model"])
				assert.EqualValues(t, 256, body["max_tokens"])
				msgs := body["messages"].([]any)
				require.Len(t, msgs, 2)
				assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
				assert.Equal(t, "hello", msgs[1].(map[string]any)["content"])
			},
		},
		{
			provider: domain.ProviderOpenRouter,
			url:      "https://openrouter.test/api/v1/chat/completions",
			headers:  map[string]string{"Authorization": "Bearer secret", "HTTP-Referer": "https://app.example", "X-Title": "AI Translator"},
			check:    func(t *testing.T, body map[string]any) { assert.Equal(t, "m-1", body["model"]) },
		},
		{
			provider: domain.ProviderGroq,
			url:      "https://groq.test/openai/v1/chat/completions",
			headers:  map[string]string{"Authorization": "Bearer secret"},
			check:    func(t *testing.T, body map[string]any) { assert.Equal(t, "m-1", body["model"]) },
		},
		{
			provider: domain.ProviderGoogle,
			url:      "https://gemini.test/v1beta/models/m-1:generateContent?key=secret",
			check: func(t *testing.T, body map[string]any) {
				contents := body["contents"].([]any)
				parts := contents[0].(map[string]any)["parts"].([]any)
				assert.Equal(t, "hello", parts[0].(map[string]any)["text"])
				gen := body["generationConfig"].(map[string]any)
				assert.EqualValues(t, 256, gen["maxOutputTokens"])
				assert.NotNil(t, body["systemInstruction"])
			},
		},
		{
			provider: domain.ProviderAnthropic,
			url:      "https://anthropic.test/v1/messages",
			headers:  map[string]string{"x-api-key": "secret", "anthropic-version": "2023-06-01"},
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "sys", body["system"])
				assert.EqualValues(t, 256, body["max_tokens"])
				msgs := body["messages"].([]any)
				require.Len(t, msgs, 1)
			},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			st, err := set.Get(tt.provider)
			require.NoError(t, err)
			hr, err := st.BuildRequest(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, http.MethodPost, hr.Method)
			assert.Equal(t, tt.url, hr.URL.String())
			assert.Equal(t, "application/json", hr.Header.Get("Content-Type"))
			for k, v := range tt.headers {
				assert.Equal(t, v, hr.Header.Get(k), "header %s", k)
			}
			if tt.provider != domain.ProviderOpenAI && tt.provider != domain.ProviderGroq && tt.provider != domain.ProviderOpenRouter {
				assert.Empty(t, hr.Header.Get("Authorization"))
			}
			tt.check(t, decodeBody(t, hr))
		})
	}
}

func TestParseText(t *testing.T) {
	set, err := FromConfig(testConfig())
	require.NoError(t, err)
	tests := []struct {
		provider domain.ProviderID
		body     string
		want     string
		wantErr  bool
	}{
		{domain.ProviderOpenAI, `{"choices":[{"message":{"role":"assistant","content":"Hola"}}]}`, "Hola", false},
		{domain.ProviderGroq, `{"choices":[]}`, "", true},
		{domain.ProviderGoogle, `{"candidates":[{"content":{"parts":[{"text":"Bonjour"}],"role":"model"}}]}`, "Bonjour", false},
		{domain.ProviderGoogle, `{"candidates":[]}`, "", true},
		{domain.ProviderAnthropic, `{"content":[{"type":"text","text":"Hallo"}]}`, "Hallo", false},
		{domain.ProviderAnthropic, `not json`, "", true},
		{domain.ProviderOpenAI, `{"choices":[{"message":{"role":"assistant","content":""}}]}`, "", true},
		{domain.ProviderOpenRouter, `{"choices":[{"message":{"role":"assistant","content":"  \n"}}]}`, "", true},
		{domain.ProviderAnthropic, `{"content":[{"type":"thinking","thinking":"..."},{"type":"text","text":"Hallo"}]}`, "Hallo", false},
		{domain.ProviderAnthropic, `{"content":[{"type":"thinking","thinking":"..."}]}`, "", true},
		{domain.ProviderGoogle, `{"candidates":[{"content":{"parts":[{"text":"Bon"},{"text":"jour"}]}}]}`, "Bonjour", false},
		{domain.ProviderGoogle, `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`, "", true},
	}
	for _, tt := range tests {
		st, _ := set.Get(tt.provider)
		got, err := st.ParseText([]byte(tt.body))
		if tt.wantErr {
			assert.Error(t, err, "%s %s", tt.provider, tt.body)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abé", 3))
	msg := fallbackFailure(500, []byte(strings.Repeat("é", 1500))).Message
	assert.True(t, utf8.ValidString(msg))
	assert.LessOrEqual(t, len(msg), maxMessageBytes)
	assert.Equal(t, 1000, utf8.RuneCountInString(msg))
}

func TestParseError(t *testing.T) {
	set, err := FromConfig(testConfig())
	require.NoError(t, err)
	tests := []struct {
		name     string
		provider domain.ProviderID
		status   int
		body     string
		want     Failure
	}{
		{"openai structured", domain.ProviderOpenAI, 401,
			`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			Failure{Status: 401, Code: "invalid_api_key", Type: "invalid_request_error", Message: "Incorrect API key provided"}},
		{"openrouter numeric code", domain.ProviderOpenRouter, 402,
			`{"error":{"code":402,"message":"Insufficient credits"}}`,
			Failure{Status: 402, Code: "402", Message: "Insufficient credits"}},
		{"google detail reason", domain.ProviderGoogle, 400,
			`{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT","details":[{"reason":"API_KEY_INVALID"}]}}`,
			Failure{Status: 400, Code: "API_KEY_INVALID", Type: "INVALID_ARGUMENT", Message: "API key not valid."}},
		{"anthropic", domain.ProviderAnthropic, 401,
			`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			Failure{Status: 401, Code: "authentication_error", Type: "authentication_error", Message: "invalid x-api-key"}},
		{"free text", domain.ProviderGroq, 503, `upstream unavailable`,
			Failure{Status: 503, Message: "upstream unavailable"}},
		{"empty body", domain.ProviderGroq, 500, ``,
			Failure{Status: 500, Message: "Internal Server Error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := set.Get(tt.provider)
			assert.Equal(t, tt.want, st.ParseError(tt.status, []byte(tt.body)))
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	got, err := SystemPrompt("English", "Japanese")
	require.NoError(t, err)
	assert.Contains(t, got, "from English to Japanese")
}
