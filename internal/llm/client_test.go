package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *Config {
	return &Config{
		APIKey:      "test-key",
		APIURL:      url,
		Model:       "test/model",
		MaxTokens:   4000,
		Temperature: 0.3,
		Timeout:     5,
		SiteURL:     "http://localhost:8080",
		AppName:     "chapter-translator",
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := testConfig("https://example.com/v1")
	require.NoError(t, cfg.Validate())

	missingKey := *cfg
	missingKey.APIKey = ""
	assert.Error(t, missingKey.Validate())

	badTemp := *cfg
	badTemp.Temperature = 3
	assert.Error(t, badTemp.Validate())
}

func TestConfig_GetHeaders(t *testing.T) {
	cfg := testConfig("https://example.com/v1")
	headers := cfg.GetHeaders()
	assert.Equal(t, "Bearer test-key", headers["Authorization"])
	assert.Equal(t, "http://localhost:8080", headers["HTTP-Referer"])
	assert.Equal(t, "chapter-translator", headers["X-Title"])
}

func TestSetModel(t *testing.T) {
	client, err := NewClient(testConfig("https://example.com/v1"))
	require.NoError(t, err)
	assert.Equal(t, "test/model", client.Model())

	client.SetModel("anthropic/claude-sonnet")
	assert.Equal(t, "anthropic/claude-sonnet", client.Model())

	client.SetModel("")
	assert.Equal(t, "anthropic/claude-sonnet", client.Model())
}

func TestChatCompletion_SendsSystemPromptAndModel(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: "hello"}}},
			Usage:   Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
		})
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	opts := NewChatCompletionOptions().
		WithSystemPrompt("be terse").
		WithModel("test/thinking-model").
		WithMaxTokens(64000)
	resp, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}}, opts)
	require.NoError(t, err)

	assert.Equal(t, "test/thinking-model", got.Model)
	assert.Equal(t, 64000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)

	content, err := resp.Content()
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestChatCompletion_APIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Error: &Error{Message: "insufficient credits", Type: "billing"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.SimpleChat(context.Background(), "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient credits")
}

func TestResponseContent_NoChoices(t *testing.T) {
	resp := &ChatResponse{}
	_, err := resp.Content()
	assert.Error(t, err)
}
