// Package anthropic adapts Anthropic's Messages API to providers.LLM,
// grounded on the teacher's internal/service/llm/antropic provider (same
// klient setup, same X-Api-Key/Anthropic-Version header pair). Anthropic
// has no embeddings API, so this package implements LLM only.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/worldline-go/klient"

	"github.com/airweave-core/airweave-core/internal/providers"
)

const DefaultBaseURL = "https://api.anthropic.com"

type Provider struct {
	model  string
	client *klient.Client
}

func New(apiKey, model, baseURL, proxy string) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts := []klient.OptionClientFn{
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(http.Header{
			"X-Api-Key":         []string{apiKey},
			"Anthropic-Version": []string{"2023-06-01"},
			"Content-Type":      []string{"application/json"},
		}),
	}
	if proxy != "" {
		opts = append(opts, klient.WithProxy(proxy))
	}

	client, err := klient.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build client: %w", err)
	}

	return &Provider{model: model, client: client}, nil
}

var _ providers.LLM = (*Provider)(nil)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Type  string `json:"type"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Content []contentBlock `json:"content"`
}

func (p *Provider) Chat(ctx context.Context, messages []providers.Message) (string, error) {
	var system string
	var rest []message
	for _, m := range messages {
		if m.Role == "system" {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, message{Role: m.Role, Content: m.Content})
	}

	reqBody := messagesRequest{Model: p.model, MaxTokens: 4096, System: system, Messages: rest}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("anthropic: build request: %w", err)
	}

	var result messagesResponse
	if err := p.client.Do(req, func(r *http.Response) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &result)
	}); err != nil {
		return "", fmt.Errorf("anthropic: messages request: %w", err)
	}

	if result.Type == "error" && result.Error != nil {
		return "", fmt.Errorf("anthropic: %s", result.Error.Message)
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
