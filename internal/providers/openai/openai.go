// Package openai adapts OpenAI's embeddings and chat completions APIs to
// the providers.Embedder and providers.LLM interfaces, built on the same
// klient-based call shape as the teacher's internal/service/llm/openai
// provider.
package openai

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

const DefaultBaseURL = "https://api.openai.com/v1"

// dimensions maps the two embedding models spec.md §4.7 names to their
// output vector size, used to resolve a Collection's VectorSize.
var dimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// Provider adapts OpenAI to providers.Embedder and providers.LLM.
type Provider struct {
	embeddingModel string
	chatModel      string
	client         *klient.Client
}

// New builds a Provider. embeddingModel must be one of the two supported
// text-embedding-3 variants; chatModel is used for LLM calls.
func New(apiKey, embeddingModel, chatModel, baseURL, proxy string) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, ok := dimensions[embeddingModel]; !ok {
		return nil, fmt.Errorf("openai: unsupported embedding model %q", embeddingModel)
	}

	opts := []klient.OptionClientFn{
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(http.Header{
			"Authorization": []string{"Bearer " + apiKey},
			"Content-Type":  []string{"application/json"},
		}),
	}
	if proxy != "" {
		opts = append(opts, klient.WithProxy(proxy))
	}

	client, err := klient.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: build client: %w", err)
	}

	return &Provider{embeddingModel: embeddingModel, chatModel: chatModel, client: client}, nil
}

var _ providers.Embedder = (*Provider)(nil)
var _ providers.LLM = (*Provider)(nil)

func (p *Provider) Dimensions() int { return dimensions[p.embeddingModel] }

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingsRequest{Model: p.embeddingModel, Input: texts}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("openai: build embeddings request: %w", err)
	}

	var result embeddingsResponse
	if err := p.client.Do(req, func(r *http.Response) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &result)
	}); err != nil {
		return nil, fmt.Errorf("openai: embeddings request: %w", err)
	}

	if result.Error != nil {
		return nil, fmt.Errorf("openai: embeddings error: %s", result.Error.Message)
	}

	out := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *Provider) Chat(ctx context.Context, messages []providers.Message) (string, error) {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	reqBody := chatRequest{Model: p.chatModel, Messages: msgs}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("openai: marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("openai: build chat request: %w", err)
	}

	var result chatResponse
	if err := p.client.Do(req, func(r *http.Response) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &result)
	}); err != nil {
		return "", fmt.Errorf("openai: chat request: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("openai: chat error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no chat completion choices returned")
	}
	return result.Choices[0].Message.Content, nil
}
