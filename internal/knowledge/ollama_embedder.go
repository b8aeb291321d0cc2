package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Review subjects are single files, so batches stay small; the delay
// keeps a local instance from queueing up embed calls behind chat calls.
const (
	ollamaEmbedBatchSize = 32
	ollamaEmbedDelay     = 200 * time.Millisecond
)

// OllamaEmbedder implements Embedder against a local Ollama instance.
// The dimension is learned from the first response when not configured,
// since Ollama models fix it server-side.
type OllamaEmbedder struct {
	http      *http.Client
	model     string
	dimension int
	endpoint  string
}

func NewOllamaEmbedder(model string, dim int, baseURL string) *OllamaEmbedder {
	return &OllamaEmbedder{
		http:      &http.Client{Timeout: 90 * time.Second},
		model:     model,
		dimension: dim,
		endpoint:  ollamaEndpoint(baseURL, "/api/embed"),
	}
}

// ollamaEndpoint resolves a base URL to a full API path, defaulting to
// the local daemon.
func ollamaEndpoint(baseURL, apiPath string) string {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = "http://127.0.0.1:11434"
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, apiPath) {
		url += apiPath
	}
	return url
}

func (o *OllamaEmbedder) Dimension() int {
	return o.dimension
}

func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if strings.TrimSpace(o.model) == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ollamaEmbedBatchSize {
		if start > 0 {
			if !waitOrCancel(ctx, ollamaEmbedDelay) {
				return nil, ctx.Err()
			}
		}
		batch := texts[start:min(start+ollamaEmbedBatchSize, len(texts))]
		vecs, err := o.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}

	if o.dimension <= 0 && len(out) > 0 {
		o.dimension = len(out[0])
	}
	return out, nil
}

func (o *OllamaEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	payload := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: o.model, Input: batch}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama embed request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Embeddings) != len(batch) {
		return nil, fmt.Errorf("ollama embedding count mismatch: got %d, expected %d", len(parsed.Embeddings), len(batch))
	}
	return parsed.Embeddings, nil
}
