package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPGenerator asks a JSON endpoint for content:
//
//	POST {"topic": "...", "count": 12, "kind": "words" | "items"}
//	200  {"words": ["..."]} or {"items": [{"description", "emoji", "points"}]}
type HTTPGenerator struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

type generateRequest struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
	Kind  string `json:"kind"`
}

type generateResponse struct {
	Words []string `json:"words"`
	Items []Item   `json:"items"`
}

func (g *HTTPGenerator) Words(ctx context.Context, topic string, count int) ([]string, error) {
	resp, err := g.generate(ctx, generateRequest{Topic: topic, Count: count, Kind: "words"})
	if err != nil {
		return nil, err
	}
	return resp.Words, nil
}

func (g *HTTPGenerator) Items(ctx context.Context, topic string, count int) ([]Item, error) {
	resp, err := g.generate(ctx, generateRequest{Topic: topic, Count: count, Kind: "items"})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (g *HTTPGenerator) generate(ctx context.Context, body generateRequest) (generateResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return generateResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return generateResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return generateResponse{}, fmt.Errorf("generate %s: %w", body.Kind, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return generateResponse{}, fmt.Errorf("generate %s: status %d", body.Kind, res.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return generateResponse{}, fmt.Errorf("decode %s: %w", body.Kind, err)
	}
	return out, nil
}
