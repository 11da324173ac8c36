// Package pinecone is a typed REST client to the Pinecone control and data
// planes. Index lifecycle goes through the control plane; vector reads and
// writes go to the per-index data-plane host resolved from it.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"advisory-rag/internal/config"
	"advisory-rag/internal/models"
)

const apiVersion = "2024-07"

type Client struct {
	controlURL string
	apiKey     string
	index      string
	cloud      string
	region     string
	metric     string
	host       string
	client     *http.Client
}

func New(cfg config.PineconeConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		controlURL: strings.TrimSuffix(cfg.ControlURL, "/"),
		apiKey:     cfg.APIKey(),
		index:      cfg.Index,
		cloud:      cfg.Cloud,
		region:     cfg.Region,
		metric:     cfg.Metric,
		client:     &http.Client{Timeout: timeout},
	}
}

type indexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Host      string `json:"host"`
}

type indexList struct {
	Indexes []indexDescription `json:"indexes"`
}

type createIndexRequest struct {
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	Metric    string    `json:"metric"`
	Spec      indexSpec `json:"spec"`
}

type indexSpec struct {
	Serverless serverlessSpec `json:"serverless"`
}

type serverlessSpec struct {
	Cloud  string `json:"cloud"`
	Region string `json:"region"`
}

type vector struct {
	ID       string          `json:"id"`
	Values   []float32       `json:"values"`
	Metadata models.Metadata `json:"metadata"`
}

type upsertRequest struct {
	Vectors []vector `json:"vectors"`
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	IncludeMetadata bool           `json:"includeMetadata"`
	Filter          map[string]any `json:"filter,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string          `json:"id"`
		Score    float64         `json:"score"`
		Metadata models.Metadata `json:"metadata"`
	} `json:"matches"`
}

// EnsureIndex lists existing indexes and creates a serverless index when
// the configured one is absent. Either way it caches the data-plane host.
func (c *Client) EnsureIndex(ctx context.Context, dimension int) (bool, error) {
	if c.index == "" {
		return false, &models.ConfigurationError{Reason: "pinecone index name is empty"}
	}
	if dimension <= 0 {
		return false, &models.ConfigurationError{Reason: fmt.Sprintf("invalid index dimension %d", dimension)}
	}
	var list indexList
	if err := c.do(ctx, http.MethodGet, c.controlURL+"/indexes", nil, &list); err != nil {
		return false, &models.ProviderError{Provider: "pinecone", Op: "list indexes", Err: err}
	}
	for _, idx := range list.Indexes {
		if idx.Name == c.index {
			c.host = idx.Host
			return false, nil
		}
	}
	req := createIndexRequest{
		Name:      c.index,
		Dimension: dimension,
		Metric:    c.metric,
		Spec:      indexSpec{Serverless: serverlessSpec{Cloud: c.cloud, Region: c.region}},
	}
	var desc indexDescription
	if err := c.do(ctx, http.MethodPost, c.controlURL+"/indexes", req, &desc); err != nil {
		return false, &models.ProviderError{Provider: "pinecone", Op: "create index", Err: err}
	}
	c.host = desc.Host
	if c.host == "" {
		// The create response can omit the host until provisioning settles;
		// describe resolves it.
		if err := c.do(ctx, http.MethodGet, c.controlURL+"/indexes/"+c.index, nil, &desc); err != nil {
			return true, &models.ProviderError{Provider: "pinecone", Op: "describe index", Err: err}
		}
		c.host = desc.Host
	}
	return true, nil
}

// Upsert writes records to the index. Pinecone overwrites on ID collision,
// so re-ingesting a country replaces its vectors.
func (c *Client) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	host, err := c.resolveHost(ctx)
	if err != nil {
		return &models.ProviderError{Provider: "pinecone", Op: "resolve host", Err: err}
	}
	vectors := make([]vector, len(records))
	for i, rec := range records {
		vectors[i] = vector{ID: rec.ID, Values: rec.Vector, Metadata: rec.Metadata}
	}
	var resp struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	if err := c.do(ctx, http.MethodPost, dataURL(host)+"/vectors/upsert", upsertRequest{Vectors: vectors}, &resp); err != nil {
		return &models.ProviderError{Provider: "pinecone", Op: "upsert", Err: err}
	}
	if resp.UpsertedCount != len(records) {
		log.Warn().Int("sent", len(records)).Int("upserted", resp.UpsertedCount).Msg("upsert count mismatch")
	}
	return nil
}

// Query returns the topK nearest neighbors with metadata. A non-empty
// filter is rendered as one $eq clause per field.
func (c *Client) Query(ctx context.Context, queryVector []float32, topK int, filter models.Filter) ([]models.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	host, err := c.resolveHost(ctx)
	if err != nil {
		return nil, &models.ProviderError{Provider: "pinecone", Op: "resolve host", Err: err}
	}
	req := queryRequest{
		Vector:          queryVector,
		TopK:            topK,
		IncludeMetadata: true,
		Filter:          buildFilter(filter),
	}
	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, dataURL(host)+"/query", req, &resp); err != nil {
		return nil, &models.ProviderError{Provider: "pinecone", Op: "query", Err: err}
	}
	matches := make([]models.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, models.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

func buildFilter(filter models.Filter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	out := make(map[string]any, len(filter))
	for field, value := range filter {
		out[field] = map[string]any{"$eq": value}
	}
	return out
}

// resolveHost returns the cached data-plane host, describing the index on
// first use when EnsureIndex has not run in this process.
func (c *Client) resolveHost(ctx context.Context) (string, error) {
	if c.host != "" {
		return c.host, nil
	}
	var desc indexDescription
	if err := c.do(ctx, http.MethodGet, c.controlURL+"/indexes/"+c.index, nil, &desc); err != nil {
		return "", err
	}
	if desc.Host == "" {
		return "", fmt.Errorf("index %q has no data-plane host yet", c.index)
	}
	c.host = desc.Host
	return c.host, nil
}

func dataURL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", method, url, resp.Status, strings.TrimSpace(string(detail)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
