package menu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/harunnryd/tablecall/pkg/resilience"
)

const (
	DefaultCollection     = "menu"
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.2
)

// Embedder turns texts into vectors. Implementations live with the model
// provider; the searcher only needs the vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type QdrantConfig struct {
	URL            string
	APIKey         string
	Collection     string
	TopK           int
	ScoreThreshold float64
	Timeout        time.Duration
	Retry          resilience.RetryPolicy
}

// QdrantClient speaks the Qdrant REST API.
type QdrantClient struct {
	cfg    QdrantConfig
	Client *http.Client
}

func NewQdrantClient(cfg QdrantConfig) *QdrantClient {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:6333"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = DefaultScoreThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = func(attempt int, err error) {
			slog.Warn("external_api_retry", "service", "qdrant", "attempt", attempt, "error", err)
		}
	}
	return &QdrantClient{cfg: cfg, Client: &http.Client{Timeout: cfg.Timeout}}
}

func (c *QdrantClient) Collection() string { return c.cfg.Collection }

// Point is a vector with its menu payload.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Item      `json:"payload"`
}

type scoredPoint struct {
	ID      any     `json:"id"`
	Score   float64 `json:"score"`
	Payload Item    `json:"payload"`
}

type response struct {
	status int
	body   []byte
}

func (c *QdrantClient) do(ctx context.Context, method, path string, payload any) (response, error) {
	return resilience.Retry(ctx, c.cfg.Retry, "qdrant", func(ctx context.Context) (response, error) {
		var body io.Reader
		if payload != nil {
			b, err := json.Marshal(payload)
			if err != nil {
				return response{}, err
			}
			body = bytes.NewReader(b)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, body)
		if err != nil {
			return response{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("api-key", c.cfg.APIKey)
		}
		resp, err := c.Client.Do(req)
		if err != nil {
			return response{}, err
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return response{}, resilience.StatusError{Service: "qdrant", StatusCode: resp.StatusCode, Body: string(data)}
		}
		return response{status: resp.StatusCode, body: data}, nil
	})
}

func (c *QdrantClient) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(c.cfg.Collection) + suffix
}

// Search returns the payloads of the nearest points above the threshold.
func (c *QdrantClient) Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]Item, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if threshold > 0 {
		req["score_threshold"] = threshold
	}
	resp, err := c.do(ctx, http.MethodPost, c.collectionPath("/points/search"), req)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, resilience.StatusError{Service: "qdrant", StatusCode: resp.status, Body: string(resp.body)}
	}
	var out struct {
		Result []scoredPoint `json:"result"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("qdrant: decode search: %w", err)
	}
	items := make([]Item, 0, len(out.Result))
	for _, p := range out.Result {
		items = append(items, p.Payload)
	}
	return items, nil
}

// EnsureCollection creates the collection when it does not exist yet.
func (c *QdrantClient) EnsureCollection(ctx context.Context, size int, distance string) error {
	if distance == "" {
		distance = "Cosine"
	}
	resp, err := c.do(ctx, http.MethodGet, c.collectionPath(""), nil)
	if err != nil {
		return err
	}
	switch resp.status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return resilience.StatusError{Service: "qdrant", StatusCode: resp.status, Body: string(resp.body)}
	}
	payload := map[string]any{"vectors": map[string]any{"size": size, "distance": distance}}
	resp, err = c.do(ctx, http.MethodPut, c.collectionPath(""), payload)
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK && resp.status != http.StatusCreated {
		return resilience.StatusError{Service: "qdrant", StatusCode: resp.status, Body: string(resp.body)}
	}
	return nil
}

func (c *QdrantClient) Upsert(ctx context.Context, points []Point) error {
	resp, err := c.do(ctx, http.MethodPut, c.collectionPath("/points"), map[string]any{"points": points})
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK && resp.status != http.StatusCreated {
		return resilience.StatusError{Service: "qdrant", StatusCode: resp.status, Body: string(resp.body)}
	}
	return nil
}

// Ping checks that the server answers. Used by readiness probes.
func (c *QdrantClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/collections", nil)
	if err != nil {
		return err
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resilience.CheckStatus("qdrant", resp, body)
}

// Ingest embeds items and upserts them with fresh point ids.
func (c *QdrantClient) Ingest(ctx context.Context, embedder Embedder, items []Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text()
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return 0, errorsx.Wrap(err, errorsx.ReasonMenuEmbed)
	}
	if len(vectors) != len(items) {
		return 0, fmt.Errorf("qdrant: got %d vectors for %d items", len(vectors), len(items))
	}
	if err := c.EnsureCollection(ctx, len(vectors[0]), "Cosine"); err != nil {
		return 0, err
	}
	points := make([]Point, len(items))
	for i, it := range items {
		points[i] = Point{ID: uuid.NewString(), Vector: vectors[i], Payload: it}
	}
	if err := c.Upsert(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

// QdrantSearcher embeds the query and runs a vector search.
type QdrantSearcher struct {
	client   *QdrantClient
	embedder Embedder
}

func NewQdrantSearcher(client *QdrantClient, embedder Embedder) *QdrantSearcher {
	return &QdrantSearcher{client: client, embedder: embedder}
}

func (s *QdrantSearcher) Search(ctx context.Context, query, language string) ([]Item, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMenuEmbed)
	}
	if len(vectors) == 0 {
		return nil, errorsx.Wrap(fmt.Errorf("embedder returned no vector"), errorsx.ReasonMenuEmbed)
	}
	items, err := s.client.Search(ctx, vectors[0], s.client.cfg.TopK, s.client.cfg.ScoreThreshold)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMenuSearch)
	}
	return items, nil
}

var _ Searcher = (*QdrantSearcher)(nil)
