package provider

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/luckygrid/platform/internal/guard"
)

const randomOrgEndpoint = "https://api.random.org/json-rpc/4/invoke"

// RandomOrgClient draws winning numbers from RANDOM.ORG with a crypto/rand fallback.
type RandomOrgClient struct {
	apiKey   string
	endpoint string
	logger   *slog.Logger
	client   *http.Client
	breaker  *guard.CircuitBreaker
}

// NewRandomOrgClient creates a new RANDOM.ORG client. An empty apiKey uses crypto/rand only.
func NewRandomOrgClient(apiKey string, logger *slog.Logger) *RandomOrgClient {
	return &RandomOrgClient{
		apiKey:   apiKey,
		endpoint: randomOrgEndpoint,
		logger:   logger,
		client:   &http.Client{Timeout: 5 * time.Second},
		breaker:  guard.NewCircuitBreaker(3, time.Minute),
	}
}

// WithEndpoint overrides the JSON-RPC endpoint.
func (c *RandomOrgClient) WithEndpoint(url string) *RandomOrgClient {
	c.endpoint = url
	return c
}

// RandomInt returns one uniformly distributed integer in [min, max].
func (c *RandomOrgClient) RandomInt(ctx context.Context, min, max int) (int, error) {
	if min > max {
		return 0, fmt.Errorf("min (%d) > max (%d)", min, max)
	}
	if c.apiKey == "" {
		return csprngInt(min, max)
	}

	var n int
	err := c.breaker.Do(ctx, "random-org", func(ctx context.Context) error {
		var ferr error
		n, ferr = c.fetchFromAPI(ctx, min, max)
		return ferr
	})
	if err != nil {
		c.logger.Warn("random.org unavailable, falling back to CSPRNG", "error", err)
		return csprngInt(min, max)
	}
	return n, nil
}

func (c *RandomOrgClient) fetchFromAPI(ctx context.Context, min, max int) (int, error) {
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey":      c.apiKey,
			"n":           1,
			"min":         min,
			"max":         max,
			"replacement": true,
		},
		"id": 1,
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("api returned %d", resp.StatusCode)
	}

	var response struct {
		Result struct {
			Random struct {
				Data []int `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if response.Error != nil {
		return 0, fmt.Errorf("api error: %s", response.Error.Message)
	}

	data := response.Result.Random.Data
	if len(data) != 1 || data[0] < min || data[0] > max {
		return 0, fmt.Errorf("api returned unusable data %v", data)
	}
	return data[0], nil
}

func csprngInt(min, max int) (int, error) {
	r, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, fmt.Errorf("csprng: %w", err)
	}
	return int(r.Int64()) + min, nil
}
