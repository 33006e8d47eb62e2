package internalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Errors returned by the internal API client
var (
	ErrUnknownService = fmt.Errorf("unknown internal service")
)

// Client calls the other internal services over HTTP with JSON bodies.
// Service base URLs come from environment variables with local defaults.
type Client struct {
	services   map[string]string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new internal API client
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		services: map[string]string{
			"auth":   envOr("AUTH_SERVICE_URL", "http://localhost:4000"),
			"market": envOr("MARKET_SERVICE_URL", "http://localhost:5000"),
			"calc":   envOr("CALC_SERVICE_URL", "http://localhost:8000"),
			"api":    envOr("API_SERVICE_URL", "http://localhost:3004"),
			"code":   envOr("CODE_SERVICE_URL", "http://localhost:2000"),
		},
		httpClient: &http.Client{
			// Internal calls get a generous timeout
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// CallService makes a JSON request to an internal service and decodes
// the response body. Non-2xx responses are returned as errors.
func (c *Client) CallService(ctx context.Context, service, method, endpoint string, body any) (map[string]any, error) {
	baseURL, ok := c.services[service]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Internal service call failed",
			slog.String("service", service),
			slog.String("endpoint", endpoint),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to call %s%s: %w", service, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s%s: %w", service, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Internal service returned error status",
			slog.String("service", service),
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%s%s returned status %d: %s", service, endpoint, resp.StatusCode, data)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		// Non-JSON success bodies are wrapped rather than rejected.
		return map[string]any{"message": string(data)}, nil
	}
	return result, nil
}

// GetUser fetches a user from the auth service
func (c *Client) GetUser(ctx context.Context, userID string) (map[string]any, error) {
	return c.CallService(ctx, "auth", http.MethodGet, "/api/users/"+url.PathEscape(userID), nil)
}

// ValidateAPIKey validates an API key with the auth service
func (c *Client) ValidateAPIKey(ctx context.Context, apiKey string) (map[string]any, error) {
	return c.CallService(ctx, "auth", http.MethodPost, "/api/auth/validate-key", map[string]string{"api_key": apiKey})
}

// GetMarketData fetches quotes for symbols from the market service
func (c *Client) GetMarketData(ctx context.Context, symbols []string) (map[string]any, error) {
	return c.CallService(ctx, "market", http.MethodPost, "/api/market/quotes", map[string]any{"symbols": symbols})
}

// SearchSymbols searches the market service for symbols
func (c *Client) SearchSymbols(ctx context.Context, query string) (map[string]any, error) {
	return c.CallService(ctx, "market", http.MethodGet, "/api/market/search?q="+url.QueryEscape(query), nil)
}

// CalculatePortfolio runs portfolio metrics in the calc service
func (c *Client) CalculatePortfolio(ctx context.Context, portfolio map[string]any) (map[string]any, error) {
	return c.CallService(ctx, "calc", http.MethodPost, "/api/calc/portfolio", portfolio)
}

// ExecuteCode submits code for execution to the code service
func (c *Client) ExecuteCode(ctx context.Context, language, code string) (map[string]any, error) {
	return c.CallService(ctx, "code", http.MethodPost, "/api/code/execute", map[string]string{
		"language": language,
		"code":     code,
	})
}

// GetExecutionStatus fetches the status of a code execution job
func (c *Client) GetExecutionStatus(ctx context.Context, jobID string) (map[string]any, error) {
	return c.CallService(ctx, "code", http.MethodGet, "/api/code/status/"+url.PathEscape(jobID), nil)
}

// HealthCheckService reports whether a single service answers its health
// endpoint with status "healthy"
func (c *Client) HealthCheckService(ctx context.Context, service string) bool {
	result, err := c.CallService(ctx, service, http.MethodGet, "/health", nil)
	if err != nil {
		return false
	}
	status, _ := result["status"].(string)
	return status == "healthy"
}

// ServiceHealth returns the health of every known service
func (c *Client) ServiceHealth(ctx context.Context) map[string]bool {
	health := make(map[string]bool, len(c.services))
	for name := range c.services {
		health[name] = c.HealthCheckService(ctx, name)
	}
	return health
}
