package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a JWT fails verification
var ErrInvalidToken = errors.New("invalid token")

// Config holds auth service client configuration
type Config struct {
	BaseURL   string
	JWTSecret string
	Timeout   time.Duration
}

// FromEnv builds a Config from environment variables
func FromEnv() *Config {
	cfg := &Config{
		BaseURL:   "http://localhost:4000",
		JWTSecret: "default-secret",
		Timeout:   10 * time.Second,
	}

	if u := os.Getenv("AUTH_SERVICE_URL"); u != "" {
		cfg.BaseURL = u
	}
	if s := os.Getenv("JWT_SECRET"); s != "" {
		cfg.JWTSecret = s
	}

	return cfg
}

// Client verifies tokens locally and talks to the auth service for
// everything else
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new auth service client
func NewClient(config *Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// VerifyToken validates an HS256 JWT and returns its claims, or
// ErrInvalidToken for expired or otherwise bad tokens
func (c *Client) VerifyToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(c.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateToken signs an HS256 JWT with the given claims. A zero ttl
// defaults to 24 hours.
func (c *Client) GenerateToken(claims map[string]any, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	mapClaims := jwt.MapClaims{}
	for k, v := range claims {
		mapClaims[k] = v
	}
	mapClaims["exp"] = time.Now().Add(ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)

	signed, err := token.SignedString([]byte(c.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// GetUser fetches user information from the auth service
func (c *Client) GetUser(ctx context.Context, userID string) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID), nil, http.StatusOK)
}

// ValidateAPIKey validates an API key with the auth service
func (c *Client) ValidateAPIKey(ctx context.Context, apiKey string) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/validate-key", map[string]string{"api_key": apiKey}, http.StatusOK)
}

// CreateAPIKey creates a new API key for a user and returns it
func (c *Client) CreateAPIKey(ctx context.Context, userID, name string) (string, error) {
	result, err := c.doJSON(ctx, http.MethodPost, "/api/users/"+url.PathEscape(userID)+"/api-keys",
		map[string]string{"name": name}, http.StatusCreated)
	if err != nil {
		return "", err
	}

	key, _ := result["api_key"].(string)
	return key, nil
}

// RevokeAPIKey revokes an API key
func (c *Client) RevokeAPIKey(ctx context.Context, userID, apiKeyID string) error {
	endpoint := fmt.Sprintf("/api/users/%s/api-keys/%s", url.PathEscape(userID), url.PathEscape(apiKeyID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.config.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("revoke API key returned status %d", resp.StatusCode)
	}
	return nil
}

// Authenticate logs a user in with email and password
func (c *Client) Authenticate(ctx context.Context, email, password string) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK)
}

// Register creates a new user account
func (c *Client) Register(ctx context.Context, email, password, username string) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"username": username,
	}, http.StatusCreated)
}

// HealthCheck verifies the auth service answers its health endpoint
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth service health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth service health check returned status %d", resp.StatusCode)
	}
	return nil
}

// doJSON performs a JSON request against the auth service
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, wantStatus int) (map[string]any, error) {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Auth service call failed",
			slog.String("endpoint", endpoint),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to call auth service %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("auth service %s returned status %d", endpoint, resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode auth service response: %w", err)
	}
	return result, nil
}
