package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mogakko-hub/mogakko-bot/pkg/circuitbreaker"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Discord REST client.
type ClientConfig struct {
	// Token is the bot token (required).
	Token string

	// BaseURL is the Discord API base URL.
	BaseURL string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RetryAttempts is the number of retry attempts for failed requests.
	RetryAttempts int

	// RetryDelay is the initial delay between retries.
	RetryDelay time.Duration

	// RateLimiter controls the outgoing request rate. Optional.
	RateLimiter *RateLimiter

	// Breaker blocks requests while the API keeps failing. Optional,
	// NewClient installs a default one when nil.
	Breaker *circuitbreaker.CircuitBreaker

	// Logger for structured logging. Optional.
	Logger *logger.Logger

	// Debug enables request/response logging.
	Debug bool
}

// DefaultClientConfig returns a configuration with sensible defaults.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:         token,
		BaseURL:       "https://discord.com/api/v10",
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		RateLimiter:   NewRateLimiter(DefaultRateLimiterConfig()),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrMissingToken is returned when the bot token is empty.
	ErrMissingToken = errors.New("discord: bot token is required")

	// ErrUnauthorized is returned when the token is rejected.
	ErrUnauthorized = errors.New("discord: unauthorized")

	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("discord: resource not found")
)

// APIError represents an error response from the Discord API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Code is Discord's JSON error code.
	Code int

	// Message is Discord's error description.
	Message string

	// RetryAfter is set on 429 responses.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("discord API error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// IsRateLimit returns true when the API asked us to slow down.
func (e *APIError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// isRetryable reports whether a request that produced err may be retried.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRateLimit() || apiErr.StatusCode >= 500
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return false
	}
	// Network errors are retryable.
	return !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrNotFound)
}

// isServerFault reports whether err should count against the circuit
// breaker. Client-side errors and rate limits are the caller's problem,
// not a sign that Discord is down.
func isServerFault(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrNotFound)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is a minimal Discord REST client covering the endpoints this bot
// needs. It handles auth, rate limiting, and retries with backoff.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new Discord REST client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Token == "" {
		return nil, ErrMissingToken
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://discord.com/api/v10"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	log := config.Logger
	if log == nil {
		log = logger.Default()
	}

	if config.Breaker == nil {
		config.Breaker = circuitbreaker.New("discord-api",
			circuitbreaker.WithIsFailure(isServerFault),
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}),
		)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.With(logger.Component("discord-client")),
	}, nil
}

// callAPI performs an API request with rate limiting and retries.
// Result is decoded into dest when dest is non-nil.
func (c *Client) callAPI(ctx context.Context, method, path string, body interface{}, dest interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.config.RetryDelay * time.Duration(1<<uint(attempt-1))

			// A 429 tells us exactly how long to wait.
			var apiErr *APIError
			if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > delay {
				delay = apiErr.RetryAfter
			}

			c.logger.Debug("retrying discord request",
				logger.String("method", method),
				logger.String("path", path),
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if c.config.RateLimiter != nil {
			if err := c.config.RateLimiter.Allow(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		err := c.config.Breaker.Execute(ctx, func(ctx context.Context) error {
			return c.doAPICall(ctx, method, path, body, dest)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsRateLimit() && c.config.RateLimiter != nil {
			c.config.RateLimiter.RecordRateLimitHit(apiErr.RetryAfter)
		}

		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("discord request failed after %d attempts: %w", c.config.RetryAttempts+1, lastErr)
}

// doAPICall performs a single API request without retries.
func (c *Client) doAPICall(ctx context.Context, method, path string, body interface{}, dest interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+c.config.Token)
	req.Header.Set("User-Agent", "DiscordBot (mogakko-bot, 1.0)")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if c.config.Debug {
		c.logger.Debug("discord API call",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
			logger.Latency(time.Since(start)),
		)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		var errBody APIErrorBody
		_ = json.Unmarshal(respData, &errBody)
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       errBody.Code,
			Message:    errBody.Message,
			RetryAfter: time.Duration(errBody.RetryAfter * float64(time.Second)),
		}
	}

	if dest != nil && len(respData) > 0 {
		if err := json.Unmarshal(respData, dest); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// API METHODS
// ══════════════════════════════════════════════════════════════════════════════

// GetChannel fetches a channel by ID.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var channel Channel
	if err := c.callAPI(ctx, http.MethodGet, "/channels/"+channelID, nil, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// CreateMessage sends a message to a channel.
func (c *Client) CreateMessage(ctx context.Context, channelID string, params CreateMessageParams) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.callAPI(ctx, http.MethodPost, path, params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendText sends a plain text message to a channel.
func (c *Client) SendText(ctx context.Context, channelID, content string) (*Message, error) {
	return c.CreateMessage(ctx, channelID, CreateMessageParams{Content: content})
}

// SendEmbed sends a single embed to a channel.
func (c *Client) SendEmbed(ctx context.Context, channelID string, embed Embed) (*Message, error) {
	return c.CreateMessage(ctx, channelID, CreateMessageParams{Embeds: []Embed{embed}})
}

// GetGatewayBot returns the gateway connection URL for this bot.
func (c *Client) GetGatewayBot(ctx context.Context) (*GatewayBotResponse, error) {
	var resp GatewayBotResponse
	if err := c.callAPI(ctx, http.MethodGet, "/gateway/bot", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
