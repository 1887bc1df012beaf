package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Token:         "test-token",
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestClient_AuthorizationHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"123","type":2,"name":"모각코"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	channel, err := client.GetChannel(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, "Bot test-token", gotAuth)
	assert.Equal(t, "123", channel.ID)
	assert.True(t, channel.IsVoice())
}

func TestChannel_IsVoiceRejectsTextChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"456","type":0,"name":"일반"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	channel, err := client.GetChannel(context.Background(), "456")
	require.NoError(t, err)

	// Startup refuses to track anything but a voice channel.
	assert.False(t, channel.IsVoice())
}

func TestClient_CreateMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/chat/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"id":"m1","channel_id":"chat","content":"hello"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	msg, err := client.SendText(context.Background(), "chat", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
}

func TestClient_RetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"url":"wss://gateway.discord.gg","shards":1}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.GetGatewayBot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "wss://gateway.discord.gg", resp.URL)
}

func TestClient_DoesNotRetryNotFound(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetChannel(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, attempts)
}

func TestClient_RateLimitResponse(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"code":0,"message":"You are being rate limited.","retry_after":0.001}`))
			return
		}
		w.Write([]byte(`{"id":"m1","channel_id":"chat","content":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	msg, err := client.SendText(context.Background(), "chat", "ok")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "ok", msg.Content)
}

func TestAPIError_Fields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":50013,"message":"Missing Permissions"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.SendText(context.Background(), "chat", "hi")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, 50013, apiErr.Code)
	assert.False(t, apiErr.IsRateLimit())
}

func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 1.0,
		BurstSize:         2,
		MinInterval:       0,
		WaitTimeout:       10 * time.Millisecond,
	})

	assert.True(t, rl.TryAllow())
	assert.True(t, rl.TryAllow())
	assert.False(t, rl.TryAllow())
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 100.0,
		BurstSize:         1,
		MinInterval:       0,
		WaitTimeout:       time.Second,
	})

	assert.True(t, rl.TryAllow())
	assert.False(t, rl.TryAllow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.TryAllow())
}

func TestRateLimiter_RespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.1,
		BurstSize:         1,
		MinInterval:       0,
		WaitTimeout:       time.Minute,
	})
	require.True(t, rl.TryAllow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rl.Allow(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_ResetRestoresBucket(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.1,
		BurstSize:         1,
		MinInterval:       0,
		WaitTimeout:       time.Second,
	})
	require.True(t, rl.TryAllow())
	require.False(t, rl.TryAllow())

	rl.Reset()
	assert.True(t, rl.TryAllow())
}
