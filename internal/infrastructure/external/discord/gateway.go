package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GATEWAY CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// GatewayConfig contains configuration for the gateway connection.
type GatewayConfig struct {
	// Token is the bot token (required).
	Token string

	// GuildID is the guild whose voice states are tracked (required).
	GuildID string

	// Intents is the gateway intent bitmask.
	Intents int

	// ReconnectDelay is the initial delay before reconnecting.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the reconnect backoff.
	MaxReconnectDelay time.Duration

	// Logger for structured logging. Optional.
	Logger *logger.Logger
}

// DefaultGatewayConfig returns a configuration with sensible defaults.
func DefaultGatewayConfig(token, guildID string) GatewayConfig {
	return GatewayConfig{
		Token:             token,
		GuildID:           guildID,
		Intents:           IntentGuilds | IntentGuildVoiceStates | IntentGuildMessages | IntentMessageContent,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: time.Minute,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// VoiceTransition is a member moving between voice channels.
// FromChannelID or ToChannelID is empty when the member connected from or
// disconnected to nowhere.
type VoiceTransition struct {
	UserID        string
	FromChannelID string
	ToChannelID   string
	At            time.Time
}

// VoiceHandler receives voice channel transitions in gateway order.
type VoiceHandler func(t VoiceTransition)

// MessageHandler receives non-bot MESSAGE_CREATE events.
type MessageHandler func(m Message)

// ReadyHandler fires after READY and the guild's voice state snapshot arrived.
type ReadyHandler func()

var (
	// ErrGatewayClosed is returned when the gateway has been shut down.
	ErrGatewayClosed = errors.New("discord: gateway closed")

	// ErrNotConnected is returned when a send is attempted while disconnected.
	ErrNotConnected = errors.New("discord: gateway not connected")
)

// ══════════════════════════════════════════════════════════════════════════════
// GATEWAY
// ══════════════════════════════════════════════════════════════════════════════

// Gateway maintains the websocket connection to Discord: identify, heartbeat,
// resume, and dispatch. It keeps a live cache of the guild's voice states so
// the rest of the bot can ask who is in a channel without REST calls.
type Gateway struct {
	config GatewayConfig
	client *Client
	logger *logger.Logger

	// Connection state, guarded by mu.
	mu        sync.RWMutex
	conn      *websocket.Conn
	sessionID string
	resumeURL string
	sequence  int64
	botUserID string

	// voiceStates maps userID to the channel the user currently occupies.
	// Guarded by stateMu, written only by the read loop. seeded flips once
	// the first GUILD_CREATE snapshot for the tracked guild has landed.
	stateMu     sync.RWMutex
	voiceStates map[string]string
	seeded      bool

	// writeMu serializes websocket writes.
	writeMu sync.Mutex

	onVoice   VoiceHandler
	onMessage MessageHandler
	onReady   ReadyHandler

	closed  chan struct{}
	closeMu sync.Once
}

// NewGateway creates a new Gateway. The REST client is used to discover the
// gateway URL.
func NewGateway(config GatewayConfig, client *Client) (*Gateway, error) {
	if config.Token == "" {
		return nil, ErrMissingToken
	}
	if config.GuildID == "" {
		return nil, errors.New("discord: guild ID is required")
	}
	if config.Intents == 0 {
		config.Intents = IntentGuilds | IntentGuildVoiceStates | IntentGuildMessages | IntentMessageContent
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = time.Second
	}
	if config.MaxReconnectDelay <= 0 {
		config.MaxReconnectDelay = time.Minute
	}

	log := config.Logger
	if log == nil {
		log = logger.Default()
	}

	return &Gateway{
		config:      config,
		client:      client,
		logger:      log.With(logger.Component("discord-gateway")),
		voiceStates: make(map[string]string),
		closed:      make(chan struct{}),
	}, nil
}

// OnVoiceTransition registers the voice transition handler.
// Must be called before Run.
func (g *Gateway) OnVoiceTransition(h VoiceHandler) { g.onVoice = h }

// OnMessage registers the message handler. Must be called before Run.
func (g *Gateway) OnMessage(h MessageHandler) { g.onMessage = h }

// OnReady registers the ready handler. Must be called before Run.
func (g *Gateway) OnReady(h ReadyHandler) { g.onReady = h }

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Run connects to the gateway and processes events until the context is
// cancelled or Close is called. Reconnects with exponential backoff.
func (g *Gateway) Run(ctx context.Context) error {
	delay := g.config.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.closed:
			return ErrGatewayClosed
		default:
		}

		err := g.runOnce(ctx)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrGatewayClosed) {
			return err
		}

		g.logger.Warn("gateway connection lost, reconnecting",
			logger.Err(err),
			logger.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.closed:
			return ErrGatewayClosed
		case <-time.After(delay):
		}

		delay *= 2
		if delay > g.config.MaxReconnectDelay {
			delay = g.config.MaxReconnectDelay
		}
	}
}

// Close shuts the gateway down. Safe to call more than once.
func (g *Gateway) Close() {
	g.closeMu.Do(func() {
		close(g.closed)
		g.mu.Lock()
		if g.conn != nil {
			_ = g.conn.Close()
		}
		g.mu.Unlock()
	})
}

// runOnce performs one connect-identify-read cycle.
func (g *Gateway) runOnce(ctx context.Context) error {
	url, resuming := g.connectURL(ctx)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial gateway: %w", err)
	}

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
	defer func() {
		_ = conn.Close()
		g.mu.Lock()
		g.conn = nil
		g.mu.Unlock()
	}()

	// First frame must be Hello.
	payload, err := g.readPayload(conn)
	if err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	if payload.Op != OpHello {
		return fmt.Errorf("expected hello, got op %d", payload.Op)
	}

	var hello HelloData
	if err := json.Unmarshal(payload.Data, &hello); err != nil {
		return fmt.Errorf("failed to decode hello: %w", err)
	}

	if resuming {
		err = g.sendResume()
	} else {
		err = g.sendIdentify()
	}
	if err != nil {
		return err
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go g.heartbeatLoop(heartbeatCtx, time.Duration(hello.HeartbeatInterval)*time.Millisecond)

	return g.readLoop(ctx, conn)
}

// connectURL picks the resume URL when a session can be resumed, otherwise
// the fresh gateway URL. Falls back to the well-known endpoint when the REST
// lookup fails.
func (g *Gateway) connectURL(ctx context.Context) (string, bool) {
	g.mu.RLock()
	sessionID, resumeURL := g.sessionID, g.resumeURL
	g.mu.RUnlock()

	if sessionID != "" && resumeURL != "" {
		return resumeURL + "/?v=10&encoding=json", true
	}

	url := "wss://gateway.discord.gg"
	if g.client != nil {
		if resp, err := g.client.GetGatewayBot(ctx); err == nil && resp.URL != "" {
			url = resp.URL
		}
	}
	return url + "/?v=10&encoding=json", false
}

// ══════════════════════════════════════════════════════════════════════════════
// PROTOCOL
// ══════════════════════════════════════════════════════════════════════════════

func (g *Gateway) readPayload(conn *websocket.Conn) (*GatewayPayload, error) {
	var payload GatewayPayload
	if err := conn.ReadJSON(&payload); err != nil {
		return nil, err
	}
	if payload.Sequence != nil {
		g.mu.Lock()
		g.sequence = *payload.Sequence
		g.mu.Unlock()
	}
	return &payload, nil
}

// send writes one payload to the websocket.
func (g *Gateway) send(op int, data interface{}) error {
	g.mu.RLock()
	conn := g.conn
	g.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return conn.WriteJSON(GatewayPayload{Op: op, Data: raw})
}

func (g *Gateway) sendIdentify() error {
	return g.send(OpIdentify, IdentifyData{
		Token:   g.config.Token,
		Intents: g.config.Intents,
		Properties: IdentifyProperties{
			OS:      "linux",
			Browser: "mogakko-bot",
			Device:  "mogakko-bot",
		},
	})
}

func (g *Gateway) sendResume() error {
	g.mu.RLock()
	sessionID, seq := g.sessionID, g.sequence
	g.mu.RUnlock()
	return g.send(OpResume, ResumeData{
		Token:     g.config.Token,
		SessionID: sessionID,
		Sequence:  seq,
	})
}

func (g *Gateway) sendHeartbeat() error {
	g.mu.RLock()
	seq := g.sequence
	conn := g.conn
	g.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(seq)
	if err != nil {
		return err
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return conn.WriteJSON(GatewayPayload{Op: OpHeartbeat, Data: raw})
}

// heartbeatLoop sends heartbeats at the interval Discord asked for, with the
// required random jitter before the first beat.
func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration) {
	first := time.Duration(rand.Float64() * float64(interval))
	select {
	case <-ctx.Done():
		return
	case <-time.After(first):
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := g.sendHeartbeat(); err != nil {
			g.logger.Debug("heartbeat failed", logger.Err(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// readLoop consumes gateway frames until the connection drops.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.closed:
			return ErrGatewayClosed
		default:
		}

		payload, err := g.readPayload(conn)
		if err != nil {
			return fmt.Errorf("failed to read gateway frame: %w", err)
		}

		switch payload.Op {
		case OpDispatch:
			g.handleDispatch(payload)

		case OpHeartbeat:
			// Discord asked for an immediate heartbeat.
			if err := g.sendHeartbeat(); err != nil {
				return err
			}

		case OpHeartbeatAck:
			// Nothing to do.

		case OpReconnect:
			return errors.New("server requested reconnect")

		case OpInvalidSession:
			var resumable bool
			_ = json.Unmarshal(payload.Data, &resumable)
			if !resumable {
				g.mu.Lock()
				g.sessionID = ""
				g.resumeURL = ""
				g.mu.Unlock()
			}
			return errors.New("session invalidated")
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (g *Gateway) handleDispatch(payload *GatewayPayload) {
	switch payload.Type {
	case "READY":
		g.handleReady(payload.Data)
	case "GUILD_CREATE":
		g.handleGuildCreate(payload.Data)
	case "VOICE_STATE_UPDATE":
		g.handleVoiceStateUpdate(payload.Data)
	case "MESSAGE_CREATE":
		g.handleMessageCreate(payload.Data)
	case "RESUMED":
		g.logger.Info("gateway session resumed")
	}
}

func (g *Gateway) handleReady(data json.RawMessage) {
	var ready ReadyData
	if err := json.Unmarshal(data, &ready); err != nil {
		g.logger.Error("failed to decode READY", logger.Err(err))
		return
	}

	g.mu.Lock()
	g.sessionID = ready.SessionID
	g.resumeURL = ready.ResumeGatewayURL
	g.botUserID = ready.User.ID
	g.mu.Unlock()

	g.logger.Info("gateway ready",
		logger.String("bot_user", ready.User.Username),
		logger.SessionID(ready.SessionID),
	)
}

// handleGuildCreate seeds the voice state cache from the guild snapshot.
// This is the authoritative picture at connect time; it replaces whatever
// the cache held before the reconnect.
func (g *Gateway) handleGuildCreate(data json.RawMessage) {
	var guild GuildCreateData
	if err := json.Unmarshal(data, &guild); err != nil {
		g.logger.Error("failed to decode GUILD_CREATE", logger.Err(err))
		return
	}
	if guild.ID != g.config.GuildID {
		return
	}

	g.mu.RLock()
	botID := g.botUserID
	g.mu.RUnlock()

	g.stateMu.Lock()
	g.voiceStates = make(map[string]string, len(guild.VoiceStates))
	for _, vs := range guild.VoiceStates {
		if vs.UserID == botID || vs.ChannelID == "" {
			continue
		}
		g.voiceStates[vs.UserID] = vs.ChannelID
	}
	g.seeded = true
	count := len(g.voiceStates)
	g.stateMu.Unlock()

	g.logger.Info("voice state snapshot loaded",
		logger.String("guild_id", guild.ID),
		logger.Int("members_in_voice", count),
	)

	if g.onReady != nil {
		g.onReady()
	}
}

func (g *Gateway) handleVoiceStateUpdate(data json.RawMessage) {
	var vs VoiceState
	if err := json.Unmarshal(data, &vs); err != nil {
		g.logger.Error("failed to decode VOICE_STATE_UPDATE", logger.Err(err))
		return
	}
	if vs.GuildID != "" && vs.GuildID != g.config.GuildID {
		return
	}

	g.mu.RLock()
	botID := g.botUserID
	g.mu.RUnlock()
	if vs.UserID == botID {
		return
	}

	g.stateMu.Lock()
	previous := g.voiceStates[vs.UserID]
	if vs.ChannelID == "" {
		delete(g.voiceStates, vs.UserID)
	} else {
		g.voiceStates[vs.UserID] = vs.ChannelID
	}
	g.stateMu.Unlock()

	if previous == vs.ChannelID {
		return
	}

	if g.onVoice != nil {
		g.onVoice(VoiceTransition{
			UserID:        vs.UserID,
			FromChannelID: previous,
			ToChannelID:   vs.ChannelID,
			At:            time.Now(),
		})
	}
}

func (g *Gateway) handleMessageCreate(data json.RawMessage) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		g.logger.Error("failed to decode MESSAGE_CREATE", logger.Err(err))
		return
	}
	if msg.Author == nil || msg.Author.Bot {
		return
	}

	if g.onMessage != nil {
		g.onMessage(msg)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES AND PRESENCE
// ══════════════════════════════════════════════════════════════════════════════

// MembersInChannel returns the user IDs currently in the given voice channel,
// from the live cache.
func (g *Gateway) MembersInChannel(channelID string) []string {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	var members []string
	for userID, ch := range g.voiceStates {
		if ch == channelID {
			members = append(members, userID)
		}
	}
	return members
}

// Connected reports whether a gateway session is currently established.
func (g *Gateway) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conn != nil
}

// Seeded reports whether the voice state cache has received the guild
// snapshot. Until then the cache is empty without meaning anyone left.
func (g *Gateway) Seeded() bool {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.seeded
}

// UpdatePresence sets the bot's presence over the gateway.
func (g *Gateway) UpdatePresence(status string, activity Activity) error {
	return g.send(OpPresenceUpdate, PresenceUpdate{
		Since:      nil,
		Activities: []Activity{activity},
		Status:     status,
		AFK:        false,
	})
}
