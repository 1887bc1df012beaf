// Package discord implements the Discord API adapter: a REST client for
// channel lookups and messages, and a gateway connection delivering voice
// state transitions for the tracked mogakko channel.
package discord

import "encoding/json"

// ══════════════════════════════════════════════════════════════════════════════
// REST API TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Channel types, per the Discord API.
const (
	ChannelTypeGuildText  = 0
	ChannelTypeGuildVoice = 2
)

// User represents a Discord user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Channel represents a Discord channel.
type Channel struct {
	ID      string `json:"id"`
	Type    int    `json:"type"`
	GuildID string `json:"guild_id,omitempty"`
	Name    string `json:"name,omitempty"`
}

// IsVoice returns true for voice channels.
func (c *Channel) IsVoice() bool {
	return c.Type == ChannelTypeGuildVoice
}

// Message represents a Discord message.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Author    *User  `json:"author,omitempty"`
	Content   string `json:"content"`
}

// Embed is a rich message embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is one field of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the footer line of an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// CreateMessageParams is the body of POST /channels/{id}/messages.
type CreateMessageParams struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// APIErrorBody is the JSON error payload returned by the REST API.
type APIErrorBody struct {
	Code       int     `json:"code"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after,omitempty"`
}

// GatewayBotResponse is the body of GET /gateway/bot.
type GatewayBotResponse struct {
	URL    string `json:"url"`
	Shards int    `json:"shards"`
}

// ══════════════════════════════════════════════════════════════════════════════
// GATEWAY TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Gateway opcodes used by this bot.
const (
	OpDispatch       = 0
	OpHeartbeat      = 1
	OpIdentify       = 2
	OpPresenceUpdate = 3
	OpResume         = 6
	OpReconnect      = 7
	OpInvalidSession = 9
	OpHello          = 10
	OpHeartbeatAck   = 11
)

// Gateway intents.
const (
	IntentGuilds           = 1 << 0
	IntentGuildVoiceStates = 1 << 7
	IntentGuildMessages    = 1 << 9
	IntentMessageContent   = 1 << 15
)

// GatewayPayload is the envelope of every gateway frame.
type GatewayPayload struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence *int64          `json:"s,omitempty"`
	Type     string          `json:"t,omitempty"`
}

// HelloData is the payload of OpHello.
type HelloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// IdentifyData is the payload of OpIdentify.
type IdentifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties IdentifyProperties `json:"properties"`
	Presence   *PresenceUpdate    `json:"presence,omitempty"`
}

// IdentifyProperties describes the connecting client.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// ResumeData is the payload of OpResume.
type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

// ReadyData is the payload of the READY dispatch.
type ReadyData struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
	User             User   `json:"user"`
}

// VoiceState is one member's voice connection state.
type VoiceState struct {
	GuildID   string `json:"guild_id,omitempty"`
	ChannelID string `json:"channel_id"` // empty when disconnected
	UserID    string `json:"user_id"`
}

// GuildCreateData carries the initial voice state snapshot of a guild.
type GuildCreateData struct {
	ID          string       `json:"id"`
	VoiceStates []VoiceState `json:"voice_states"`
}

// Activity types for presence updates.
const (
	ActivityTypePlaying = 0
	ActivityTypeCustom  = 4
)

// Activity is one presence activity entry.
type Activity struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	State string `json:"state,omitempty"`
}

// PresenceUpdate is the payload of OpPresenceUpdate.
type PresenceUpdate struct {
	Since      *int64     `json:"since"`
	Activities []Activity `json:"activities"`
	Status     string     `json:"status"`
	AFK        bool       `json:"afk"`
}
