package domain

import "time"

// Role is the badge attached to a chat event by the gateway.
type Role string

const (
	RoleStreamer Role = "streamer"
	RoleManager  Role = "manager"
	RoleViewer   Role = "viewer"
)

// ChatEvent is one chat line as delivered by the gateway, in arrival order
// per channel. The dispatch call owns it transiently; engines must copy what
// they keep.
type ChatEvent struct {
	ChannelID  string    `json:"channelId"`
	ViewerID   string    `json:"viewerId"`
	Nickname   string    `json:"nickname"`
	Role       Role      `json:"role"`
	Subscriber bool      `json:"subscriber"`
	Message    string    `json:"message"`
	Hidden     bool      `json:"hidden"`
	Timestamp  time.Time `json:"timestamp"`
}

// DonationEvent is a monetary donation, optionally carrying a message.
// Amount is in integer currency units (cheese).
type DonationEvent struct {
	ChannelID string    `json:"channelId"`
	ViewerID  string    `json:"viewerId"`
	Nickname  string    `json:"nickname"`
	Amount    int       `json:"amount"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LiveStatus is a point-in-time snapshot of channel stream metadata used for
// template variable substitution. A zero value means "unknown" and renders
// as placeholders.
type LiveStatus struct {
	Live        bool      `json:"live"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	ViewerCount int       `json:"viewerCount"`
	StartedAt   time.Time `json:"startedAt"`
}
