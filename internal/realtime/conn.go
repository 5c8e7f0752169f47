package realtime

// Push event names.
const (
	EventSnapshot = "snapshot"
	EventAlert    = "alert"
)

// Conn is an abstract bidirectional client connection. The transport layer
// hands these to the hub already tagged with a verified tenant identity;
// authentication happens upstream.
type Conn interface {
	// ID uniquely identifies this connection within the process.
	ID() string
	// TenantID is the verified tenant this connection belongs to.
	TenantID() string
	// Send pushes one event to the client. At-most-once: an error means
	// the push is lost and the next one supersedes it.
	Send(event string, payload any) error
}

// SubscribeRequest is the client-facing subscription message.
type SubscribeRequest struct {
	Campaigns        []string `json:"campaigns,omitempty"`
	Metrics          []string `json:"metrics,omitempty"`
	UpdateIntervalMs int      `json:"update_interval_ms,omitempty"`
}
