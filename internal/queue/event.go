// Package queue carries domain events over the message broker.  The
// engines emit events fire-and-forget; delivery to end users (push,
// SMS, in-app) is a downstream consumer's concern.
package queue

// notificationQueueName is the durable broker queue all engine events
// flow through.
const notificationQueueName = "waitline.notifications"

// NotificationEvent is the wire form of one engine event.  Payload
// fields are flat strings so consumers in any language can render them
// without knowing the engine's types.
type NotificationEvent struct {
	UserID    uint64            `json:"user_id"`
	Kind      string            `json:"kind"`
	Payload   map[string]string `json:"payload"`
	EmittedAt string            `json:"emitted_at"`
}
