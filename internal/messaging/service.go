// Package messaging delivers outbound replies to users through the
// chat-automation platform and raises operator alerts over SMS.
package messaging

import "context"

// Service defines a pluggable reply delivery abstraction. Replies go
// back through the chat platform as custom-field writes keyed by
// subscriber id; the platform's own automation forwards the field
// contents to the user's DM thread.
type Service interface {
	// SendReply writes up to three reply chunks for the subscriber,
	// echoing the inbound text for audit. Empty chunks are omitted
	// from the payload.
	SendReply(ctx context.Context, subscriberID string, chunks []string, inboundEcho string) error
}

// Notifier raises out-of-band alerts for the human operator.
type Notifier interface {
	NotifyOperator(ctx context.Context, message string) error
}
