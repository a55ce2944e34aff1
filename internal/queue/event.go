// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into audit log lines.
package queue

// AuthEventsQueue is the durable queue carrying authentication audit events.
const AuthEventsQueue = "auth.events"

// Event kinds published by the auth service.
const (
	EventAccountRegistered = "account.registered"
	EventTokenRotated      = "token.rotated"
	EventTokenRevoked      = "token.revoked"
	EventTokensRevokedAll  = "token.revoked_all"
)

// AuthEvent is published on security-relevant transitions of the account and
// token lifecycle.  It carries enough information for downstream consumers
// to log or alert without querying the primary database.  Client IPs are
// advisory metadata, never authorization input.
type AuthEvent struct {
	Kind       string `json:"kind"`
	AccountID  string `json:"account_id"`
	Email      string `json:"email,omitempty"`
	ClientIP   string `json:"client_ip,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
