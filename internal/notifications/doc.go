// Package notifications fans pipeline events out to in-process subscribers
// and, when configured, forwards workflow milestones to an ntfy topic.
//
// The Bus replaces ambient event-emitter style wiring with explicit
// subscribe/unsubscribe handles and typed events, so the set of consumers is
// visible and testable. Delivery is at-least-once per subscriber in the
// normal case but never blocks a publisher: a full subscriber buffer drops
// its oldest message.
package notifications
