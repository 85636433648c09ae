// Package transport receives workout events over HTTP.
//
// Events arrive as JSON, either bare or wrapped in a Pub/Sub push envelope.
// Response codes drive the queue's redelivery: lock conflicts and transient
// failures are redelivered, malformed events and permanent configuration
// errors are acknowledged.
package transport
