// Package timeouts defines shared timeout constants for the operator process.
package timeouts

import "time"

// LedgerRequest caps a single JSON API round trip (query, create, exercise).
const LedgerRequest = 10 * time.Second

// StreamHandshake caps the websocket upgrade for the ledger event stream.
const StreamHandshake = 10 * time.Second

// ReconnectMin is the first delay before re-opening a dropped event stream.
const ReconnectMin = 500 * time.Millisecond

// ReconnectMax caps the delay between event stream reconnect attempts.
const ReconnectMax = 30 * time.Second

// ReadHeader limits how long the metrics HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests on stop.
const Shutdown = 5 * time.Second

// HealthPoll is the longest pause between health checks while probing.
const HealthPoll = time.Second
