// Package feed maintains the WebSocket connection to the upstream tick
// provider.
//
// The Client wraps a single gorilla/websocket connection with read and
// heartbeat loops. The Manager owns the client lifecycle: it subscribes the
// configured symbols (pacing every outbound request through the rate
// limiter), parses inbound trade messages into model.Tick values, applies
// the per-cycle symbol sampling, and reconnects with exponential backoff
// when the connection drops.
package feed
