// Package protocol defines the JSON messages exchanged over the WebSocket
// connection: server-to-client events (ready, loading, final, error) and
// client-to-server control messages (start, end).
package protocol
