package interfaces

// Connection is a message-oriented duplex channel to one client.
// ARCHITECTURAL DISCOVERY: The presence registry only needs identity and delivery,
// so the transport stays free to implement framing, heartbeats and shutdown.
type Connection interface {
	// ID returns the opaque identifier issued when the connection was accepted.
	// Two connections are the same connection only if their IDs are equal.
	ID() string

	// WriteJSON delivers one structured message to the client (thread-safe).
	// Implementations must not call back into the presence registry.
	WriteJSON(v any) error

	// Close releases the transport. Only the transport layer calls Close.
	Close() error
}
