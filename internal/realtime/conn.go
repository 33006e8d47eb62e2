package realtime

// Conn is a live bidirectional message channel to a single client,
// produced by the network layer that accepted the connection. It is
// satisfied directly by *websocket.Conn from gorilla/websocket.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}
