package domain

// ConnectionStatus is the health of the streaming feed as seen by the UI.
// The feed manager is its sole writer.
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)
