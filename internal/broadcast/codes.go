package broadcast

// Application close codes sent when the server ends a connection.
const (
	CloseRejected         = 4000
	CloseUnauthorized     = 4001
	CloseRemoved          = 4003
	CloseSessionClosed    = 4004
	CloseHeartbeatTimeout = 4008
	CloseSuperseded       = 4009
)
