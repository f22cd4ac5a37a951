package exception

import "github.com/yanun0323/errors"

// Gateway connection errors
var (
	ErrConnectionClosed = errors.New("gateway: connection closed")
	ErrNotConnected     = errors.New("gateway: not connected")
	ErrAlreadyConnected = errors.New("gateway: already connected")
	ErrNilDialer        = errors.New("gateway: nil dialer")
)
