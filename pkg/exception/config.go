package exception

import "github.com/yanun0323/errors"

var (
	ErrConfigInvalid     = errors.New("config: invalid value")
	ErrConfigEmptyTicker = errors.New("config: empty ticker universe")
)
