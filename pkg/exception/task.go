package exception

import "github.com/yanun0323/errors"

var (
	ErrEmptySymbol     = errors.New("task: empty symbol")
	ErrNoBars          = errors.New("task: no historical bars")
	ErrNilSubmitter    = errors.New("task: nil submitter")
	ErrUnknownJoinMode = errors.New("task: unknown join policy")
)
