package exception

import "github.com/yanun0323/errors"

var (
	ErrAnalyzeNilExecutor = errors.New("analyze: nil executor")
	ErrAnalyzeNoDir       = errors.New("analyze: no script directory")
)
