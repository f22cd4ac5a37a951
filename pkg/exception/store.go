package exception

import "github.com/yanun0323/errors"

var (
	ErrStoreNilDB  = errors.New("store: nil database")
	ErrStoreClosed = errors.New("store: closed")
)
