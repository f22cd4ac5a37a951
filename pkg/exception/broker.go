package exception

import "github.com/yanun0323/errors"

var (
	// ErrGateway is the root of every error reported by the gateway for a request.
	ErrGateway = errors.New("broker: gateway error")

	ErrSessionClosed      = errors.New("broker: session closed")
	ErrSchedulerClosed    = errors.New("broker: scheduler closed")
	ErrWriteQueueFull     = errors.New("broker: write queue full")
	ErrRequestTimeout     = errors.New("broker: request timed out")
	ErrNoContract         = errors.New("broker: no contract details")
	ErrNoOptionParameters = errors.New("broker: no option parameters")
	ErrSnapshotIncomplete = errors.New("broker: snapshot ended before the request completed")
	ErrDuplicateRequestID = errors.New("broker: duplicate request id")
	ErrNilSend            = errors.New("broker: request has no send procedure")
	ErrIssuerUsed         = errors.New("broker: issuer already used")
)
