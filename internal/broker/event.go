package broker

import (
	"fmt"

	"optionsql/pkg/exception"
)

// EventKind tags a decoded gateway event.
type EventKind uint8

const (
	KindUnknown EventKind = iota
	KindTickPrice
	KindTickSize
	KindTickGeneric
	KindHistoricalBar
	KindHistoricalEnd
	KindContractDetails
	KindContractDetailsEnd
	KindOptionParameters
	KindOptionParametersEnd
	KindOptionComputation
	KindSnapshotEnd
	KindGatewayError
	KindConnectionClosed
)

var kindNames = [...]string{
	KindUnknown:             "unknown",
	KindTickPrice:           "tick_price",
	KindTickSize:            "tick_size",
	KindTickGeneric:         "tick_generic",
	KindHistoricalBar:       "historical_bar",
	KindHistoricalEnd:       "historical_end",
	KindContractDetails:     "contract_details",
	KindContractDetailsEnd:  "contract_details_end",
	KindOptionParameters:    "option_parameters",
	KindOptionParametersEnd: "option_parameters_end",
	KindOptionComputation:   "option_computation",
	KindSnapshotEnd:         "snapshot_end",
	KindGatewayError:        "gateway_error",
	KindConnectionClosed:    "connection_closed",
}

func (k EventKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Event is one decoded gateway event, addressed by correlation id.
type Event interface {
	RequestID() int64
	Kind() EventKind
}

type TickPrice struct {
	ReqID int64
	Field int
	Price float64
	Size  float64
}

type TickSize struct {
	ReqID int64
	Field int
	Size  float64
}

type TickGeneric struct {
	ReqID int64
	Field int
	Value float64
}

type HistoricalBar struct {
	ReqID  int64
	Time   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type HistoricalEnd struct {
	ReqID int64
	Start string
	End   string
}

type ContractDetails struct {
	ReqID    int64
	Contract Contract
	LongName string
	MinTick  float64
}

type ContractDetailsEnd struct {
	ReqID int64
}

type OptionParameters struct {
	ReqID           int64
	Exchange        string
	UnderlyingConID int64
	TradingClass    string
	Multiplier      string
	Expirations     []string
	Strikes         []float64
}

type OptionParametersEnd struct {
	ReqID int64
}

// OptionComputation carries the Greeks for one option contract. Values the
// gateway did not compute are zero.
type OptionComputation struct {
	ReqID      int64
	Field      int
	ImpliedVol float64
	Delta      float64
	Gamma      float64
	Vega       float64
	Theta      float64
	OptPrice   float64
	PvDividend float64
	UndPrice   float64
}

type SnapshotEnd struct {
	ReqID int64
}

// GatewayError is an error or notice reported by the gateway. As an error it
// unwraps to exception.ErrGateway.
type GatewayError struct {
	ReqID   int64
	Code    int
	Message string
}

func (e GatewayError) Error() string {
	if e.ReqID == NoRequestID {
		return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gateway error %d for request %d: %s", e.Code, e.ReqID, e.Message)
}

func (e GatewayError) Unwrap() error {
	return exception.ErrGateway
}

// ConnectionClosed reports that the transport stopped delivering events.
type ConnectionClosed struct {
	Err error
}

func (e TickPrice) RequestID() int64           { return e.ReqID }
func (e TickSize) RequestID() int64            { return e.ReqID }
func (e TickGeneric) RequestID() int64         { return e.ReqID }
func (e HistoricalBar) RequestID() int64       { return e.ReqID }
func (e HistoricalEnd) RequestID() int64       { return e.ReqID }
func (e ContractDetails) RequestID() int64     { return e.ReqID }
func (e ContractDetailsEnd) RequestID() int64  { return e.ReqID }
func (e OptionParameters) RequestID() int64    { return e.ReqID }
func (e OptionParametersEnd) RequestID() int64 { return e.ReqID }
func (e OptionComputation) RequestID() int64   { return e.ReqID }
func (e SnapshotEnd) RequestID() int64         { return e.ReqID }
func (e GatewayError) RequestID() int64        { return e.ReqID }
func (ConnectionClosed) RequestID() int64      { return NoRequestID }

func (TickPrice) Kind() EventKind           { return KindTickPrice }
func (TickSize) Kind() EventKind            { return KindTickSize }
func (TickGeneric) Kind() EventKind         { return KindTickGeneric }
func (HistoricalBar) Kind() EventKind       { return KindHistoricalBar }
func (HistoricalEnd) Kind() EventKind       { return KindHistoricalEnd }
func (ContractDetails) Kind() EventKind     { return KindContractDetails }
func (ContractDetailsEnd) Kind() EventKind  { return KindContractDetailsEnd }
func (OptionParameters) Kind() EventKind    { return KindOptionParameters }
func (OptionParametersEnd) Kind() EventKind { return KindOptionParametersEnd }
func (OptionComputation) Kind() EventKind   { return KindOptionComputation }
func (SnapshotEnd) Kind() EventKind         { return KindSnapshotEnd }
func (GatewayError) Kind() EventKind        { return KindGatewayError }
func (ConnectionClosed) Kind() EventKind    { return KindConnectionClosed }
