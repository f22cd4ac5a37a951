package broker

// NoRequestID is the request id of gateway messages not tied to a request.
const NoRequestID int64 = -1

// Contract identifies an instrument on the gateway.
type Contract struct {
	ConID           int64
	Symbol          string
	SecType         string
	LastTradeDate   string
	Strike          float64
	Right           string
	Multiplier      string
	Exchange        string
	PrimaryExchange string
	Currency        string
	LocalSymbol     string
	TradingClass    string
}

// Outbound is one wire request handed to a Conn.
type Outbound interface {
	RequestID() int64
}

type ReqMktData struct {
	ReqID        int64
	Contract     Contract
	GenericTicks string
	Snapshot     bool
}

type ReqContractData struct {
	ReqID    int64
	Contract Contract
}

type ReqHistoricalData struct {
	ReqID       int64
	Contract    Contract
	EndDateTime string
	Duration    string
	BarSize     string
	WhatToShow  string
	UseRTH      bool
	FormatDate  int
}

type ReqSecDefOptParams struct {
	ReqID          int64
	Symbol         string
	FutFopExchange string
	SecType        string
	ConID          int64
}

func (r ReqMktData) RequestID() int64         { return r.ReqID }
func (r ReqContractData) RequestID() int64    { return r.ReqID }
func (r ReqHistoricalData) RequestID() int64  { return r.ReqID }
func (r ReqSecDefOptParams) RequestID() int64 { return r.ReqID }
