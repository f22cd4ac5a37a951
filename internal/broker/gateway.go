package broker

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"optionsql/pkg/exception"

	"github.com/scmhub/ibapi"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultEventBuffer    = 4096
)

// IBDialer connects to TWS or IB Gateway through the ibapi client.
type IBDialer struct {
	Host     string
	Port     int
	ClientID int64
	// ConnectTimeout bounds the socket connect and API handshake.
	ConnectTimeout time.Duration
	// EventBuffer is the number of translated events held for Read.
	EventBuffer int
}

func (d IBDialer) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

func (d IBDialer) Dial(ctx context.Context) (Conn, error) {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	size := d.EventBuffer
	if size <= 0 {
		size = DefaultEventBuffer
	}

	w := newIBWrapper(size)
	client := ibapi.NewEClient(w)

	result := make(chan error, 1)
	go func() {
		result <- client.Connect(d.Host, d.Port, d.ClientID)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			return nil, errors.Wrapf(err, "connect %s", d.Addr())
		}
	case <-timer.C:
		go abandon(client, result)
		return nil, fmt.Errorf("%w: connect %s timed out after %s", exception.ErrNotConnected, d.Addr(), timeout)
	case <-ctx.Done():
		go abandon(client, result)
		return nil, ctx.Err()
	}

	logs.Infof("gateway %s connected, client id: %d, server version: %d", d.Addr(), d.ClientID, client.ServerVersion())
	return &ibConn{client: client, w: w}, nil
}

// abandon disconnects a client whose connect attempt was given up on.
func abandon(client *ibapi.EClient, result <-chan error) {
	if err := <-result; err == nil {
		_ = client.Disconnect()
	}
}

type ibConn struct {
	client *ibapi.EClient
	w      *ibWrapper
}

func (c *ibConn) Read() (Event, error) {
	select {
	case ev := <-c.w.events:
		return ev, nil
	default:
	}

	select {
	case ev := <-c.w.events:
		return ev, nil
	case <-c.w.gone:
		select {
		case ev := <-c.w.events:
			return ev, nil
		default:
		}
		return nil, exception.ErrConnectionClosed
	case <-c.w.closed:
		return nil, exception.ErrConnectionClosed
	}
}

func (c *ibConn) Write(out Outbound) error {
	if !c.client.IsConnected() {
		return exception.ErrNotConnected
	}
	switch r := out.(type) {
	case ReqMktData:
		c.client.ReqMktData(r.ReqID, ibContract(r.Contract), r.GenericTicks, r.Snapshot, false, nil)
	case ReqContractData:
		c.client.ReqContractDetails(r.ReqID, ibContract(r.Contract))
	case ReqHistoricalData:
		c.client.ReqHistoricalData(r.ReqID, ibContract(r.Contract), r.EndDateTime, r.Duration, r.BarSize,
			r.WhatToShow, r.UseRTH, r.FormatDate, false, nil)
	case ReqSecDefOptParams:
		c.client.ReqSecDefOptParams(r.ReqID, r.Symbol, r.FutFopExchange, r.SecType, r.ConID)
	default:
		return fmt.Errorf("%w: outbound %T", exception.ErrInvalidArgument, out)
	}
	return nil
}

func (c *ibConn) Close() error {
	c.w.close()
	if !c.client.IsConnected() {
		return nil
	}
	return c.client.Disconnect()
}

func ibContract(c Contract) *ibapi.Contract {
	return &ibapi.Contract{
		ConID:                        c.ConID,
		Symbol:                       c.Symbol,
		SecType:                      c.SecType,
		LastTradeDateOrContractMonth: c.LastTradeDate,
		Strike:                       c.Strike,
		Right:                        c.Right,
		Multiplier:                   c.Multiplier,
		Exchange:                     c.Exchange,
		PrimaryExchange:              c.PrimaryExchange,
		Currency:                     c.Currency,
		LocalSymbol:                  c.LocalSymbol,
		TradingClass:                 c.TradingClass,
	}
}

func fromIBContract(c ibapi.Contract) Contract {
	return Contract{
		ConID:           c.ConID,
		Symbol:          c.Symbol,
		SecType:         c.SecType,
		LastTradeDate:   c.LastTradeDateOrContractMonth,
		Strike:          c.Strike,
		Right:           c.Right,
		Multiplier:      c.Multiplier,
		Exchange:        c.Exchange,
		PrimaryExchange: c.PrimaryExchange,
		Currency:        c.Currency,
		LocalSymbol:     c.LocalSymbol,
		TradingClass:    c.TradingClass,
	}
}

// ibWrapper receives ibapi callbacks on the client's decoder goroutine and
// turns the ones a request can consume into Events. Every other callback
// falls through to the embedded default wrapper.
type ibWrapper struct {
	ibapi.Wrapper

	events chan Event
	gone   chan struct{}
	closed chan struct{}

	goneOnce  sync.Once
	closeOnce sync.Once
}

func newIBWrapper(size int) *ibWrapper {
	return &ibWrapper{
		events: make(chan Event, size),
		gone:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// post blocks while the buffer is full, holding back the client's decoder
// until the session catches up.
func (w *ibWrapper) post(ev Event) {
	select {
	case w.events <- ev:
	case <-w.closed:
	}
}

func (w *ibWrapper) close() {
	w.closeOnce.Do(func() { close(w.closed) })
}

func (w *ibWrapper) TickPrice(reqID ibapi.TickerID, tickType ibapi.TickType, price float64, _ ibapi.TickAttrib) {
	w.post(TickPrice{ReqID: int64(reqID), Field: int(tickType), Price: price})
}

func (w *ibWrapper) TickSize(reqID ibapi.TickerID, tickType ibapi.TickType, size ibapi.Decimal) {
	w.post(TickSize{ReqID: int64(reqID), Field: int(tickType), Size: decimalFloat(size)})
}

func (w *ibWrapper) TickGeneric(reqID ibapi.TickerID, tickType ibapi.TickType, value float64) {
	w.post(TickGeneric{ReqID: int64(reqID), Field: int(tickType), Value: unset(value)})
}

func (w *ibWrapper) TickOptionComputation(reqID ibapi.TickerID, tickType ibapi.TickType, _ int64,
	impliedVol, delta, optPrice, pvDividend, gamma, vega, theta, undPrice float64) {
	w.post(OptionComputation{
		ReqID:      int64(reqID),
		Field:      int(tickType),
		ImpliedVol: unset(impliedVol),
		Delta:      unset(delta),
		Gamma:      unset(gamma),
		Vega:       unset(vega),
		Theta:      unset(theta),
		OptPrice:   unset(optPrice),
		PvDividend: unset(pvDividend),
		UndPrice:   unset(undPrice),
	})
}

func (w *ibWrapper) TickSnapshotEnd(reqID int64) {
	w.post(SnapshotEnd{ReqID: reqID})
}

func (w *ibWrapper) Error(reqID ibapi.TickerID, _ int64, errCode int64, errString string, _ string) {
	w.post(GatewayError{ReqID: int64(reqID), Code: int(errCode), Message: errString})
}

func (w *ibWrapper) ContractDetails(reqID int64, details *ibapi.ContractDetails) {
	if details == nil {
		return
	}
	w.post(ContractDetails{
		ReqID:    reqID,
		Contract: fromIBContract(details.Contract),
		LongName: details.LongName,
		MinTick:  details.MinTick,
	})
}

func (w *ibWrapper) ContractDetailsEnd(reqID int64) {
	w.post(ContractDetailsEnd{ReqID: reqID})
}

func (w *ibWrapper) HistoricalData(reqID int64, bar *ibapi.Bar) {
	if bar == nil {
		return
	}
	w.post(HistoricalBar{
		ReqID:  reqID,
		Time:   bar.Date,
		Open:   bar.Open,
		High:   bar.High,
		Low:    bar.Low,
		Close:  bar.Close,
		Volume: decimalFloat(bar.Volume),
	})
}

func (w *ibWrapper) HistoricalDataEnd(reqID int64, startDateStr string, endDateStr string) {
	w.post(HistoricalEnd{ReqID: reqID, Start: startDateStr, End: endDateStr})
}

func (w *ibWrapper) SecurityDefinitionOptionParameter(reqID int64, exchange string, underlyingConID int64,
	tradingClass string, multiplier string, expirations []string, strikes []float64) {
	w.post(OptionParameters{
		ReqID:           reqID,
		Exchange:        exchange,
		UnderlyingConID: underlyingConID,
		TradingClass:    tradingClass,
		Multiplier:      multiplier,
		Expirations:     expirations,
		Strikes:         strikes,
	})
}

func (w *ibWrapper) SecurityDefinitionOptionParameterEnd(reqID int64) {
	w.post(OptionParametersEnd{ReqID: reqID})
}

func (w *ibWrapper) ConnectionClosed() {
	logs.Info("gateway connection closed")
	w.goneOnce.Do(func() { close(w.gone) })
}

// unset maps the gateway's "no value" markers to zero.
func unset(v float64) float64 {
	if v == math.MaxFloat64 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// decimalFloat converts an ibapi size. Unset sizes become zero.
func decimalFloat(d ibapi.Decimal) float64 {
	f, err := strconv.ParseFloat(fmt.Sprint(d), 64)
	if err != nil {
		return 0
	}
	return unset(f)
}
