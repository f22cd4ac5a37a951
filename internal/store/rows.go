package store

import (
	"time"

	"optionsql/internal/model"

	"github.com/shopspring/decimal"
)

const priceplaces = 4

// TickerRow is one row of the ticker table.
type TickerRow struct {
	TickerSymbol     string          `gorm:"column:ticker_symbol;primaryKey" json:"ticker_symbol"`
	CurrentPrice     decimal.Decimal `gorm:"column:current_price;type:numeric(18,4)" json:"current_price"`
	Segment          string          `gorm:"column:segment" json:"segment"`
	IVHistoricalLow  float64         `gorm:"column:iv_historical_low" json:"iv_historical_low"`
	IVHistoricalHigh float64         `gorm:"column:iv_historical_high" json:"iv_historical_high"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (TickerRow) TableName() string { return "ticker" }

// OptionChainRow is one expiration and strike of the optionchains table,
// with the call and put side by side.
type OptionChainRow struct {
	TickerSymbol   string          `gorm:"column:ticker_symbol;primaryKey" json:"ticker_symbol"`
	ExpirationDate time.Time       `gorm:"column:expiration_date;type:date;primaryKey" json:"expiration_date"`
	StrikePrice    decimal.Decimal `gorm:"column:strike_price;type:numeric(18,4);primaryKey" json:"strike_price"`

	CallBid    decimal.Decimal `gorm:"column:call_bid;type:numeric(18,4)" json:"call_bid"`
	CallAsk    decimal.Decimal `gorm:"column:call_ask;type:numeric(18,4)" json:"call_ask"`
	CallMid    decimal.Decimal `gorm:"column:call_mid;type:numeric(18,4)" json:"call_mid"`
	CallVolume int64           `gorm:"column:call_volume" json:"call_volume"`
	CallOI     int64           `gorm:"column:call_oi" json:"call_oi"`
	CallDelta  float64         `gorm:"column:call_delta" json:"call_delta"`
	CallGamma  float64         `gorm:"column:call_gamma" json:"call_gamma"`
	CallTheta  float64         `gorm:"column:call_theta" json:"call_theta"`
	CallVega   float64         `gorm:"column:call_vega" json:"call_vega"`
	CallIV     float64         `gorm:"column:call_iv" json:"call_iv"`

	PutBid    decimal.Decimal `gorm:"column:put_bid;type:numeric(18,4)" json:"put_bid"`
	PutAsk    decimal.Decimal `gorm:"column:put_ask;type:numeric(18,4)" json:"put_ask"`
	PutMid    decimal.Decimal `gorm:"column:put_mid;type:numeric(18,4)" json:"put_mid"`
	PutVolume int64           `gorm:"column:put_volume" json:"put_volume"`
	PutOI     int64           `gorm:"column:put_oi" json:"put_oi"`
	PutDelta  float64         `gorm:"column:put_delta" json:"put_delta"`
	PutGamma  float64         `gorm:"column:put_gamma" json:"put_gamma"`
	PutTheta  float64         `gorm:"column:put_theta" json:"put_theta"`
	PutVega   float64         `gorm:"column:put_vega" json:"put_vega"`
	PutIV     float64         `gorm:"column:put_iv" json:"put_iv"`
}

func (OptionChainRow) TableName() string { return "optionchains" }

func price(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(priceplaces)
}

// NewTickerRow maps a snapshot to its ticker row.
func NewTickerRow(snap model.TickerSnapshot) TickerRow {
	return TickerRow{
		TickerSymbol:     snap.Ticker.Symbol,
		CurrentPrice:     price(snap.Quote.Price),
		Segment:          snap.Ticker.Segment,
		IVHistoricalLow:  snap.IVRange.Low,
		IVHistoricalHigh: snap.IVRange.High,
		UpdatedAt:        snap.FetchedAt,
	}
}

// NewOptionChainRows maps a snapshot's chain to one row per complete call and
// put pair.
func NewOptionChainRows(snap model.TickerSnapshot) []OptionChainRow {
	strikes := snap.Strikes()
	rows := make([]OptionChainRow, 0, len(strikes))
	for _, s := range strikes {
		c, p := s.Call, s.Put
		rows = append(rows, OptionChainRow{
			TickerSymbol:   snap.Ticker.Symbol,
			ExpirationDate: s.Expiration,
			StrikePrice:    price(s.Strike),

			CallBid:    price(c.Bid),
			CallAsk:    price(c.Ask),
			CallMid:    price(c.Mid),
			CallVolume: c.Volume,
			CallOI:     c.OpenInterest,
			CallDelta:  c.Delta,
			CallGamma:  c.Gamma,
			CallTheta:  c.Theta,
			CallVega:   c.Vega,
			CallIV:     c.ImpliedVolatility,

			PutBid:    price(p.Bid),
			PutAsk:    price(p.Ask),
			PutMid:    price(p.Mid),
			PutVolume: p.Volume,
			PutOI:     p.OpenInterest,
			PutDelta:  p.Delta,
			PutGamma:  p.Gamma,
			PutTheta:  p.Theta,
			PutVega:   p.Vega,
			PutIV:     p.ImpliedVolatility,
		})
	}
	return rows
}
