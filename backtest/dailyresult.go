package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantetra/stratsim/order"
)

// DailyResult is the accounting record for one calendar day of a run: the
// trades that filled, the position carried across the day and the realised
// and mark-to-market P&L net of costs
type DailyResult struct {
	Date       time.Time
	ClosePrice float64
	PreClose   float64

	Trades     []*order.Trade
	TradeCount int

	StartPos float64
	EndPos   float64

	Turnover   decimal.Decimal
	Commission decimal.Decimal
	Slippage   decimal.Decimal

	TradingPnL decimal.Decimal
	HoldingPnL decimal.Decimal
	TotalPnL   decimal.Decimal
	NetPnL     decimal.Decimal
}

func newDailyResult(date time.Time, closePrice float64) *DailyResult {
	return &DailyResult{
		Date:       date,
		ClosePrice: closePrice,
	}
}

func (d *DailyResult) addTrade(t *order.Trade) {
	d.Trades = append(d.Trades, t)
}

// calculatePnL finalises the day once its boundary has passed. Holding P&L
// marks the carried position to market against the previous close, trading
// P&L marks each fill against the day's close
func (d *DailyResult) calculatePnL(preClose, startPos float64, size, rate, slippagePerUnit decimal.Decimal) {
	d.PreClose = preClose
	d.StartPos = startPos
	d.EndPos = startPos
	d.TradeCount = len(d.Trades)

	closePrice := decimal.NewFromFloat(d.ClosePrice)
	d.HoldingPnL = decimal.NewFromFloat(startPos).
		Mul(closePrice.Sub(decimal.NewFromFloat(preClose))).
		Mul(size)

	d.Turnover = decimal.Zero
	d.Commission = decimal.Zero
	d.Slippage = decimal.Zero
	d.TradingPnL = decimal.Zero
	for i := range d.Trades {
		posChange := order.PositionChange(d.Trades[i].Direction, d.Trades[i].Offset, d.Trades[i].Volume)
		d.EndPos += posChange

		price := decimal.NewFromFloat(d.Trades[i].Price)
		volume := decimal.NewFromFloat(d.Trades[i].Volume)
		turnover := price.Mul(volume).Mul(size)

		d.TradingPnL = d.TradingPnL.Add(
			decimal.NewFromFloat(posChange).Mul(closePrice.Sub(price)).Mul(size))
		d.Turnover = d.Turnover.Add(turnover)
		d.Commission = d.Commission.Add(turnover.Mul(rate))
		d.Slippage = d.Slippage.Add(volume.Mul(size).Mul(slippagePerUnit))
	}

	d.TotalPnL = d.TradingPnL.Add(d.HoldingPnL)
	d.NetPnL = d.TotalPnL.Sub(d.Commission).Sub(d.Slippage)
}
