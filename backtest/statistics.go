package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantetra/stratsim/common"
	gctmath "github.com/quantetra/stratsim/common/math"
	"github.com/quantetra/stratsim/log"
)

// Statistics is the read-only whole-run performance summary, derived entirely
// from the daily result series
type Statistics struct {
	StartDate time.Time
	EndDate   time.Time

	TotalDays  int
	ProfitDays int
	LossDays   int

	StartBalance decimal.Decimal
	EndBalance   decimal.Decimal

	// MaxDrawdown is the largest peak to trough balance fall, reported as a
	// negative figure. MaxDrawdownPercent is the same fall relative to the peak
	MaxDrawdown        decimal.Decimal
	MaxDrawdownPercent decimal.Decimal

	TotalNetPnL     decimal.Decimal
	TotalCommission decimal.Decimal
	TotalSlippage   decimal.Decimal
	TotalTurnover   decimal.Decimal
	TotalTradeCount int

	DailyNetPnL decimal.Decimal

	// TotalReturn and AnnualReturn are percentages
	TotalReturn  decimal.Decimal
	AnnualReturn decimal.Decimal
	// DailyReturn is the arithmetic mean of the day over day return series;
	// CompoundDailyReturn is its financial geometric counterpart
	DailyReturn         decimal.Decimal
	CompoundDailyReturn decimal.Decimal
	ReturnStd           decimal.Decimal
	// AnnualVolatility is the population deviation of the full observed
	// return series scaled to the trading year
	AnnualVolatility decimal.Decimal
	SharpeRatio      decimal.Decimal
	SortinoRatio     decimal.Decimal
}

// calculateStatistics is a pure reduction over the ordered daily result
// series. Empty and single day series yield zero guarded outputs rather than
// NaN or Inf
func calculateStatistics(res *Result, riskFreeRate decimal.Decimal, annualDays int) *Statistics {
	s := &Statistics{
		StartBalance: res.StartCapital,
		EndBalance:   res.StartCapital,
	}
	if annualDays <= 0 {
		annualDays = DefaultAnnualDays
	}
	if len(res.DailyResults) == 0 {
		return s
	}

	s.StartDate = res.DailyResults[0].Date
	s.EndDate = res.DailyResults[len(res.DailyResults)-1].Date
	s.TotalDays = len(res.DailyResults)

	balance := res.StartCapital
	// the drawdown peak tracks the balance series itself, so the first day
	// can never report a drawdown
	var highLevel decimal.Decimal
	returns := make([]decimal.Decimal, 0, len(res.DailyResults))
	for i := range res.DailyResults {
		dr := res.DailyResults[i]
		preBalance := balance
		balance = balance.Add(dr.NetPnL)

		if dr.NetPnL.IsPositive() {
			s.ProfitDays++
		} else if dr.NetPnL.IsNegative() {
			s.LossDays++
		}

		if preBalance.IsPositive() {
			returns = append(returns, balance.Div(preBalance).Sub(decimal.NewFromInt(1)))
		} else {
			returns = append(returns, decimal.Zero)
		}

		if i == 0 || balance.GreaterThan(highLevel) {
			highLevel = balance
		}
		drawdown := balance.Sub(highLevel)
		if drawdown.LessThan(s.MaxDrawdown) {
			s.MaxDrawdown = drawdown
			if highLevel.IsPositive() {
				s.MaxDrawdownPercent = drawdown.Div(highLevel).Mul(decimal.NewFromInt(100))
			}
		}

		s.TotalNetPnL = s.TotalNetPnL.Add(dr.NetPnL)
		s.TotalCommission = s.TotalCommission.Add(dr.Commission)
		s.TotalSlippage = s.TotalSlippage.Add(dr.Slippage)
		s.TotalTurnover = s.TotalTurnover.Add(dr.Turnover)
		s.TotalTradeCount += dr.TradeCount
	}
	s.EndBalance = balance

	totalDays := decimal.NewFromInt(int64(s.TotalDays))
	annual := decimal.NewFromInt(int64(annualDays))
	s.DailyNetPnL = s.TotalNetPnL.Div(totalDays)
	if res.StartCapital.IsPositive() {
		s.TotalReturn = s.EndBalance.Div(res.StartCapital).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
		s.AnnualReturn = s.TotalReturn.Div(totalDays).Mul(annual)
	}

	mean, err := gctmath.ArithmeticMean(returns)
	if err != nil {
		log.Errorf(log.Statistics, "daily return mean: %v", err)
		return s
	}
	s.DailyReturn = mean
	s.CompoundDailyReturn, err = gctmath.FinancialGeometricMean(returns)
	if err != nil {
		log.Errorf(log.Statistics, "compound daily return: %v", err)
		return s
	}
	s.ReturnStd, err = gctmath.SampleStandardDeviation(returns)
	if err != nil {
		log.Errorf(log.Statistics, "daily return deviation: %v", err)
		return s
	}
	annualScale := decimal.NewFromFloat(math.Sqrt(float64(annualDays)))
	populationStd, err := gctmath.PopulationStandardDeviation(returns)
	if err != nil {
		log.Errorf(log.Statistics, "return population deviation: %v", err)
		return s
	}
	s.AnnualVolatility = populationStd.Mul(annualScale)

	dailyRiskFree := riskFreeRate.Div(annual)
	sharpe, err := gctmath.SharpeRatio(returns, dailyRiskFree, mean)
	if err != nil {
		log.Errorf(log.Statistics, "sharpe ratio: %v", err)
		return s
	}
	s.SharpeRatio = sharpe.Mul(annualScale)
	sortino, err := gctmath.SortinoRatio(returns, dailyRiskFree, mean)
	if err != nil {
		log.Errorf(log.Statistics, "sortino ratio: %v", err)
		return s
	}
	s.SortinoRatio = sortino.Mul(annualScale)
	return s
}

// PrintResult logs the performance report through the statistics sublogger
func (s *Statistics) PrintResult() {
	sep := "------------------------------------------"
	log.Info(log.Statistics, sep)
	log.Infof(log.Statistics, "start date: %v", s.StartDate.Format(common.SimpleDateFormat))
	log.Infof(log.Statistics, "end date: %v", s.EndDate.Format(common.SimpleDateFormat))
	log.Infof(log.Statistics, "total days: %v, profit days: %v, loss days: %v",
		s.TotalDays, s.ProfitDays, s.LossDays)
	log.Infof(log.Statistics, "start balance: %v", s.StartBalance.Round(2))
	log.Infof(log.Statistics, "end balance: %v", s.EndBalance.Round(2))
	log.Infof(log.Statistics, "max drawdown: %v (%v%%)",
		s.MaxDrawdown.Round(2), s.MaxDrawdownPercent.Round(2))
	log.Infof(log.Statistics, "total net pnl: %v", s.TotalNetPnL.Round(2))
	log.Infof(log.Statistics, "total commission: %v", s.TotalCommission.Round(2))
	log.Infof(log.Statistics, "total slippage: %v", s.TotalSlippage.Round(2))
	log.Infof(log.Statistics, "total turnover: %v", s.TotalTurnover.Round(2))
	log.Infof(log.Statistics, "total trade count: %v", s.TotalTradeCount)
	log.Infof(log.Statistics, "total return: %v%%", s.TotalReturn.Round(2))
	log.Infof(log.Statistics, "annual return: %v%%", s.AnnualReturn.Round(2))
	log.Infof(log.Statistics, "daily return: %v%%", s.DailyReturn.Mul(decimal.NewFromInt(100)).Round(4))
	log.Infof(log.Statistics, "compound daily return: %v%%", s.CompoundDailyReturn.Mul(decimal.NewFromInt(100)).Round(4))
	log.Infof(log.Statistics, "return std: %v", s.ReturnStd.Round(4))
	log.Infof(log.Statistics, "annual volatility: %v", s.AnnualVolatility.Round(4))
	log.Infof(log.Statistics, "sharpe ratio: %v", s.SharpeRatio.Round(2))
	log.Infof(log.Statistics, "sortino ratio: %v", s.SortinoRatio.Round(2))
	log.Info(log.Statistics, sep)
}
