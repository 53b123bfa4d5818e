// Package math provides the statistical helpers result calculation is built
// from. Values are decimal to keep accounting exact; square roots fall back to
// float64 as decimals cannot express them
package math

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrNoValues is returned when a calculation received an empty set
var ErrNoValues = errors.New("cannot calculate average of no values")

// ArithmeticMean is the basic form of calculating an average.
// Divide the sum of all values by the length of values
func ArithmeticMean(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) == 0 {
		return decimal.Zero, ErrNoValues
	}
	var sumOfValues decimal.Decimal
	for x := range values {
		sumOfValues = sumOfValues.Add(values[x])
	}
	return sumOfValues.Div(decimal.NewFromInt(int64(len(values)))), nil
}

// FinancialGeometricMean is a modified geometric average to assess the
// negative returns of investments. It adds one to each value, so negative
// percentage movements can be differentiated from positive ones
func FinancialGeometricMean(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) == 0 {
		return decimal.Zero, ErrNoValues
	}
	product := 1.0
	for i := range values {
		if values[i].LessThan(decimal.NewFromInt(-1)) {
			// cannot lose more than 100%, figures are incorrect
			return decimal.Zero, nil
		}
		modVal, _ := values[i].Add(decimal.NewFromInt(1)).Float64()
		product *= modVal
	}
	geometricPower := math.Pow(product, 1/float64(len(values)))
	return decimal.NewFromFloat(geometricPower - 1), nil
}

// PopulationStandardDeviation calculates standard deviation using  population
// based calculation
func PopulationStandardDeviation(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) < 2 {
		return decimal.Zero, nil
	}
	valAvg, err := ArithmeticMean(values)
	if err != nil {
		return decimal.Zero, err
	}
	diffs := make([]decimal.Decimal, len(values))
	for x := range values {
		diffs[x] = values[x].Sub(valAvg).Pow(decimal.NewFromInt(2))
	}
	var diffAvg decimal.Decimal
	diffAvg, err = ArithmeticMean(diffs)
	if err != nil {
		return decimal.Zero, err
	}
	f, _ := diffAvg.Float64()
	return decimal.NewFromFloat(math.Sqrt(f)), nil
}

// SampleStandardDeviation standard deviation is a statistic that measures the
// dispersion of a dataset relative to its mean and is calculated as the
// square root of the variance
func SampleStandardDeviation(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) < 2 {
		return decimal.Zero, nil
	}
	mean, err := ArithmeticMean(values)
	if err != nil {
		return decimal.Zero, err
	}
	var combined decimal.Decimal
	for i := range values {
		combined = combined.Add(values[i].Sub(mean).Pow(decimal.NewFromInt(2)))
	}
	avg := combined.Div(decimal.NewFromInt(int64(len(values) - 1)))
	f, _ := avg.Float64()
	return decimal.NewFromFloat(math.Sqrt(f)), nil
}

// SharpeRatio returns sharpe ratio of backtest compared to risk-free
func SharpeRatio(movementPerCandle []decimal.Decimal, riskFreeRatePerInterval, average decimal.Decimal) (decimal.Decimal, error) {
	if len(movementPerCandle) <= 1 {
		return decimal.Zero, nil
	}
	excessReturns := make([]decimal.Decimal, len(movementPerCandle))
	for i := range movementPerCandle {
		excessReturns[i] = movementPerCandle[i].Sub(riskFreeRatePerInterval)
	}
	standardDeviation, err := SampleStandardDeviation(excessReturns)
	if err != nil {
		return decimal.Zero, err
	}
	if standardDeviation.IsZero() {
		return decimal.Zero, nil
	}
	return average.Sub(riskFreeRatePerInterval).Div(standardDeviation), nil
}

// SortinoRatio returns sortino ratio of backtest compared to risk-free
func SortinoRatio(movementPerCandle []decimal.Decimal, riskFreeRatePerInterval, average decimal.Decimal) (decimal.Decimal, error) {
	if len(movementPerCandle) == 0 {
		return decimal.Zero, ErrNoValues
	}
	var totalNegativeResultsSquared decimal.Decimal
	for x := range movementPerCandle {
		if movementPerCandle[x].Sub(riskFreeRatePerInterval).IsNegative() {
			totalNegativeResultsSquared = totalNegativeResultsSquared.Add(
				movementPerCandle[x].Sub(riskFreeRatePerInterval).Pow(decimal.NewFromInt(2)))
		}
	}
	f, _ := totalNegativeResultsSquared.Div(decimal.NewFromInt(int64(len(movementPerCandle)))).Float64()
	averageDownsideDeviation := decimal.NewFromFloat(math.Sqrt(f))
	if averageDownsideDeviation.IsZero() {
		return decimal.Zero, nil
	}
	return average.Sub(riskFreeRatePerInterval).Div(averageDownsideDeviation), nil
}
