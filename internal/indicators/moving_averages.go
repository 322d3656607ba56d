package indicators

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// EMA calculates an Exponential Moving Average series.
//
// The output always has the same length as the input. For indices where
// fewer than period data points exist, the value is the running average of
// all prices seen so far. From index period onward the standard recurrence
// applies with smoothing factor 2/(period+1), seeded by the immediately
// preceding output value.
func EMA(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 || period <= 0 {
		return out
	}

	multiplier := 2.0 / float64(period+1)

	sum := 0.0
	for i, price := range prices {
		if i < period {
			sum += price
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = (price * multiplier) + (out[i-1] * (1 - multiplier))
	}

	return out
}

// SMA calculates a Simple Moving Average series.
//
// Same length-preserving contract as EMA: early indices use all available
// history, later indices use a true trailing window of the given period.
func SMA(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 || period <= 0 {
		return out
	}

	sum := 0.0
	for i, price := range prices {
		sum += price
		if i >= period {
			sum -= prices[i-period]
			out[i] = sum / float64(period)
			continue
		}
		out[i] = sum / float64(i+1)
	}

	return out
}
