package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/internal/domain"
)

func bars(closes ...float64) domain.Series {
	out := make(domain.Series, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{Timestamp: int64(i+1) * 86400, Close: c}
	}
	return out
}

func sig(bar int, side domain.Side, price float64) domain.Signal {
	return domain.Signal{Timestamp: int64(bar+1) * 86400, Side: side, Price: price}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{InitialCapital: 1000}.Validate())
	assert.NoError(t, Config{InitialCapital: 1000, SizeFraction: 1}.Validate())

	for _, cfg := range []Config{
		{InitialCapital: 0},
		{InitialCapital: -5},
		{InitialCapital: 1000, SizeFraction: -0.1},
		{InitialCapital: 1000, SizeFraction: 1.5},
	} {
		err := cfg.Validate()
		require.Error(t, err)
		assert.Equal(t, domain.KindInvalidParams, domain.KindOf(err))
	}
}

func TestRunNoSignalsFlatCurve(t *testing.T) {
	b := bars(10, 11, 12, 13)
	res, err := Run(b, nil, Config{InitialCapital: 5000})
	require.NoError(t, err)

	require.Len(t, res.EquityCurve, len(b))
	for _, pt := range res.EquityCurve {
		assert.EqualValues(t, 5000, pt.Value)
		assert.EqualValues(t, 5000, pt.Cash)
		assert.EqualValues(t, 0, pt.PositionValue)
	}
	assert.Empty(t, res.TradeLog)
	assert.EqualValues(t, 5000, res.FinalValue)
	assert.EqualValues(t, 0, res.TotalReturnPct)
	assert.Equal(t, 0, res.Metrics.TotalTrades)
	assert.Equal(t, "Insufficient signals for analysis", res.Metrics.Verdict)
}

func TestRunFullSimulation(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 10, 9, 8, 7, 6, 10, 12, 14, 16, 18}
	b := bars(closes...)
	signals := []domain.Signal{
		sig(4, domain.SideBuy, 14),
		sig(6, domain.SideSell, 9),
		sig(11, domain.SideBuy, 12),
	}

	res, err := Run(b, signals, Config{InitialCapital: 10000, SizeFraction: 1.0})
	require.NoError(t, err)

	require.Len(t, res.TradeLog, 4)
	require.Len(t, res.EquityCurve, len(b))

	buy1 := res.TradeLog[0]
	assert.Equal(t, domain.SideBuy, buy1.Side)
	assert.Equal(t, int64(714), buy1.Quantity) // floor(10000 / 14)
	assert.EqualValues(t, 14, buy1.Price)

	sell := res.TradeLog[1]
	assert.Equal(t, domain.SideSell, sell.Side)
	assert.EqualValues(t, -3570, sell.PnL) // (9 - 14) * 714
	assert.EqualValues(t, -3570, sell.CumulativePnL)

	buy2 := res.TradeLog[2]
	assert.Equal(t, domain.SideBuy, buy2.Side)
	assert.Equal(t, int64(535), buy2.Quantity) // floor(6430 / 12)

	closeRec := res.TradeLog[3]
	assert.Equal(t, domain.SideClose, closeRec.Side)
	assert.Equal(t, b[len(b)-1].Timestamp, closeRec.Timestamp)
	assert.EqualValues(t, 3210, closeRec.PnL) // (18 - 12) * 535
	assert.EqualValues(t, -360, closeRec.CumulativePnL)

	assert.EqualValues(t, 9640, res.FinalValue)
	assert.EqualValues(t, -3.6, res.TotalReturnPct)
	assert.Equal(t, 2, res.Metrics.TotalTrades)

	// curve marks to market through the open position
	assert.EqualValues(t, 10000, res.EquityCurve[0].Value)
	assert.EqualValues(t, 10000, res.EquityCurve[4].Value) // entry bar, fully invested
	assert.EqualValues(t, 4, res.EquityCurve[4].Cash)
	assert.EqualValues(t, 714*10+4, res.EquityCurve[5].Value)
}

func TestRunIgnoresSellWhileFlatAndBuyWhileLong(t *testing.T) {
	b := bars(10, 11, 12, 13)
	signals := []domain.Signal{
		sig(0, domain.SideSell, 10), // flat, ignored
		sig(1, domain.SideBuy, 11),
		sig(2, domain.SideBuy, 12), // long, ignored
	}
	res, err := Run(b, signals, Config{InitialCapital: 1000, SizeFraction: 1.0})
	require.NoError(t, err)

	require.Len(t, res.TradeLog, 2)
	assert.Equal(t, domain.SideBuy, res.TradeLog[0].Side)
	assert.Equal(t, domain.SideClose, res.TradeLog[1].Side)
}

func TestRunDefaultSizeFraction(t *testing.T) {
	b := bars(100, 110)
	signals := []domain.Signal{sig(0, domain.SideBuy, 100)}
	res, err := Run(b, signals, Config{InitialCapital: 1000})
	require.NoError(t, err)
	// 95% of cash buys 9 shares at 100
	require.Len(t, res.TradeLog, 2)
	assert.Equal(t, int64(9), res.TradeLog[0].Quantity)
	assert.EqualValues(t, 1000+9*10, res.FinalValue)
}

func TestRunRejectsBadConfig(t *testing.T) {
	_, err := Run(bars(10), nil, Config{InitialCapital: -1})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidParams, domain.KindOf(err))
}
