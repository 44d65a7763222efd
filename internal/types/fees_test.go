package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFeeRate(t *testing.T) {
	cases := []struct {
		name     string
		exchange Exchange
		role     FeeRole
		want     string
	}{
		{"spot maker", ExchangeBinance, FeeRoleMaker, "0.001"},
		// Spot taker equals maker; kept for compatibility.
		{"spot taker", ExchangeBinance, FeeRoleTaker, "0.001"},
		{"linear maker", ExchangeBinanceUsdm, FeeRoleMaker, "0.0002"},
		{"linear taker", ExchangeBybitUsdm, FeeRoleTaker, "0.0004"},
		{"inverse maker", ExchangeBinanceCoinm, FeeRoleMaker, "0.0001"},
		{"inverse taker", ExchangeBybitInverse, FeeRoleTaker, "0.0005"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			want, _ := decimal.NewFromString(tc.want)
			assert.True(t, FeeRate(tc.exchange, tc.role).Equal(want))
		})
	}
}

func TestExchangeClasses(t *testing.T) {
	assert.True(t, ExchangeBinance.Spot())
	assert.False(t, ExchangeBinance.Futures())
	assert.True(t, ExchangeBinanceUsdm.Linear())
	assert.True(t, ExchangeBinanceUsdm.Futures())
	assert.True(t, ExchangeOkxInverse.Inverse())
	assert.True(t, ExchangeOkxInverse.Futures())
	assert.False(t, Exchange("nope").Known())
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusNew.Terminal())
	assert.False(t, OrderStatusPartiallyFilled.Terminal())
	assert.True(t, OrderStatusFilled.Terminal())
	assert.True(t, OrderStatusCanceled.Terminal())
	assert.True(t, OrderStatusExpired.Terminal())
}
