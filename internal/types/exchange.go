package types

type Exchange string

const (
	ExchangeBinance     Exchange = "binance"
	ExchangeKucoin      Exchange = "kucoin"
	ExchangeBybit       Exchange = "bybit"
	ExchangeOkx         Exchange = "okx"
	ExchangeCoinbase    Exchange = "coinbase"
	ExchangeBitget      Exchange = "bitget"
	ExchangeMexc        Exchange = "mexc"
	ExchangeHyperliquid Exchange = "hyperliquid"

	ExchangeBinanceUsdm  Exchange = "binanceUsdm"
	ExchangeBybitUsdm    Exchange = "bybitUsdm"
	ExchangeKucoinLinear Exchange = "kucoinLinear"
	ExchangeOkxLinear    Exchange = "okxLinear"
	ExchangeBitgetUsdm   Exchange = "bitgetUsdm"

	ExchangeBinanceCoinm       Exchange = "binanceCoinm"
	ExchangeBybitInverse       Exchange = "bybitInverse"
	ExchangeKucoinInverse      Exchange = "kucoinInverse"
	ExchangeOkxInverse         Exchange = "okxInverse"
	ExchangeBitgetCoinm        Exchange = "bitgetCoinm"
	ExchangeHyperliquidInverse Exchange = "hyperliquidInverse"
)

var spotExchanges = map[Exchange]bool{
	ExchangeBinance:     true,
	ExchangeKucoin:      true,
	ExchangeBybit:       true,
	ExchangeOkx:         true,
	ExchangeCoinbase:    true,
	ExchangeBitget:      true,
	ExchangeMexc:        true,
	ExchangeHyperliquid: true,
}

var linearExchanges = map[Exchange]bool{
	ExchangeBinanceUsdm:  true,
	ExchangeBybitUsdm:    true,
	ExchangeKucoinLinear: true,
	ExchangeOkxLinear:    true,
	ExchangeBitgetUsdm:   true,
}

var inverseExchanges = map[Exchange]bool{
	ExchangeBinanceCoinm:       true,
	ExchangeBybitInverse:       true,
	ExchangeKucoinInverse:      true,
	ExchangeOkxInverse:         true,
	ExchangeBitgetCoinm:        true,
	ExchangeHyperliquidInverse: true,
}

func (e Exchange) Spot() bool { return spotExchanges[e] }

func (e Exchange) Linear() bool { return linearExchanges[e] }

func (e Exchange) Inverse() bool { return inverseExchanges[e] }

func (e Exchange) Futures() bool { return e.Linear() || e.Inverse() }

func (e Exchange) Known() bool { return e.Spot() || e.Futures() }
