package game

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var sellFeeRate = decimal.NewFromFloat(MinSellFeeRate)

type SaleQuote struct {
	GrossMicros int64
	FeeMicros   int64
	NetMicros   int64
}

func validateShareCount(shares int64) error {
	if shares <= 0 {
		return fmt.Errorf("%w: share count must be positive", ErrInsufficientShares)
	}
	return nil
}

// QuotePurchase checks a buy against the float and the buyer's cash and
// returns its cost.
func QuotePurchase(priceMicros, shares, available, cashMicros int64) (int64, error) {
	if err := validateShareCount(shares); err != nil {
		return 0, err
	}
	if shares > available {
		return 0, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientShares, shares, available)
	}
	cost := priceMicros * shares
	if cashMicros < cost {
		return 0, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, MicrosToDollars(cost), MicrosToDollars(cashMicros))
	}
	return cost, nil
}

// ApplyPurchase folds a buy into a holding. The average price is always
// total invested over shares owned.
func ApplyPurchase(h StockHolding, shares, priceMicros int64) StockHolding {
	h.SharesOwned += shares
	h.TotalInvestedMicros += shares * priceMicros
	if h.SharesOwned > 0 {
		h.AveragePurchasePriceMicros = h.TotalInvestedMicros / h.SharesOwned
	}
	return h
}

// QuoteSale prices a sale with the flipping fee: 2% of proceeds, never less
// than one cent.
func QuoteSale(priceMicros, shares, owned int64) (SaleQuote, error) {
	var q SaleQuote
	if err := validateShareCount(shares); err != nil {
		return q, err
	}
	if shares > owned {
		return q, fmt.Errorf("%w: requested %d, owned %d", ErrInsufficientShares, shares, owned)
	}
	q.GrossMicros = priceMicros * shares
	q.FeeMicros = decimalMicros(microsDecimal(q.GrossMicros).Mul(sellFeeRate).Round(2))
	if q.FeeMicros < MicrosPerCent {
		q.FeeMicros = MicrosPerCent
	}
	q.NetMicros = clampZero(q.GrossMicros - q.FeeMicros)
	return q, nil
}

// ApplySale reduces a holding; invested capital shrinks pro rata so the
// average price is unchanged. Zero-share holdings are kept.
func ApplySale(h StockHolding, shares int64) StockHolding {
	if h.SharesOwned <= 0 {
		return h
	}
	remaining := h.SharesOwned - shares
	if remaining <= 0 {
		h.SharesOwned = 0
		h.TotalInvestedMicros = 0
		return h
	}
	h.TotalInvestedMicros = h.TotalInvestedMicros * remaining / h.SharesOwned
	h.SharesOwned = remaining
	return h
}
