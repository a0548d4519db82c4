package game

import (
	"errors"
	"testing"
)

func TestQuotePurchase(t *testing.T) {
	price := 2 * MicrosPerDollar
	tests := []struct {
		name      string
		shares    int64
		available int64
		cash      int64
		want      int64
		wantErr   error
	}{
		{name: "ok", shares: 10, available: 200, cash: 25 * MicrosPerDollar, want: 20 * MicrosPerDollar},
		{name: "exact cash", shares: 10, available: 10, cash: 20 * MicrosPerDollar, want: 20 * MicrosPerDollar},
		{name: "more than float", shares: 201, available: 200, cash: 1_000 * MicrosPerDollar, wantErr: ErrInsufficientShares},
		{name: "short on cash", shares: 10, available: 200, cash: 20*MicrosPerDollar - 1, wantErr: ErrInsufficientFunds},
		{name: "zero shares", shares: 0, available: 200, cash: 25 * MicrosPerDollar, wantErr: ErrInsufficientShares},
	}
	for _, tc := range tests {
		got, err := QuotePurchase(price, tc.shares, tc.available, tc.cash)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%s: got=%d err=%v want=%d", tc.name, got, err, tc.want)
		}
	}
}

func TestApplyPurchaseWeightedAverage(t *testing.T) {
	h := ApplyPurchase(StockHolding{}, 10, 2*MicrosPerDollar)
	h = ApplyPurchase(h, 10, 4*MicrosPerDollar)
	if h.SharesOwned != 20 || h.TotalInvestedMicros != 60*MicrosPerDollar || h.AveragePurchasePriceMicros != 3*MicrosPerDollar {
		t.Fatalf("unexpected holding %+v", h)
	}
}

func TestQuoteSaleFee(t *testing.T) {
	q, err := QuoteSale(MicrosPerDollar, 10, 10)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.GrossMicros != 10*MicrosPerDollar || q.FeeMicros != 200_000 || q.NetMicros != 9_800_000 {
		t.Fatalf("unexpected quote %+v", q)
	}

	q, err = QuoteSale(10*MicrosPerCent, 1, 3)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.FeeMicros != MicrosPerCent || q.NetMicros != 90_000 {
		t.Fatalf("minimum fee not applied: %+v", q)
	}

	if _, err := QuoteSale(MicrosPerDollar, 11, 10); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestApplySaleKeepsAverageAndRow(t *testing.T) {
	h := StockHolding{SharesOwned: 20, TotalInvestedMicros: 60 * MicrosPerDollar, AveragePurchasePriceMicros: 3 * MicrosPerDollar, TotalDividendsEarnedMicros: 42}
	h = ApplySale(h, 5)
	if h.SharesOwned != 15 || h.TotalInvestedMicros != 45*MicrosPerDollar || h.AveragePurchasePriceMicros != 3*MicrosPerDollar {
		t.Fatalf("unexpected holding %+v", h)
	}
	h = ApplySale(h, 15)
	if h.SharesOwned != 0 || h.TotalInvestedMicros != 0 || h.TotalDividendsEarnedMicros != 42 {
		t.Fatalf("zero-share holding must keep its dividend history: %+v", h)
	}
}
