package game

import (
	"context"
	"testing"
)

func seedPendingPayment(db *memDB) {
	db.state.cash["a"] = 0
	db.state.cash["b"] = 0
	db.state.payments["pay-1"] = &memPayment{
		stockID:  "stock-1",
		perShare: "0.0025",
		status:   "pending",
		lines: []DividendLine{
			{HolderID: "a", SharesOwned: 150, AmountMicros: 375_000},
			{HolderID: "b", SharesOwned: 50, AmountMicros: 125_000},
		},
	}
}

func TestSettleDividendPaymentPaysOnce(t *testing.T) {
	db := newMemDB(t)
	seedPendingPayment(db)
	s := newTestService(db, testNow)
	ctx := context.Background()

	credited, err := s.SettleDividendPayment(ctx, "pay-1")
	if err != nil || credited != 500_000 {
		t.Fatalf("first settle credited %d err %v", credited, err)
	}
	credited, err = s.SettleDividendPayment(ctx, "pay-1")
	if err != nil || credited != 0 {
		t.Fatalf("second settle credited %d err %v", credited, err)
	}
	if db.state.cash["a"] != 375_000 || db.state.cash["b"] != 125_000 {
		t.Fatalf("holders paid twice: a=%d b=%d", db.state.cash["a"], db.state.cash["b"])
	}
	if db.state.earned["a"] != 375_000 || db.state.payments["pay-1"].status != "settled" {
		t.Fatalf("holding totals %v status %s", db.state.earned, db.state.payments["pay-1"].status)
	}
}

func TestSettleDividendPaymentSkipsHoldersAlreadyPaid(t *testing.T) {
	db := newMemDB(t)
	seedPendingPayment(db)
	db.state.paid["pay-1/a"] = true
	db.state.cash["a"] = 375_000
	s := newTestService(db, testNow)

	credited, err := s.SettleDividendPayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if credited != 125_000 || db.state.cash["a"] != 375_000 || db.state.cash["b"] != 125_000 {
		t.Fatalf("credited %d a=%d b=%d", credited, db.state.cash["a"], db.state.cash["b"])
	}
}

func TestSettleDividendPaymentUnknownID(t *testing.T) {
	s := newTestService(newMemDB(t), testNow)
	if _, err := s.SettleDividendPayment(context.Background(), "missing"); err == nil {
		t.Fatalf("expected an error for an unknown payment")
	}
}
