package game

import "testing"

func TestComputeDividendPlanConservesPool(t *testing.T) {
	stock := *externalStock(HolderShares{"b", 50}, HolderShares{"a", 150})
	plan := ComputeDividendPlan(stock, MicrosPerDollar)

	if plan.PoolMicros != 500_000 {
		t.Fatalf("pool got %d want 500000", plan.PoolMicros)
	}
	if plan.SharesOutstanding != 200 {
		t.Fatalf("outstanding got %d", plan.SharesOutstanding)
	}
	if plan.PerShare.String() != "0.0025" {
		t.Fatalf("per share got %s", plan.PerShare)
	}
	want := []DividendLine{
		{HolderID: "a", SharesOwned: 150, AmountMicros: 375_000},
		{HolderID: "b", SharesOwned: 50, AmountMicros: 125_000},
	}
	if len(plan.Lines) != len(want) {
		t.Fatalf("lines got %+v", plan.Lines)
	}
	for i := range want {
		if plan.Lines[i] != want[i] {
			t.Fatalf("line %d got %+v want %+v", i, plan.Lines[i], want[i])
		}
	}
	if plan.TotalMicros() != plan.PoolMicros {
		t.Fatalf("lines %d do not add up to pool %d", plan.TotalMicros(), plan.PoolMicros)
	}
}

func TestComputeDividendPlanPaysOnlySoldShares(t *testing.T) {
	stock := *externalStock(HolderShares{"a", 50})
	plan := ComputeDividendPlan(stock, MicrosPerDollar)
	if plan.PoolMicros != 500_000 || plan.SharesOutstanding != 200 {
		t.Fatalf("pool %d outstanding %d", plan.PoolMicros, plan.SharesOutstanding)
	}
	if len(plan.Lines) != 1 || plan.Lines[0].AmountMicros != 125_000 {
		t.Fatalf("lines got %+v", plan.Lines)
	}
	if plan.TotalMicros() != 125_000 {
		t.Fatalf("total %d", plan.TotalMicros())
	}
}

func TestComputeDividendPlanRoundsLinesDown(t *testing.T) {
	stock := *stockWithOwnerShares(997, HolderShares{"c", 1}, HolderShares{"a", 1}, HolderShares{"b", 1})
	plan := ComputeDividendPlan(stock, 200)
	if plan.PoolMicros != 100 {
		t.Fatalf("pool got %d", plan.PoolMicros)
	}
	for i, id := range []string{"a", "b", "c"} {
		if plan.Lines[i].HolderID != id || plan.Lines[i].AmountMicros != 33 {
			t.Fatalf("line %d got %+v", i, plan.Lines[i])
		}
	}
	if plan.TotalMicros() > plan.PoolMicros {
		t.Fatalf("paid %d above pool %d", plan.TotalMicros(), plan.PoolMicros)
	}
}

func TestComputeDividendPlanEmpty(t *testing.T) {
	if plan := ComputeDividendPlan(*externalStock(), MicrosPerDollar); !plan.Empty() {
		t.Fatalf("no holders should produce an empty plan: %+v", plan)
	}
	if plan := ComputeDividendPlan(*externalStock(HolderShares{"a", 200}), 0); !plan.Empty() {
		t.Fatalf("no boost should produce an empty plan: %+v", plan)
	}
	if plan := ComputeDividendPlan(*stockWithOwnerShares(DefaultTotalShares, HolderShares{"a", 10}), MicrosPerDollar); !plan.Empty() {
		t.Fatalf("fully owned stock should produce an empty plan: %+v", plan)
	}
}

func TestComputeDividendPlanIsDeterministic(t *testing.T) {
	stock := *externalStock(HolderShares{"x", 37}, HolderShares{"y", 91}, HolderShares{"z", 3})
	first := ComputeDividendPlan(stock, 1_234_567)
	for i := 0; i < 5; i++ {
		again := ComputeDividendPlan(stock, 1_234_567)
		if again.PoolMicros != first.PoolMicros || len(again.Lines) != len(first.Lines) {
			t.Fatalf("plan changed between runs")
		}
		for j := range first.Lines {
			if again.Lines[j] != first.Lines[j] {
				t.Fatalf("line %d changed: %+v vs %+v", j, again.Lines[j], first.Lines[j])
			}
		}
	}
}
