package core

import "testing"

func TestGasMeterConsumeExhaustion(t *testing.T) {
	meter := NewGasMeter(250)
	if err := meter.Consume(CallKvGet); err != nil {
		t.Fatalf("Consume should succeed with budget remaining: %v", err)
	}
	if meter.Remaining() != 50 {
		t.Fatalf("expected 50 remaining, got %d", meter.Remaining())
	}

	if err := meter.Consume(CallKvSet); !Is(err, KindGasLimitExceeded) {
		t.Fatalf("expected GasLimitExceeded, got %v", err)
	}
	if meter.Remaining() != 0 {
		t.Fatalf("expected remaining to clamp to zero after exhaustion, got %d", meter.Remaining())
	}
}

func TestGasMeterConsumeAmountExhaustion(t *testing.T) {
	meter := NewGasMeter(100)
	if err := meter.ConsumeAmount(60); err != nil {
		t.Fatalf("ConsumeAmount: %v", err)
	}
	if err := meter.ConsumeAmount(50); !Is(err, KindGasLimitExceeded) {
		t.Fatalf("expected GasLimitExceeded, got %v", err)
	}
}

func TestGasCostKnownCalls(t *testing.T) {
	if GasCost(CallKvGet) != 200 {
		t.Fatalf("expected kv.get cost 200, got %d", GasCost(CallKvGet))
	}
	if GasCost(CallSmartFunctionNew) != 20000 {
		t.Fatalf("expected smart_function.create cost 20000, got %d", GasCost(CallSmartFunctionNew))
	}
}

func TestGasCostFallsBackToDefaultForUnknownCall(t *testing.T) {
	cost := GasCost(HostCall("nonexistent.call"))
	if cost != DefaultHostCallCost {
		t.Fatalf("expected fallback cost %d, got %d", DefaultHostCallCost, cost)
	}
}

func TestGasTableLintIsEmptyForCompleteTable(t *testing.T) {
	missing := GasTableLint()
	if len(missing) != 0 {
		t.Fatalf("expected no missing gas table entries, got %v", missing)
	}
}

func TestAllHostCallsCoversGasTable(t *testing.T) {
	all := AllHostCalls()
	if len(all) != 10 {
		t.Fatalf("expected 10 host calls, got %d", len(all))
	}
}
