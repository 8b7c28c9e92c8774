package pools

import "testing"

type fakeObj struct {
	resets int
}

func TestSmartPoolWarmsUpOnCreate(t *testing.T) {
	created := 0
	sp := NewSmartPool(SmartPoolConfig{
		New:        func() any { created++; return &fakeObj{} },
		Reset:      func(o any) { o.(*fakeObj).resets++ },
		WarmupSize: 10,
	})

	if created != 10 {
		t.Fatalf("expected warmup to pre-allocate 10 objects, got %d created", created)
	}

	obj := sp.Get().(*fakeObj)
	sp.Put(obj)

	stats := sp.Stats()
	if stats.Gets != 1 || stats.Puts != 1 {
		t.Fatalf("Gets=%d Puts=%d, want 1/1", stats.Gets, stats.Puts)
	}
	if obj.resets != 1 {
		t.Fatalf("Put must call the configured Reset exactly once, got %d", obj.resets)
	}
}

func TestSmartPoolDefaultsApplyWhenUnset(t *testing.T) {
	sp := NewSmartPool(SmartPoolConfig{New: func() any { return &fakeObj{} }})

	if sp.warmupSize != 100 || sp.maxIdleSize != 1000 || sp.targetHitRate != 0.90 {
		t.Fatalf("unexpected defaults: warmup=%d maxIdle=%d targetHitRate=%v",
			sp.warmupSize, sp.maxIdleSize, sp.targetHitRate)
	}
}

func TestSmartPoolOptimizeWarmsUpBelowTargetHitRate(t *testing.T) {
	created := 0
	sp := NewSmartPool(SmartPoolConfig{
		New:           func() any { created++; return &fakeObj{} },
		WarmupSize:    10,
		TargetHitRate: 0.99,
	})
	created = 0 // ignore the warmup allocations themselves

	// Force > 1000 gets with no matching puts, driving the hit rate to 0.
	for i := 0; i < 1001; i++ {
		sp.Get()
	}

	beforeStats := sp.Stats()
	if beforeStats.HitRate >= sp.targetHitRate {
		t.Fatalf("expected hit rate below target before Optimize, got %v", beforeStats.HitRate)
	}

	sp.Optimize()
	if created == 0 {
		t.Fatal("expected Optimize to allocate additional warmup objects when hit rate is below target")
	}
}
