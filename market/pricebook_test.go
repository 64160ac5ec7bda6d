package market

import (
	"sync"
	"testing"
)

func TestPriceBookUpsertOverwrites(t *testing.T) {
	b := NewPriceBook()
	b.Upsert(Tick{Instrument: "BTCUSD", Price: 50000, TimestampMs: 100})
	b.Upsert(Tick{Instrument: "BTCUSD", Price: 50100, TimestampMs: 200})

	got, ok := b.Latest("BTCUSD")
	if !ok || got.Price != 50100 || got.TimestampMs != 200 {
		t.Fatalf("latest = %+v ok=%v, want overwritten tick", got, ok)
	}
	if _, ok := b.Latest("ETHUSD"); ok {
		t.Fatal("unexpected tick for unknown instrument")
	}
}

func TestPriceBookIterLatest(t *testing.T) {
	b := NewPriceBook()
	b.Upsert(Tick{Instrument: "BTCUSD", Price: 50000})
	b.Upsert(Tick{Instrument: "ETHUSD", Price: 3000})
	if got := b.IterLatest(); len(got) != 2 {
		t.Fatalf("iter returned %d ticks, want 2", len(got))
	}
}

func TestPriceBookStaleness(t *testing.T) {
	b := NewPriceBook()
	b.Upsert(Tick{Instrument: "BTCUSD", TimestampMs: 1_000})
	ms, ok := b.StalenessMs("BTCUSD", 4_500)
	if !ok || ms != 3_500 {
		t.Fatalf("staleness = %d ok=%v, want 3500", ms, ok)
	}
	if _, ok := b.StalenessMs("ETHUSD", 4_500); ok {
		t.Fatal("staleness for missing instrument should report not ok")
	}
}

func TestPriceBookConcurrentUpsert(t *testing.T) {
	b := NewPriceBook()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				b.Upsert(Tick{Instrument: "BTCUSD", Price: float64(n*1000 + j)})
				b.Latest("BTCUSD")
			}
		}(i)
	}
	wg.Wait()
	if _, ok := b.Latest("BTCUSD"); !ok {
		t.Fatal("tick lost after concurrent upserts")
	}
}
