package market

import "testing"

func TestRingCapNeverExceeded(t *testing.T) {
	r := NewSnapshotRing(DefaultRingCap)
	for i := 0; i < 250; i++ {
		r.Push(Tick{Instrument: "BTCUSD", Price: float64(i), TimestampMs: int64(i)})
		if n := r.Len("BTCUSD"); n > DefaultRingCap {
			t.Fatalf("ring grew to %d entries", n)
		}
	}
	if n := r.Len("BTCUSD"); n != DefaultRingCap {
		t.Fatalf("ring holds %d entries, want %d", n, DefaultRingCap)
	}
}

func TestRingFIFOAndTail(t *testing.T) {
	r := NewSnapshotRing(5)
	for i := 0; i < 8; i++ {
		r.Push(Tick{Instrument: "BTCUSD", Price: float64(i)})
	}
	tail := r.Tail("BTCUSD", 3)
	if len(tail) != 3 || tail[0].Price != 5 || tail[2].Price != 7 {
		t.Fatalf("tail = %+v, want prices 5..7 oldest first", tail)
	}
	// 超过长度时截断到现有条数
	if got := r.Tail("BTCUSD", 100); len(got) != 5 || got[0].Price != 3 {
		t.Fatalf("full tail = %+v, want 5 entries starting at 3", got)
	}
	if got := r.Tail("ETHUSD", 3); got != nil {
		t.Fatalf("tail of empty ring = %+v, want nil", got)
	}
}

func TestRingLatest(t *testing.T) {
	r := NewSnapshotRing(0) // 0 回退到默认容量
	if _, ok := r.Latest("BTCUSD"); ok {
		t.Fatal("latest on empty ring should be absent")
	}
	r.Push(Tick{Instrument: "BTCUSD", Price: 1})
	r.Push(Tick{Instrument: "BTCUSD", Price: 2})
	got, ok := r.Latest("BTCUSD")
	if !ok || got.Price != 2 {
		t.Fatalf("latest = %+v ok=%v, want price 2", got, ok)
	}
}
