package engine

import (
	"testing"

	"github.com/aaronyhsoh33/market-maker-bot/inventory"
	"github.com/aaronyhsoh33/market-maker-bot/order"
)

func TestApplyStatusUpdatesAndClears(t *testing.T) {
	s := newInstrumentState("BTCUSD")
	if err := s.InstallPlaced(order.Bid, order.Order{ID: "b1", Price: 49950, Status: order.StatusNew}); err != nil {
		t.Fatalf("install: %v", err)
	}

	if !s.ApplyStatus("b1", order.StatusPartiallyFilled) {
		t.Fatal("apply should hit bid slot")
	}
	if v := s.View(); v.Bid == nil || v.Bid.Status != order.StatusPartiallyFilled {
		t.Fatalf("bid = %+v", v.Bid)
	}

	// 幂等：重复应用同一状态不改变结果
	s.ApplyStatus("b1", order.StatusPartiallyFilled)
	if v := s.View(); v.Bid == nil || v.Bid.Status != order.StatusPartiallyFilled {
		t.Fatalf("bid after repeat = %+v", v.Bid)
	}

	// 终态清槽
	if !s.ApplyStatus("b1", order.StatusCanceled) {
		t.Fatal("apply terminal should hit")
	}
	if v := s.View(); v.Bid != nil {
		t.Fatalf("bid slot should be empty, got %+v", v.Bid)
	}
	if s.ApplyStatus("b1", order.StatusCanceled) {
		t.Fatal("cleared order id must not match again")
	}
}

func TestInstallPlacedRequiresEmptySlot(t *testing.T) {
	s := newInstrumentState("BTCUSD")
	if err := s.InstallPlaced(order.Ask, order.Order{ID: "a1"}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := s.InstallPlaced(order.Ask, order.Order{ID: "a2"}); err == nil {
		t.Fatal("second install into occupied slot must fail")
	}
	v := s.View()
	if v.Ask == nil || v.Ask.ID != "a1" {
		t.Fatalf("ask = %+v", v.Ask)
	}
	if v.Ask.Side != order.Ask {
		t.Fatalf("installed side = %v", v.Ask.Side)
	}
}

func TestPairedFillCleanup(t *testing.T) {
	s := newInstrumentState("BTCUSD")
	_ = s.InstallPlaced(order.Bid, order.Order{ID: "b1", Status: order.StatusFilled})
	_ = s.InstallPlaced(order.Ask, order.Order{ID: "a1", Status: order.StatusNew})

	if s.PairedFillCleanup() {
		t.Fatal("cleanup must not fire with one side NEW")
	}
	s.ApplyStatus("a1", order.StatusFilled)
	if !s.PairedFillCleanup() {
		t.Fatal("cleanup should fire with both sides filled")
	}
	v := s.View()
	if v.Bid != nil || v.Ask != nil {
		t.Fatalf("slots should be empty: %+v / %+v", v.Bid, v.Ask)
	}
}

func TestPairedFillCleanupDropsSynthetic(t *testing.T) {
	s := newInstrumentState("BTCUSD")
	_ = s.InstallPlaced(order.Bid, order.Order{ID: order.SyntheticID(order.Bid, "prod-btc"), Status: order.StatusFilled})
	_ = s.InstallPlaced(order.Ask, order.Order{ID: "a1", Status: order.StatusFilled})

	// 合成单也会被成对清理清掉，库存侧重新开始报价
	if !s.PairedFillCleanup() {
		t.Fatal("cleanup should fire over a synthetic order too")
	}
	if v := s.View(); v.Bid != nil || v.Ask != nil {
		t.Fatal("synthetic order should have been cleared")
	}
}

func TestSingleFlightLocks(t *testing.T) {
	s := newInstrumentState("BTCUSD")
	if !s.TryBeginPlacing() {
		t.Fatal("first placing lock should succeed")
	}
	if s.TryBeginPlacing() {
		t.Fatal("second placing lock must fail")
	}
	s.EndPlacing()
	if !s.TryBeginPlacing() {
		t.Fatal("lock should be reusable after release")
	}
	s.EndPlacing()

	if !s.TryBeginCancel(order.Bid, "b1") {
		t.Fatal("first cancel lock should succeed")
	}
	if s.TryBeginCancel(order.Bid, "b1") {
		t.Fatal("duplicate cancel key must fail")
	}
	if !s.TryBeginCancel(order.Ask, "b1") {
		t.Fatal("different side is a different key")
	}
	s.EndCancel(order.Bid, "b1")
	if !s.TryBeginCancel(order.Bid, "b1") {
		t.Fatal("cancel lock should be reusable after release")
	}
}

func TestClearLocksUnconditionally(t *testing.T) {
	s := newInstrumentState("BTCUSD")
	s.TryBeginPlacing()
	s.TryBeginCancel(order.Bid, "b1")
	s.ClearLocks()
	if !s.TryBeginPlacing() || !s.TryBeginCancel(order.Bid, "b1") {
		t.Fatal("locks should be clear after ClearLocks")
	}
}

func TestLiveCancelableOrders(t *testing.T) {
	s := newInstrumentState("BTCUSD")
	_ = s.InstallPlaced(order.Bid, order.Order{ID: "b1", Status: order.StatusNew})
	_ = s.InstallPlaced(order.Ask, order.Order{ID: order.SyntheticID(order.Ask, "prod"), Status: order.StatusFilled})

	live := s.LiveCancelableOrders()
	if len(live) != 1 || live[0].ID != "b1" {
		t.Fatalf("live = %+v, want just b1", live)
	}

	// Filled 的真实单也不参与关停撤单
	s.ApplyStatus("b1", order.StatusFilled)
	if live := s.LiveCancelableOrders(); len(live) != 0 {
		t.Fatalf("live = %+v, want none", live)
	}
}

func TestSetInventoryDirectionSlots(t *testing.T) {
	s := newInstrumentState("BTCUSD")
	s.SetInventory(inventory.Position{Instrument: "BTCUSD", Direction: inventory.Long, Quantity: 0.005, EntryPrice: 45000})
	s.SetInventory(inventory.Position{Instrument: "BTCUSD", Direction: inventory.Short, Quantity: 0.002, EntryPrice: 46000})
	v := s.View()
	if v.LongInv == nil || v.LongInv.Quantity != 0.005 {
		t.Fatalf("long = %+v", v.LongInv)
	}
	if v.ShortInv == nil || v.ShortInv.EntryPrice != 46000 {
		t.Fatalf("short = %+v", v.ShortInv)
	}
}
