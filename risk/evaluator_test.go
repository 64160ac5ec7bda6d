package risk

import (
	"testing"

	"github.com/aaronyhsoh33/market-maker-bot/inventory"
	"github.com/aaronyhsoh33/market-maker-bot/order"
	"github.com/aaronyhsoh33/market-maker-bot/quote"
)

func proj(mid, maxDevAbs float64) quote.Projection {
	return quote.Projection{Instrument: "BTCUSD", Mid: mid, MaxDevAbs: maxDevAbs}
}

func TestCancelOnDeviation(t *testing.T) {
	// 场景：bid 49950，新 mid 53000，阈值 2650 → 偏差 3050 触发
	v := PairView{Bid: &order.Order{ID: "b1", Price: 49950, Status: order.StatusNew}}
	d := Evaluate(v, proj(53000, 2650))
	if !d.CancelBid || d.CancelAsk {
		t.Fatalf("decision = %+v, want cancel bid only", d)
	}
}

func TestEqualityDoesNotTrigger(t *testing.T) {
	v := PairView{
		Bid: &order.Order{ID: "b1", Price: 900, Status: order.StatusNew},
		Ask: &order.Order{ID: "a1", Price: 1100, Status: order.StatusNew},
	}
	// 偏差恰好 100 = 阈值，严格大于才撤
	d := Evaluate(v, proj(1000, 100))
	if d.CancelBid || d.CancelAsk {
		t.Fatalf("decision = %+v, equality must not trigger", d)
	}
}

func TestOnlyNewOrdersCanceled(t *testing.T) {
	v := PairView{
		Bid: &order.Order{ID: "b1", Price: 100, Status: order.StatusFilled},
		Ask: &order.Order{ID: "a1", Price: 5000, Status: order.StatusPartiallyFilled},
	}
	d := Evaluate(v, proj(1000, 1))
	if d.CancelBid || d.CancelAsk {
		t.Fatalf("decision = %+v, non-NEW orders must stay", d)
	}
}

func TestEmptySlotsNoCancel(t *testing.T) {
	d := Evaluate(PairView{}, proj(1000, 1))
	if d.CancelBid || d.CancelAsk || d.CloseInventory {
		t.Fatalf("decision = %+v, want all false", d)
	}
}

func TestCloseInventorySignal(t *testing.T) {
	v := PairView{
		LongInv: &inventory.Position{Instrument: "BTCUSD", Direction: inventory.Long, Quantity: 0.005, EntryPrice: 45000},
	}
	d := Evaluate(v, proj(53000, 2650))
	if !d.CloseInventory {
		t.Fatalf("decision = %+v, want close inventory signal", d)
	}
	// 未超限不上报
	d = Evaluate(v, proj(45500, 2650))
	if d.CloseInventory {
		t.Fatalf("decision = %+v, inventory within bound must not signal", d)
	}
	// 空头同样按入场价偏差判断
	v = PairView{ShortInv: &inventory.Position{Direction: inventory.Short, Quantity: 1, EntryPrice: 60000}}
	d = Evaluate(v, proj(53000, 2650))
	if !d.CloseInventory {
		t.Fatalf("decision = %+v, short inventory beyond bound must signal", d)
	}
}
