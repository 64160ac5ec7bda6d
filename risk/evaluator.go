package risk

import (
	"github.com/aaronyhsoh33/market-maker-bot/inventory"
	"github.com/aaronyhsoh33/market-maker-bot/order"
	"github.com/aaronyhsoh33/market-maker-bot/quote"
)

// Decision 风控评估结论。CloseInventory 只上报，引擎不据此平仓。
type Decision struct {
	CancelBid      bool
	CancelAsk      bool
	CloseInventory bool
}

// PairView 评估所需的交易对状态快照；由引擎在锁内拷贝后传入。
type PairView struct {
	Bid      *order.Order
	Ask      *order.Order
	LongInv  *inventory.Position
	ShortInv *inventory.Position
}

// Evaluate 判断挂单是否偏离 mid 超限。只撤 NEW 状态的挂单；
// 偏差等于阈值不触发（严格大于）。
func Evaluate(v PairView, p quote.Projection) Decision {
	var d Decision
	if v.Bid != nil && v.Bid.Status == order.StatusNew && quote.Dev(v.Bid.Price, p.Mid) > p.MaxDevAbs {
		d.CancelBid = true
	}
	if v.Ask != nil && v.Ask.Status == order.StatusNew && quote.Dev(v.Ask.Price, p.Mid) > p.MaxDevAbs {
		d.CancelAsk = true
	}
	if v.LongInv != nil && quote.Dev(v.LongInv.EntryPrice, p.Mid) > p.MaxDevAbs {
		d.CloseInventory = true
	}
	if v.ShortInv != nil && quote.Dev(v.ShortInv.EntryPrice, p.Mid) > p.MaxDevAbs {
		d.CloseInventory = true
	}
	return d
}
