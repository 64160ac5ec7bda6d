package order

import "strings"

// Side 挂单方向。
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

// Wire 返回交易所侧的整数编码：0=买 1=卖。
func (s Side) Wire() int {
	if s == Bid {
		return 0
	}
	return 1
}

// Order 本地订单视图。Price/Quantity 为下单值；FilledQty 只在持仓合成单上
// 等于持仓数量，真实挂单保持 0，状态事件不更新它。
type Order struct {
	ID         string
	Instrument string
	Side       Side
	Price      float64
	Quantity   float64
	FilledQty  float64
	Status     Status
	CreatedMs  int64
}

// SyntheticPrefix 由持仓合成的虚拟订单的 ID 前缀。此类订单永远不会发往交易所。
const SyntheticPrefix = "position-"

// Synthetic 判断订单是否为持仓合成的虚拟单。
func (o Order) Synthetic() bool {
	return strings.HasPrefix(o.ID, SyntheticPrefix)
}

// SyntheticID 构造持仓合成单的 ID：position-bid-<productID> / position-ask-<productID>。
func SyntheticID(side Side, productID string) string {
	if side == Bid {
		return SyntheticPrefix + "bid-" + productID
	}
	return SyntheticPrefix + "ask-" + productID
}
