package engine

import (
	"fmt"
	"sync"

	"github.com/aaronyhsoh33/market-maker-bot/inventory"
	"github.com/aaronyhsoh33/market-maker-bot/order"
	"github.com/aaronyhsoh33/market-maker-bot/risk"
)

// InstrumentState 单个交易对的全部可变状态。每侧最多一张挂单；
// 持仓以合成的 Filled 虚拟单与库存记录并存。所有访问走内部锁。
type InstrumentState struct {
	mu         sync.Mutex
	instrument string

	bid *order.Order
	ask *order.Order

	longInv  *inventory.Position
	shortInv *inventory.Position

	placing        bool
	cancelInFlight map[string]struct{} // key: side|orderID
}

func newInstrumentState(instrument string) *InstrumentState {
	return &InstrumentState{
		instrument:     instrument,
		cancelInFlight: make(map[string]struct{}),
	}
}

func cancelKey(side order.Side, orderID string) string {
	return side.String() + "|" + orderID
}

// ApplyStatus 按订单 ID 定位槽位并应用状态：终态清槽，否则覆盖状态字段。
// 返回是否命中本交易对。重复应用同一状态是幂等的。
func (s *InstrumentState) ApplyStatus(orderID string, st order.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bid != nil && s.bid.ID == orderID {
		if st.Terminal() {
			s.bid = nil
		} else {
			s.bid.Status = st
		}
		return true
	}
	if s.ask != nil && s.ask.ID == orderID {
		if st.Terminal() {
			s.ask = nil
		} else {
			s.ask.Status = st
		}
		return true
	}
	return false
}

// InstallPlaced 将新下的订单装入槽位；槽位必须为空。
func (s *InstrumentState) InstallPlaced(side order.Side, o order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := &s.bid
	if side == order.Ask {
		slot = &s.ask
	}
	if *slot != nil {
		return fmt.Errorf("%s %s slot already occupied by %s", s.instrument, side, (*slot).ID)
	}
	o.Side = side
	*slot = &o
	return nil
}

// Clear 清空一侧槽位。
func (s *InstrumentState) Clear(side order.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if side == order.Bid {
		s.bid = nil
	} else {
		s.ask = nil
	}
}

// PairedFillCleanup 两侧都 Filled 时同时清空（合成单也会被清掉，
// 库存侧由此重新开始报价）。返回是否发生清理。
func (s *InstrumentState) PairedFillCleanup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bid != nil && s.ask != nil &&
		s.bid.Status == order.StatusFilled && s.ask.Status == order.StatusFilled {
		s.bid, s.ask = nil, nil
		return true
	}
	return false
}

// SetInventory 写入持仓记录（启动 warmup 用）。
func (s *InstrumentState) SetInventory(p inventory.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	if p.Direction == inventory.Long {
		s.longInv = &cp
	} else {
		s.shortInv = &cp
	}
}

// View 返回当前状态的深拷贝快照，供风控评估与下单检查。
func (s *InstrumentState) View() risk.PairView {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v risk.PairView
	if s.bid != nil {
		cp := *s.bid
		v.Bid = &cp
	}
	if s.ask != nil {
		cp := *s.ask
		v.Ask = &cp
	}
	if s.longInv != nil {
		cp := *s.longInv
		v.LongInv = &cp
	}
	if s.shortInv != nil {
		cp := *s.shortInv
		v.ShortInv = &cp
	}
	return v
}

// TryBeginPlacing 获取本交易对的下单单飞锁。
func (s *InstrumentState) TryBeginPlacing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.placing {
		return false
	}
	s.placing = true
	return true
}

// EndPlacing 释放下单锁；所有退出路径都必须调用。
func (s *InstrumentState) EndPlacing() {
	s.mu.Lock()
	s.placing = false
	s.mu.Unlock()
}

// TryBeginCancel 获取 (side, orderID) 撤单单飞锁。
func (s *InstrumentState) TryBeginCancel(side order.Side, orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cancelKey(side, orderID)
	if _, ok := s.cancelInFlight[key]; ok {
		return false
	}
	s.cancelInFlight[key] = struct{}{}
	return true
}

// EndCancel 释放撤单锁。
func (s *InstrumentState) EndCancel(side order.Side, orderID string) {
	s.mu.Lock()
	delete(s.cancelInFlight, cancelKey(side, orderID))
	s.mu.Unlock()
}

// LiveCancelableOrders 返回应纳入关停批量撤单的订单：
// 非合成、状态为 NEW 或尚无状态。
func (s *InstrumentState) LiveCancelableOrders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.Order
	for _, o := range []*order.Order{s.bid, s.ask} {
		if o == nil || o.Synthetic() {
			continue
		}
		if o.Status == "" || o.Status == order.StatusNew {
			out = append(out, *o)
		}
	}
	return out
}

// ClearLocks 无条件清除全部单飞锁（关停路径）。
func (s *InstrumentState) ClearLocks() {
	s.mu.Lock()
	s.placing = false
	s.cancelInFlight = make(map[string]struct{})
	s.mu.Unlock()
}

// ClearSlots 清空两侧槽位。
func (s *InstrumentState) ClearSlots() {
	s.mu.Lock()
	s.bid, s.ask = nil, nil
	s.mu.Unlock()
}
