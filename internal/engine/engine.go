package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aaronyhsoh33/market-maker-bot/config"
	"github.com/aaronyhsoh33/market-maker-bot/gateway"
	"github.com/aaronyhsoh33/market-maker-bot/infrastructure/logger"
	"github.com/aaronyhsoh33/market-maker-bot/inventory"
	"github.com/aaronyhsoh33/market-maker-bot/market"
	"github.com/aaronyhsoh33/market-maker-bot/metrics"
	"github.com/aaronyhsoh33/market-maker-bot/order"
	"github.com/aaronyhsoh33/market-maker-bot/quote"
	"github.com/aaronyhsoh33/market-maker-bot/risk"
)

// orderTTL GTD 订单有效期；过期由交易所侧回收。
const orderTTL = 5 * time.Minute

// EngineState 引擎状态
type EngineState int

const (
	// StateIdle 空闲状态
	StateIdle EngineState = iota
	// StateRunning 运行状态
	StateRunning
	// StateStopped 停止状态
	StateStopped
)

// String 返回状态名称
func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ExchangeAdapter 引擎消费的交易所适配器。
type ExchangeAdapter interface {
	Place(ctx context.Context, req gateway.PlaceRequest) (gateway.PlaceResponse, error)
	Cancel(ctx context.Context, req gateway.CancelRequest) (gateway.CancelResponse, error)
	Positions(ctx context.Context, subaccountID string, productIDs []string) (gateway.PositionsResponse, error)
}

// EventStream 订单状态/成交事件流。
type EventStream interface {
	Connect() error
	SubscribeOrderUpdates(subaccountID string, cb func(gateway.OrderStatusEvent)) error
	SubscribeOrderFills(subaccountID string, cb func(gateway.FillEvent)) error
	Disconnect() error
}

// OracleFeed 预言机行情流。
type OracleFeed interface {
	Connect() error
	Subscribe(instruments []string, cb func(market.Tick)) error
	Disconnect() error
}

// Config 引擎配置
type Config struct {
	RefreshCycle time.Duration       // 报价周期
	Subaccount   string              // 撤单用子账户名
	SubaccountID string              // 订阅/查询用子账户 ID
	Instruments  []config.Instrument // 启动时与产品目录合并后的参数
}

// Components 引擎依赖组件
type Components struct {
	Adapter ExchangeAdapter
	Events  EventStream
	Feed    OracleFeed
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Statistics 引擎统计信息
type Statistics struct {
	StartTime      time.Time
	TotalCadences  int64
	TotalQuotes    int64
	TotalCancels   int64
	TotalFills     int64
	TotalReconcile int64
	TotalErrors    int64
	LastCadence    time.Time
}

// QuotingEngine 核心报价引擎：定时投影目标价、维护每侧一张挂单、
// 按偏差撤单、用事件流对账、关停时批量撤单。
type QuotingEngine struct {
	cfg     Config
	adapter ExchangeAdapter
	events  EventStream
	feed    OracleFeed
	logger  *logger.Logger
	metrics *metrics.Metrics

	book *market.PriceBook
	ring *market.SnapshotRing

	instrCfg   map[string]config.Instrument // ticker → 参数
	byProduct  map[string]string            // productId → ticker
	statesMu   sync.RWMutex
	states     map[string]*InstrumentState
	observerMu sync.RWMutex
	observer   func(market.Tick, quote.Projection)

	state EngineState
	mu    sync.RWMutex

	stopChan chan struct{}
	doneChan chan struct{}

	statsMu sync.Mutex
	stats   Statistics

	// now 可替换以便测试
	now func() time.Time
}

// New 创建报价引擎
func New(cfg Config, components Components) (*QuotingEngine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(components); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}
	if cfg.RefreshCycle <= 0 {
		cfg.RefreshCycle = 5 * time.Second
	}

	e := &QuotingEngine{
		cfg:       cfg,
		adapter:   components.Adapter,
		events:    components.Events,
		feed:      components.Feed,
		logger:    components.Logger,
		metrics:   components.Metrics,
		book:      market.NewPriceBook(),
		ring:      market.NewSnapshotRing(market.DefaultRingCap),
		instrCfg:  make(map[string]config.Instrument, len(cfg.Instruments)),
		byProduct: make(map[string]string, len(cfg.Instruments)),
		states:    make(map[string]*InstrumentState, len(cfg.Instruments)),
		state:     StateIdle,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		now:       time.Now,
	}
	for _, ic := range cfg.Instruments {
		e.instrCfg[ic.Ticker] = ic
		if ic.ProductID != "" {
			e.byProduct[ic.ProductID] = ic.Ticker
		}
	}
	return e, nil
}

// SetSnapshotObserver 注册每个报价周期结束后的观测回调。
func (e *QuotingEngine) SetSnapshotObserver(cb func(market.Tick, quote.Projection)) {
	e.observerMu.Lock()
	e.observer = cb
	e.observerMu.Unlock()
}

// Start 启动引擎：连接行情与事件流、同步仓位、进入报价循环。
func (e *QuotingEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("engine already started (state: %s)", e.state)
	}
	e.state = StateRunning
	e.mu.Unlock()

	started := false
	defer func() {
		if !started {
			e.mu.Lock()
			e.state = StateIdle
			e.mu.Unlock()
		}
	}()

	e.statsMu.Lock()
	e.stats.StartTime = e.now()
	e.statsMu.Unlock()

	e.logger.Info("Quoting engine starting",
		zap.Duration("refresh_cycle", e.cfg.RefreshCycle),
		zap.Int("instruments", len(e.cfg.Instruments)),
		zap.String("subaccount", e.cfg.Subaccount))

	if err := e.feed.Connect(); err != nil {
		return fmt.Errorf("connect oracle feed: %w", err)
	}
	if err := e.events.Connect(); err != nil {
		return fmt.Errorf("connect event stream: %w", err)
	}

	if err := e.warmupPositions(ctx); err != nil {
		return fmt.Errorf("position warmup: %w", err)
	}

	if err := e.events.SubscribeOrderUpdates(e.cfg.SubaccountID, e.onOrderStatus); err != nil {
		return fmt.Errorf("subscribe order updates: %w", err)
	}
	// 成交流只作观测，对账以状态事件为准
	if err := e.events.SubscribeOrderFills(e.cfg.SubaccountID, e.onFill); err != nil {
		return fmt.Errorf("subscribe order fills: %w", err)
	}

	tickers := make([]string, 0, len(e.cfg.Instruments))
	for _, ic := range e.cfg.Instruments {
		tickers = append(tickers, ic.Ticker)
	}
	if err := e.feed.Subscribe(tickers, e.onTickData); err != nil {
		return fmt.Errorf("subscribe oracle feed: %w", err)
	}

	go e.run(ctx)
	started = true

	e.logger.Info("Quoting engine started")
	return nil
}

// Stop 停止引擎：先停报价循环，再批量撤单、清状态、断开连接。
func (e *QuotingEngine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine not running (state: %s)", e.state)
	}
	e.mu.Unlock()

	e.logger.Info("Quoting engine stopping...")

	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}

	select {
	case <-e.doneChan:
	case <-time.After(10 * time.Second):
		e.logger.Warn("Timeout waiting for quote loop to stop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.shutdownCancel(ctx)

	if err := e.feed.Disconnect(); err != nil {
		e.logger.Error("Failed to disconnect oracle feed", zap.Error(err))
	}
	if err := e.events.Disconnect(); err != nil {
		e.logger.Error("Failed to disconnect event stream", zap.Error(err))
	}

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()

	e.logger.Info("Quoting engine stopped")
	return nil
}

// run 报价主循环
func (e *QuotingEngine) run(ctx context.Context) {
	defer close(e.doneChan)

	ticker := time.NewTicker(e.cfg.RefreshCycle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Context done, stopping quote loop")
			return
		case <-e.stopChan:
			e.logger.Info("Stop signal received")
			return
		case <-ticker.C:
			e.onCadence(ctx)
		}
	}
}

// onCadence 单个报价周期：对每个有最新行情的交易对执行
// 风控撤单 → 补挂缺失侧 → 成对成交清理 → 通知观测者。
func (e *QuotingEngine) onCadence(ctx context.Context) {
	e.statsMu.Lock()
	e.stats.TotalCadences++
	e.stats.LastCadence = e.now()
	e.statsMu.Unlock()

	for _, ic := range e.cfg.Instruments {
		tick, ok := e.book.Latest(ic.Ticker)
		if !ok {
			e.logger.Cycle("no_tick", ic.Ticker)
			continue
		}
		e.ring.Push(tick)
		if e.metrics != nil {
			e.metrics.RingDepth.WithLabelValues(ic.Ticker).Set(float64(e.ring.Len(ic.Ticker)))
			e.metrics.MidPrice.WithLabelValues(ic.Ticker).Set(tick.Price)
			if ms, ok := e.book.StalenessMs(ic.Ticker, e.now().UnixMilli()); ok {
				e.metrics.FeedStalenessMs.WithLabelValues(ic.Ticker).Set(float64(ms))
			}
		}

		proj := quote.Project(ic.Ticker, tick.Price, float64(ic.SpreadBp), ic.MaxDeviationPct, e.now().UnixMilli())
		st := e.stateFor(ic.Ticker)

		e.riskPass(ctx, ic, st, proj)
		e.placePass(ctx, ic, st)
		if st.PairedFillCleanup() {
			e.logger.Info("Paired fill cleanup, both slots cleared", zap.String("instrument", ic.Ticker))
		}

		if e.metrics != nil {
			v := st.View()
			e.metrics.LiveOrders.WithLabelValues(ic.Ticker, order.Bid.String()).Set(slotGauge(v.Bid != nil))
			e.metrics.LiveOrders.WithLabelValues(ic.Ticker, order.Ask.String()).Set(slotGauge(v.Ask != nil))
		}

		e.observerMu.RLock()
		observer := e.observer
		e.observerMu.RUnlock()
		if observer != nil {
			observer(tick, proj)
		}
	}
}

// riskPass 偏差撤单；CloseInventory 只上报。
func (e *QuotingEngine) riskPass(ctx context.Context, ic config.Instrument, st *InstrumentState, proj quote.Projection) {
	view := st.View()
	decision := risk.Evaluate(view, proj)

	if decision.CloseInventory {
		e.logger.Risk("inventory_beyond_deviation", ic.Ticker, zap.Float64("mid", proj.Mid))
		if e.metrics != nil {
			e.metrics.CloseSignals.WithLabelValues(ic.Ticker).Inc()
		}
	}
	if decision.CancelBid && view.Bid != nil {
		e.cancelSide(ctx, ic, st, order.Bid, view.Bid.ID, proj)
	}
	if decision.CancelAsk && view.Ask != nil {
		e.cancelSide(ctx, ic, st, order.Ask, view.Ask.ID, proj)
	}
}

// cancelSide 按 (instrument, side, orderID) 单飞撤单。
// 失败只记日志：订单的终态事件最终会把槽位清掉。
func (e *QuotingEngine) cancelSide(ctx context.Context, ic config.Instrument, st *InstrumentState, side order.Side, orderID string, proj quote.Projection) {
	if !st.TryBeginCancel(side, orderID) {
		e.logger.Info("Cancel already in flight, skipping",
			zap.String("instrument", ic.Ticker),
			zap.String("side", side.String()),
			zap.String("order_id", orderID))
		return
	}
	defer st.EndCancel(side, orderID)

	e.logger.Risk("deviation_cancel", ic.Ticker,
		zap.String("side", side.String()),
		zap.String("order_id", orderID),
		zap.Float64("mid", proj.Mid),
		zap.Float64("max_dev", proj.MaxDevAbs))

	_, err := e.adapter.Cancel(ctx, gateway.CancelRequest{
		OrderIDs:   []string{orderID},
		Subaccount: e.cfg.Subaccount,
	})
	if err != nil {
		e.recordError()
		if e.metrics != nil {
			e.metrics.AdapterErrors.WithLabelValues("cancel").Inc()
		}
		e.logger.Error("Cancel failed",
			zap.String("instrument", ic.Ticker),
			zap.String("order_id", orderID),
			zap.Error(err))
		return
	}

	st.Clear(side)
	e.statsMu.Lock()
	e.stats.TotalCancels++
	e.statsMu.Unlock()
	if e.metrics != nil {
		e.metrics.CancelsIssued.WithLabelValues(ic.Ticker, side.String()).Inc()
	}
}

// placePass 整个交易对持有下单单飞锁；只补空槽。
func (e *QuotingEngine) placePass(ctx context.Context, ic config.Instrument, st *InstrumentState) {
	if !st.TryBeginPlacing() {
		e.logger.Debug("Placement already in flight, skipping", zap.String("instrument", ic.Ticker))
		return
	}
	defer st.EndPlacing()

	tick, ok := e.book.Latest(ic.Ticker)
	if !ok {
		return
	}
	mid := tick.Price

	view := st.View()
	if view.Bid == nil {
		price := quote.RoundToTick(quote.BidTarget(mid, float64(ic.SpreadBp)), ic.TickSize)
		e.placeSide(ctx, ic, st, order.Bid, price)
	}
	if view.Ask == nil {
		price := quote.RoundToTick(quote.AskTarget(mid, float64(ic.SpreadBp)), ic.TickSize)
		e.placeSide(ctx, ic, st, order.Ask, price)
	}
}

func (e *QuotingEngine) placeSide(ctx context.Context, ic config.Instrument, st *InstrumentState, side order.Side, price float64) {
	qty := ic.OrderSize
	if ic.MinQty > 0 && qty < ic.MinQty {
		e.logger.Warn("Order size below product minimum, skipping",
			zap.String("instrument", ic.Ticker),
			zap.Float64("size", qty),
			zap.Float64("min_qty", ic.MinQty))
		return
	}
	if ic.MaxQty > 0 && qty > ic.MaxQty {
		qty = ic.MaxQty
	}

	now := e.now()
	resp, err := e.adapter.Place(ctx, gateway.PlaceRequest{
		OrderType:     "LIMIT",
		Quantity:      qty,
		Side:          side.Wire(),
		Price:         price,
		Ticker:        ic.Ticker,
		ProductID:     ic.ProductID,
		TimeInForce:   "GTD",
		ExpiresAtSec:  now.Add(orderTTL).Unix(),
		ClientOrderID: uuid.NewString(),
		Subaccount:    e.cfg.Subaccount,
	})
	if err != nil {
		e.recordError()
		if e.metrics != nil {
			e.metrics.AdapterErrors.WithLabelValues("place").Inc()
		}
		e.logger.Error("Place failed",
			zap.String("instrument", ic.Ticker),
			zap.String("side", side.String()),
			zap.Float64("price", price),
			zap.Error(err))
		return
	}
	if resp.OrderID == "" {
		// 没有订单号视为拒单，槽位留空，下个周期重试
		e.logger.Warn("Place response missing order id",
			zap.String("instrument", ic.Ticker),
			zap.String("side", side.String()))
		return
	}

	o := order.Order{
		ID:         resp.OrderID,
		Instrument: ic.Ticker,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		Status:     order.StatusNew,
		CreatedMs:  now.UnixMilli(),
	}
	if err := st.InstallPlaced(side, o); err != nil {
		e.logger.Error("Failed to install placed order", zap.Error(err))
		return
	}

	e.statsMu.Lock()
	e.stats.TotalQuotes++
	e.statsMu.Unlock()
	if e.metrics != nil {
		e.metrics.QuotesPlaced.WithLabelValues(ic.Ticker, side.String()).Inc()
	}
	e.logger.Order("placed", resp.OrderID,
		zap.String("instrument", ic.Ticker),
		zap.String("side", side.String()),
		zap.Float64("price", price),
		zap.Float64("size", qty))
}

// onTickData 行情回调：只写 PriceBook，不做任何交易所调用。
func (e *QuotingEngine) onTickData(t market.Tick) {
	e.book.Upsert(t)
	if e.metrics != nil {
		e.metrics.TicksSeen.WithLabelValues(t.Instrument).Inc()
	}
}

// onOrderStatus 事件对账：按 ID 找到持有槽位的交易对，
// 终态清槽，否则更新状态。ID 全局唯一，命中第一个即止。
func (e *QuotingEngine) onOrderStatus(ev gateway.OrderStatusEvent) {
	st, ok := order.ParseStatus(ev.Status)
	if !ok {
		e.logger.Debug("Unknown order status", zap.String("order_id", ev.ID), zap.String("status", ev.Status))
		return
	}

	e.statesMu.RLock()
	defer e.statesMu.RUnlock()
	for _, s := range e.states {
		if s.ApplyStatus(ev.ID, st) {
			e.statsMu.Lock()
			e.stats.TotalReconcile++
			e.statsMu.Unlock()
			if e.metrics != nil {
				e.metrics.ReconcileEvents.WithLabelValues(string(st)).Inc()
			}
			e.logger.Order("status_event", ev.ID, zap.String("status", string(st)))
			return
		}
	}
	e.logger.Debug("Status event for unknown order", zap.String("order_id", ev.ID))
}

// onFill 成交观测。
func (e *QuotingEngine) onFill(ev gateway.FillEvent) {
	e.statsMu.Lock()
	e.stats.TotalFills++
	e.statsMu.Unlock()
	if e.metrics != nil {
		e.metrics.FillsSeen.Inc()
	}
	e.logger.Debug("Fill observed",
		zap.String("order_id", ev.OrderID),
		zap.String("price", ev.Price),
		zap.String("quantity", ev.Quantity))
}

// warmupPositions 启动时把既有仓位转成库存记录和合成的 Filled 虚拟单。
func (e *QuotingEngine) warmupPositions(ctx context.Context) error {
	productIDs := make([]string, 0, len(e.cfg.Instruments))
	for _, ic := range e.cfg.Instruments {
		if ic.ProductID != "" {
			productIDs = append(productIDs, ic.ProductID)
		}
	}
	if len(productIDs) == 0 {
		return nil
	}

	resp, err := e.adapter.Positions(ctx, e.cfg.SubaccountID, productIDs)
	if err != nil {
		return err
	}

	nowMs := e.now().UnixMilli()
	for _, row := range resp.Data {
		ticker, ok := e.byProduct[row.ProductID]
		if !ok {
			e.logger.Debug("Position for unknown product", zap.String("product_id", row.ProductID))
			continue
		}
		qty, err := inventory.ParseQuantity(row.Quantity)
		if err != nil {
			e.logger.Error("Bad position quantity", zap.String("product_id", row.ProductID), zap.Error(err))
			continue
		}
		entry, err := inventory.ParseQuantity(row.EntryPrice)
		if err != nil {
			e.logger.Error("Bad position entry price", zap.String("product_id", row.ProductID), zap.Error(err))
			continue
		}
		pos, ok := inventory.FromSigned(ticker, qty, entry, nowMs)
		if !ok {
			continue
		}

		st := e.stateFor(ticker)
		st.SetInventory(pos)

		side := order.Bid
		if pos.Direction == inventory.Short {
			side = order.Ask
		}
		synth := order.Order{
			ID:         order.SyntheticID(side, row.ProductID),
			Instrument: ticker,
			Side:       side,
			Price:      entry,
			Quantity:   pos.Quantity,
			FilledQty:  pos.Quantity,
			Status:     order.StatusFilled,
			CreatedMs:  nowMs,
		}
		if err := st.InstallPlaced(side, synth); err != nil {
			e.logger.Error("Failed to install synthetic order", zap.Error(err))
			continue
		}
		e.logger.WithInstrument(ticker).Info("Seeded inventory from position",
			zap.String("direction", pos.Direction.String()),
			zap.Float64("quantity", pos.Quantity),
			zap.Float64("entry_price", entry))
	}
	return nil
}

// shutdownCancel 关停路径：先清锁，再一次性批量撤掉所有真实挂单，最后清槽。
func (e *QuotingEngine) shutdownCancel(ctx context.Context) {
	e.statesMu.RLock()
	states := make([]*InstrumentState, 0, len(e.states))
	for _, s := range e.states {
		states = append(states, s)
	}
	e.statesMu.RUnlock()

	var ids []string
	for _, s := range states {
		s.ClearLocks()
		for _, o := range s.LiveCancelableOrders() {
			ids = append(ids, o.ID)
		}
	}

	if len(ids) > 0 {
		if e.cfg.Subaccount == "" {
			e.logger.Error("Subaccount not configured, skipping shutdown bulk cancel",
				zap.Int("orders", len(ids)))
		} else if _, err := e.adapter.Cancel(ctx, gateway.CancelRequest{
			OrderIDs:   ids,
			Subaccount: e.cfg.Subaccount,
		}); err != nil {
			e.logger.Error("Shutdown bulk cancel failed", zap.Error(err))
		} else {
			e.logger.Info("Shutdown bulk cancel submitted", zap.Int("orders", len(ids)))
		}
	}

	for _, s := range states {
		s.ClearSlots()
	}
}

// slotGauge 槽位占用导出为 0/1。
func slotGauge(occupied bool) float64 {
	if occupied {
		return 1
	}
	return 0
}

// stateFor 懒建交易对状态。
func (e *QuotingEngine) stateFor(ticker string) *InstrumentState {
	e.statesMu.RLock()
	s, ok := e.states[ticker]
	e.statesMu.RUnlock()
	if ok {
		return s
	}
	e.statesMu.Lock()
	defer e.statesMu.Unlock()
	if s, ok := e.states[ticker]; ok {
		return s
	}
	s = newInstrumentState(ticker)
	e.states[ticker] = s
	return s
}

func (e *QuotingEngine) recordError() {
	e.statsMu.Lock()
	e.stats.TotalErrors++
	e.statsMu.Unlock()
}

// GetState 获取引擎状态
func (e *QuotingEngine) GetState() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetStatistics 获取统计信息
func (e *QuotingEngine) GetStatistics() Statistics {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// InstrumentCount 配置的交易对数量
func (e *QuotingEngine) InstrumentCount() int {
	return len(e.cfg.Instruments)
}

func validateConfig(cfg Config) error {
	if len(cfg.Instruments) == 0 {
		return errors.New("instruments are required")
	}
	if cfg.SubaccountID == "" {
		return errors.New("subaccount id is required")
	}
	seen := make(map[string]struct{}, len(cfg.Instruments))
	for _, ic := range cfg.Instruments {
		if ic.Ticker == "" {
			return errors.New("instrument ticker is required")
		}
		if _, dup := seen[ic.Ticker]; dup {
			return fmt.Errorf("duplicate instrument %s", ic.Ticker)
		}
		seen[ic.Ticker] = struct{}{}
		if ic.OrderSize <= 0 {
			return fmt.Errorf("instrument %s order size must be > 0", ic.Ticker)
		}
		if ic.SpreadBp < 0 {
			return fmt.Errorf("instrument %s spread must be >= 0", ic.Ticker)
		}
		if ic.MaxDeviationPct < 0 {
			return fmt.Errorf("instrument %s max deviation must be >= 0", ic.Ticker)
		}
	}
	return nil
}

func validateComponents(comp Components) error {
	if comp.Adapter == nil {
		return errors.New("exchange adapter is required")
	}
	if comp.Events == nil {
		return errors.New("event stream is required")
	}
	if comp.Feed == nil {
		return errors.New("oracle feed is required")
	}
	if comp.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}
