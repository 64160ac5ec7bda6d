package gateway

// 与 Ethereal REST/WS 交互的报文类型。响应与推送中的数值字段按交易所惯例
// 以字符串传输，由调用方解析；下单请求的价格与数量以数字发送。

// PlaceRequest 限价下单请求。Side 采用交易所编码：0=买 1=卖。
type PlaceRequest struct {
	OrderType     string  `json:"orderType"`
	Quantity      float64 `json:"quantity"`
	Side          int     `json:"side"`
	Price         float64 `json:"price"`
	Ticker        string  `json:"ticker"`
	ProductID     string  `json:"productId,omitempty"`
	TimeInForce   string  `json:"timeInForce"`
	ExpiresAtSec  int64   `json:"expiresAt,omitempty"`
	ClientOrderID string  `json:"clientOrderId,omitempty"`
	Subaccount    string  `json:"subaccount,omitempty"`
}

// PlaceResponse 下单响应；OrderID 为空视为拒单。
type PlaceResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status,omitempty"`
}

// CancelRequest 批量撤单请求。
type CancelRequest struct {
	OrderIDs   []string `json:"orderIds"`
	Subaccount string   `json:"subaccount"`
}

// CancelResponse 撤单响应。
type CancelResponse struct {
	Canceled []string `json:"canceled,omitempty"`
}

// PositionRow 仓位查询的一行；Quantity 带符号，正=多头。
type PositionRow struct {
	ProductID  string `json:"productId"`
	Quantity   string `json:"quantity"`
	EntryPrice string `json:"entryPrice"`
}

// PositionsResponse 仓位查询响应。
type PositionsResponse struct {
	Data []PositionRow `json:"data"`
}

// Product 产品目录里的一个合约。
type Product struct {
	ID          string `json:"id"`
	Ticker      string `json:"ticker"`
	TickSize    string `json:"tickSize"`
	MinQuantity string `json:"minQuantity"`
	MaxQuantity string `json:"maxQuantity"`
}

// ProductsResponse 产品目录响应。
type ProductsResponse struct {
	Data []Product `json:"data"`
}

// OrderRow 订单列表里的一行（运维工具用）。
type OrderRow struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Status    string `json:"status"`
}

// OrdersResponse 订单列表响应。
type OrdersResponse struct {
	Data []OrderRow `json:"data"`
}

// OrderStatusEvent 订单状态推送。
type OrderStatusEvent struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ProductID string `json:"productId,omitempty"`
	FilledQty string `json:"filledQty,omitempty"`
}

// FillEvent 成交推送；仅作观测，对账以状态事件为准。
type FillEvent struct {
	OrderID  string `json:"orderId"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}
