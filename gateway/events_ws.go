package gateway

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultWSURL 测试网事件流地址。
const DefaultWSURL = "wss://ws.etherealtest.net/v1/stream"

const (
	channelOrderUpdate = "OrderUpdate"
	channelOrderFill   = "OrderFill"
)

// wsEnvelope 事件流统一信封。
type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type wsSubscribe struct {
	Type         string `json:"type"`
	Channel      string `json:"channel"`
	SubaccountID string `json:"subaccountId"`
}

// EtherealEventsClient 订单状态/成交事件流。回调在读循环 goroutine 中执行，
// 只应做内存状态变更，不得阻塞在交易所调用上。
type EtherealEventsClient struct {
	URL    string
	Dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	onStatus func(OrderStatusEvent)
	onFill   func(FillEvent)
	done     chan struct{}

	// OnReadError 读循环退出时回调（连接断开等）；可选。
	OnReadError func(error)
}

func NewEtherealEventsClient(wsURL string) *EtherealEventsClient {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &EtherealEventsClient{URL: wsURL, Dialer: websocket.DefaultDialer}
}

// Connect 建立连接并启动读循环。
func (c *EtherealEventsClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := c.Dialer.Dial(c.URL, nil)
	if err != nil {
		return fmt.Errorf("dial events ws: %w", err)
	}
	c.conn = conn
	c.done = make(chan struct{})
	go c.readLoop(conn, c.done)
	return nil
}

// SubscribeOrderUpdates 订阅订单状态推送。
func (c *EtherealEventsClient) SubscribeOrderUpdates(subaccountID string, cb func(OrderStatusEvent)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = cb
	return c.writeSubscribe(channelOrderUpdate, subaccountID)
}

// SubscribeOrderFills 订阅成交推送。成交流只作观测，对账以状态事件为准。
func (c *EtherealEventsClient) SubscribeOrderFills(subaccountID string, cb func(FillEvent)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFill = cb
	return c.writeSubscribe(channelOrderFill, subaccountID)
}

func (c *EtherealEventsClient) writeSubscribe(channel, subaccountID string) error {
	if c.conn == nil {
		return fmt.Errorf("events ws not connected")
	}
	return c.conn.WriteJSON(wsSubscribe{Type: "subscribe", Channel: channel, SubaccountID: subaccountID})
}

// Disconnect 关闭连接并等待读循环退出。
func (c *EtherealEventsClient) Disconnect() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn, c.done = nil, nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	if done != nil {
		<-done
	}
	return err
}

func (c *EtherealEventsClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if c.OnReadError != nil {
				c.OnReadError(err)
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *EtherealEventsClient) dispatch(msg []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return
	}
	c.mu.Lock()
	onStatus, onFill := c.onStatus, c.onFill
	c.mu.Unlock()

	switch env.Channel {
	case channelOrderUpdate:
		if onStatus == nil {
			return
		}
		var ev OrderStatusEvent
		if err := json.Unmarshal(env.Data, &ev); err == nil {
			onStatus(ev)
		}
	case channelOrderFill:
		if onFill == nil {
			return
		}
		var ev FillEvent
		if err := json.Unmarshal(env.Data, &ev); err == nil {
			onFill(ev)
		}
	}
}
