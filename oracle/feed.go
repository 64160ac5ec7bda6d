package oracle

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aaronyhsoh33/market-maker-bot/market"
)

// DefaultWSURL 预言机行情流地址。
const DefaultWSURL = "wss://oracle.etherealtest.net/v1/prices"

// StaleAfter 超过该时长的 tick 在入口处直接丢弃，引擎信任送达的数据。
const StaleAfter = 60 * time.Second

type tickMessage struct {
	Instrument  string  `json:"instrument"`
	Price       float64 `json:"price"`
	Confidence  float64 `json:"confidence"`
	TimestampMs int64   `json:"timestampMs"`
}

type subscribeMessage struct {
	Type        string   `json:"type"`
	Instruments []string `json:"instruments"`
}

// Feed 预言机价格流消费端。回调在读循环 goroutine 中执行，只做内存写入。
type Feed struct {
	URL    string
	Dialer *websocket.Dialer

	// now 可替换以便测试过期过滤。
	now func() time.Time

	mu   sync.Mutex
	conn *websocket.Conn
	cb   func(market.Tick)
	done chan struct{}

	// OnReadError 读循环退出时回调；可选。
	OnReadError func(error)
}

func NewFeed(wsURL string) *Feed {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &Feed{URL: wsURL, Dialer: websocket.DefaultDialer, now: time.Now}
}

// Connect 建立连接并启动读循环。
func (f *Feed) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		return nil
	}
	conn, _, err := f.Dialer.Dial(f.URL, nil)
	if err != nil {
		return fmt.Errorf("dial oracle ws: %w", err)
	}
	f.conn = conn
	f.done = make(chan struct{})
	go f.readLoop(conn, f.done)
	return nil
}

// Subscribe 订阅一组交易对的价格推送。
func (f *Feed) Subscribe(instruments []string, cb func(market.Tick)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
	if f.conn == nil {
		return fmt.Errorf("oracle ws not connected")
	}
	return f.conn.WriteJSON(subscribeMessage{Type: "subscribe", Instruments: instruments})
}

// Disconnect 关闭连接并等待读循环退出。
func (f *Feed) Disconnect() error {
	f.mu.Lock()
	conn, done := f.conn, f.done
	f.conn, f.done = nil, nil
	f.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	if done != nil {
		<-done
	}
	return err
}

func (f *Feed) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if f.OnReadError != nil {
				f.OnReadError(err)
			}
			return
		}
		f.handleMessage(msg)
	}
}

func (f *Feed) handleMessage(msg []byte) {
	var tm tickMessage
	if err := json.Unmarshal(msg, &tm); err != nil || tm.Instrument == "" {
		return
	}
	// 入口处过滤过期行情
	age := f.now().UnixMilli() - tm.TimestampMs
	if age > StaleAfter.Milliseconds() {
		return
	}
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(market.Tick{
			Instrument:  tm.Instrument,
			Price:       tm.Price,
			Confidence:  tm.Confidence,
			TimestampMs: tm.TimestampMs,
		})
	}
}
