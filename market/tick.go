package market

// Tick 预言机推送的一条归一化行情。
type Tick struct {
	Instrument  string
	Price       float64
	Confidence  float64
	TimestampMs int64
}
