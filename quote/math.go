package quote

import "math"

// BpToDecimal 基点转小数：100bp = 1%。
func BpToDecimal(bp float64) float64 {
	return bp / 10_000
}

// BidTarget 返回挂单买价目标：mid 向下偏移整个 spread。
// 注意：挂单用全额偏移，风控投影用半额偏移（见 Project），两者不一致是既定行为。
func BidTarget(mid, spreadBp float64) float64 {
	return mid - mid*BpToDecimal(spreadBp)
}

// AskTarget 返回挂单卖价目标：mid 向上偏移整个 spread。
func AskTarget(mid, spreadBp float64) float64 {
	return mid + mid*BpToDecimal(spreadBp)
}

// RoundToTick 将价格对齐到 tick 的整数倍，0.5 向远离零方向进位。
func RoundToTick(p, tick float64) float64 {
	if tick <= 0 {
		return p
	}
	return math.Round(p/tick) * tick
}

// MaxDevAbs 将百分比偏离上限换算为绝对价差。
func MaxDevAbs(price, pct float64) float64 {
	return price * pct / 100
}

// Dev 返回两个价格的绝对偏差。
func Dev(a, b float64) float64 {
	return math.Abs(a - b)
}

// Projection 单个报价周期的市场投影。
type Projection struct {
	Instrument string
	Mid        float64
	BidTarget  float64
	AskTarget  float64
	MaxDevAbs  float64
	ComputedMs int64
}

// Project 基于 mid 计算半 spread 投影；挂单价格目标另见 BidTarget/AskTarget。
func Project(instrument string, mid, spreadBp, maxDevPct float64, nowMs int64) Projection {
	spread := mid * BpToDecimal(spreadBp)
	return Projection{
		Instrument: instrument,
		Mid:        mid,
		BidTarget:  mid - spread/2,
		AskTarget:  mid + spread/2,
		MaxDevAbs:  MaxDevAbs(mid, maxDevPct),
		ComputedMs: nowMs,
	}
}
