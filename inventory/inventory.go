package inventory

import (
	"fmt"
	"strconv"
	"strings"
)

// Direction 持仓方向。
type Direction int

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Long {
		return "LONG"
	}
	return "SHORT"
}

// Position 从交易所仓位查询得到的一条持仓记录；Quantity 恒为正数。
type Position struct {
	Instrument string
	Direction  Direction
	Quantity   float64
	EntryPrice float64
	ObservedMs int64
}

// ParseQuantity 解析交易所返回的带符号数量字符串；正=多头，负=空头。
func ParseQuantity(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse position quantity %q: %w", raw, err)
	}
	return v, nil
}

// FromSigned 根据带符号数量构造持仓记录；数量为零时返回 false。
func FromSigned(instrument string, qty, entryPrice float64, observedMs int64) (Position, bool) {
	if qty == 0 {
		return Position{}, false
	}
	p := Position{
		Instrument: instrument,
		Direction:  Long,
		Quantity:   qty,
		EntryPrice: entryPrice,
		ObservedMs: observedMs,
	}
	if qty < 0 {
		p.Direction = Short
		p.Quantity = -qty
	}
	return p, true
}
