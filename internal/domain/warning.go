package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Warning 一条管理员警告
type Warning struct {
	IssuedAt time.Time
	Display  string    // IssuedAt 的展示字符串，按原样持久化
	Issuer   uuid.UUID // Console 表示控制台
	Reason   string
}

// NewWarning 创建一条警告，时间戳取 now
func NewWarning(issuer uuid.UUID, reason string, now time.Time) Warning {
	now = stamp(now)
	return Warning{
		IssuedAt: now,
		Display:  FormatDisplay(now),
		Issuer:   issuer,
		Reason:   cleanText(reason),
	}
}

// Equal 按全部字段比较两条警告
func (w Warning) Equal(other Warning) bool {
	return w.IssuedAt.Equal(other.IssuedAt) &&
		w.Display == other.Display &&
		w.Issuer == other.Issuer &&
		w.Reason == other.Reason
}

// WarningLog 按插入顺序保存的警告序列。
//
// 下标只是位置，不是稳定编号：删除第 i 条后，其后所有警告的下标减一。
type WarningLog struct {
	items []Warning
}

// NewWarningLog 以给定顺序创建警告序列
func NewWarningLog(items ...Warning) *WarningLog {
	l := &WarningLog{items: make([]Warning, 0, len(items))}
	l.items = append(l.items, items...)
	return l
}

// Append 追加一条警告
func (l *WarningLog) Append(w Warning) {
	l.items = append(l.items, w)
}

// Len 警告数量
func (l *WarningLog) Len() int {
	return len(l.items)
}

// RemoveAt 删除下标为 i 的警告
func (l *WarningLog) RemoveAt(i int) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("warning %d: %w", i, ErrNotFound)
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return nil
}

// Remove 删除第一条与 w 相等的警告，返回是否删除
func (l *WarningLog) Remove(w Warning) bool {
	for i := range l.items {
		if l.items[i].Equal(w) {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// Range 返回闭区间 [first, last] 内的警告副本。
//
// last 为 -1 表示到末尾；first > last 时交换；两端都夹到 [0, Len()-1]。
func (l *WarningLog) Range(first, last int) []Warning {
	lo, hi, ok := NormalizeRange(first, last, len(l.items))
	if !ok {
		return []Warning{}
	}
	out := make([]Warning, hi-lo+1)
	copy(out, l.items[lo:hi+1])
	return out
}

// All 返回全部警告的副本
func (l *WarningLog) All() []Warning {
	out := make([]Warning, len(l.items))
	copy(out, l.items)
	return out
}

// NormalizeRange 规范化下标区间。
//
// 参数:
//   - first, last: 请求的闭区间端点，last 为 -1 表示末尾
//   - size: 序列长度
//
// 返回值:
//   - lo, hi: 规范化后的闭区间
//   - ok: 序列为空时为 false
func NormalizeRange(first, last, size int) (int, int, bool) {
	if size == 0 {
		return 0, 0, false
	}
	if last == -1 {
		last = size - 1
	}
	if first > last {
		first, last = last, first
	}
	first = clamp(first, 0, size-1)
	last = clamp(last, 0, size-1)
	return first, last, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
