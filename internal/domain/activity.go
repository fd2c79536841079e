package domain

import (
	"fmt"
	"strings"
	"time"
)

// LogChannel 活动日志通道
type LogChannel string

const (
	ChannelMessages LogChannel = "messages"
	ChannelCommands LogChannel = "commands"
	ChannelMail     LogChannel = "mail"
)

// LogChannels 全部通道，按持久化顺序排列
var LogChannels = []LogChannel{ChannelMessages, ChannelCommands, ChannelMail}

// ParseLogChannel 解析通道名（不区分大小写）
func ParseLogChannel(name string) (LogChannel, error) {
	ch := LogChannel(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range LogChannels {
		if ch == known {
			return ch, nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, ErrUnknownChannel)
}

// LogEntry 一条活动日志
type LogEntry struct {
	LoggedAt time.Time
	Display  string
	Payload  string
}

// String 以 "[展示时间] 内容" 的形式输出
func (e LogEntry) String() string {
	return "[" + e.Display + "] " + e.Payload
}

// ActivityLog 三个互相独立、只追加的日志通道
type ActivityLog struct {
	channels map[LogChannel][]LogEntry
}

// NewActivityLog 创建空的活动日志
func NewActivityLog() *ActivityLog {
	a := &ActivityLog{channels: make(map[LogChannel][]LogEntry, len(LogChannels))}
	for _, ch := range LogChannels {
		a.channels[ch] = []LogEntry{}
	}
	return a
}

// Restore 用已加载的条目替换一个通道
func (a *ActivityLog) Restore(ch LogChannel, entries []LogEntry) error {
	if _, ok := a.channels[ch]; !ok {
		return fmt.Errorf("%q: %w", ch, ErrUnknownChannel)
	}
	cp := make([]LogEntry, len(entries))
	copy(cp, entries)
	a.channels[ch] = cp
	return nil
}

// Append 追加一条日志，时间戳取 now
func (a *ActivityLog) Append(ch LogChannel, text string, now time.Time) (LogEntry, error) {
	if _, ok := a.channels[ch]; !ok {
		return LogEntry{}, fmt.Errorf("%q: %w", ch, ErrUnknownChannel)
	}
	now = stamp(now)
	entry := LogEntry{LoggedAt: now, Display: FormatDisplay(now), Payload: cleanText(text)}
	a.channels[ch] = append(a.channels[ch], entry)
	return entry, nil
}

// QueryByDate 返回 LoggedAt 严格位于 from 与 to 之间的条目，格式为 "[展示时间] 内容"。
//
// from 晚于 to 时自动交换。
func (a *ActivityLog) QueryByDate(ch LogChannel, from, to time.Time) ([]string, error) {
	entries, ok := a.channels[ch]
	if !ok {
		return nil, fmt.Errorf("%q: %w", ch, ErrUnknownChannel)
	}
	if from.After(to) {
		from, to = to, from
	}

	out := make([]string, 0)
	for _, e := range entries {
		if e.LoggedAt.After(from) && e.LoggedAt.Before(to) {
			out = append(out, e.String())
		}
	}
	return out, nil
}

// Entries 返回一个通道的条目副本
func (a *ActivityLog) Entries(ch LogChannel) []LogEntry {
	entries := a.channels[ch]
	out := make([]LogEntry, len(entries))
	copy(out, entries)
	return out
}

// Len 通道内条目数量
func (a *ActivityLog) Len(ch LogChannel) int {
	return len(a.channels[ch])
}

// Clear 清空一个通道
func (a *ActivityLog) Clear(ch LogChannel) error {
	if _, ok := a.channels[ch]; !ok {
		return fmt.Errorf("%q: %w", ch, ErrUnknownChannel)
	}
	a.channels[ch] = []LogEntry{}
	return nil
}

// ClearAll 清空全部通道
func (a *ActivityLog) ClearAll() {
	for _, ch := range LogChannels {
		a.channels[ch] = []LogEntry{}
	}
}
