// Package codec 负责把单条结构化数据（警告、活动日志、禁言与邮件字段）
// 编码为以保留分隔符连接的文本行，以及反向解析。
//
// 自由文本字段中出现的分隔符会被替换为 EscapeToken；自由文本中原本出现的
// 转义前缀 "_CF" 会被双写为 "_CF_CF"，因此解码总是无歧义的，
// 只含 EscapeToken 的旧数据仍按原义解码。
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cfchat/backend/internal/domain"
)

const (
	// Delimiter 字段分隔符
	Delimiter = "§"
	// EscapeToken 自由文本中分隔符的替代串
	EscapeToken = "_CFUNIQUE_"
	// ConsoleName 控制台在标识与名称字段中的写法
	ConsoleName = "Console"

	escapePrefix = "_CF"
)

var (
	escaper   = strings.NewReplacer(escapePrefix, escapePrefix+escapePrefix, Delimiter, EscapeToken)
	unescaper = strings.NewReplacer(escapePrefix+escapePrefix, escapePrefix, EscapeToken, Delimiter)
)

// NameFunc 根据标识解析展示名称
type NameFunc func(id uuid.UUID) string

// Escape 转义自由文本
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape 还原自由文本
func Unescape(s string) string {
	return unescaper.Replace(s)
}

// Join 用分隔符连接已转义的字段
func Join(fields ...string) string {
	return strings.Join(fields, Delimiter)
}

// Split 按分隔符拆分，最多 arity 段；最后一段保留其余内容。
//
// 段数少于 arity 时返回 domain.ErrFormat。
func Split(s string, arity int) ([]string, error) {
	parts := strings.SplitN(s, Delimiter, arity)
	if len(parts) < arity {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", domain.ErrFormat, arity, len(parts))
	}
	return parts, nil
}

// FormatMillis 把时间写为毫秒时间戳，零值写为空串
func FormatMillis(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseMillis 解析毫秒时间戳，空串与 "0" 得到零值时间
func ParseMillis(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", domain.ErrFormat, s)
	}
	if ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

// FormatIdentity 写出标识，控制台写为 "Console"
func FormatIdentity(id uuid.UUID) string {
	if domain.IsConsole(id) {
		return ConsoleName
	}
	return id.String()
}

// ParseIdentity 解析标识，"console"（不区分大小写）得到 domain.Console。
//
// 允许 "<uuid>:<注释>" 形式，冒号之后的内容被忽略。
func ParseIdentity(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, ConsoleName) {
		return domain.Console, nil
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: identity %q", domain.ErrFormat, s)
	}
	return id, nil
}

// FormatName 写出名称字段，控制台写为 "Console"
func FormatName(id uuid.UUID, names NameFunc) string {
	if domain.IsConsole(id) {
		return ConsoleName
	}
	if names == nil {
		return id.String()
	}
	if name := names(id); name != "" {
		return strings.ToValidUTF8(name, "\uFFFD")
	}
	return id.String()
}
