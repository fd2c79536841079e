package codec

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"cfchat/backend/internal/domain"
)

const (
	warningArity  = 5 // issuedAt § display § issuerID § issuerName § reason
	logEntryArity = 3 // loggedAt § display § payload
)

// EncodeWarning 编码一条警告
func EncodeWarning(w domain.Warning, names NameFunc) string {
	return Join(
		FormatMillis(w.IssuedAt),
		Escape(w.Display),
		FormatIdentity(w.Issuer),
		Escape(FormatName(w.Issuer, names)),
		Escape(w.Reason),
	)
}

// DecodeWarning 解析一条警告，名称字段只用于展示，解析时忽略
func DecodeWarning(s string) (domain.Warning, error) {
	parts, err := Split(s, warningArity)
	if err != nil {
		return domain.Warning{}, fmt.Errorf("warning: %w", err)
	}
	issuedAt, err := ParseMillis(parts[0])
	if err != nil {
		return domain.Warning{}, fmt.Errorf("warning: %w", err)
	}
	issuer, err := ParseIdentity(parts[2])
	if err != nil {
		return domain.Warning{}, fmt.Errorf("warning: %w", err)
	}
	return domain.Warning{
		IssuedAt: issuedAt,
		Display:  Unescape(parts[1]),
		Issuer:   issuer,
		Reason:   Unescape(parts[4]),
	}, nil
}

// EncodeLogEntry 编码一条活动日志
func EncodeLogEntry(e domain.LogEntry) string {
	return Join(FormatMillis(e.LoggedAt), Escape(e.Display), Escape(e.Payload))
}

// DecodeLogEntry 解析一条活动日志
func DecodeLogEntry(s string) (domain.LogEntry, error) {
	parts, err := Split(s, logEntryArity)
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("log entry: %w", err)
	}
	loggedAt, err := ParseMillis(parts[0])
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("log entry: %w", err)
	}
	return domain.LogEntry{
		LoggedAt: loggedAt,
		Display:  Unescape(parts[1]),
		Payload:  Unescape(parts[2]),
	}, nil
}

// EncodeLogEntries 编码整个通道
func EncodeLogEntries(entries []domain.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = EncodeLogEntry(e)
	}
	return out
}

// DecodeLogEntries 解析整个通道，第一条错误即返回
func DecodeLogEntries(lines []string) ([]domain.LogEntry, error) {
	out := make([]domain.LogEntry, 0, len(lines))
	for i, line := range lines {
		e, err := DecodeLogEntry(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// TimePair 编码 [毫秒时间戳, 展示时间] 对
func TimePair(t time.Time) []string {
	if t.IsZero() {
		return []string{"", ""}
	}
	return []string{FormatMillis(t), domain.FormatDisplay(t)}
}

// IdentityPair 编码 [标识或Console, 名称或Console] 对
func IdentityPair(id uuid.UUID, names NameFunc) []string {
	return []string{FormatIdentity(id), FormatName(id, names)}
}
