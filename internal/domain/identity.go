package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Console 表示非玩家的管理端操作者（控制台）。
//
// 禁言发起人、警告发起人和邮件发件人为 Console 时，存储层写入 "Console"。
var Console = uuid.Nil

// DisplayLayout 是所有展示用时间字符串的格式，例如 "07 Mar 2024 18:42:05"
const DisplayLayout = "02 Jan 2006 15:04:05"

// IsConsole 判断标识是否代表控制台
func IsConsole(id uuid.UUID) bool {
	return id == Console
}

// FormatDisplay 将时间格式化为展示字符串，零值返回空串
func FormatDisplay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayLayout)
}

// stamp 将时间截断到毫秒并去掉单调时钟读数，与持久化精度保持一致
func stamp(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli())
}

// stampUp 同 stamp，但不足一毫秒的部分向上进位
func stampUp(t time.Time) time.Time {
	s := stamp(t)
	if s.Before(t) {
		s = s.Add(time.Millisecond)
	}
	return s
}

// cleanText 把非法 UTF-8 字节替换为 U+FFFD，否则该记录无法再序列化
func cleanText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
