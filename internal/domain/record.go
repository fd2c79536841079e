package domain

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PlayerState 是一名玩家全部数据的值拷贝，用于加载与保存。
type PlayerState struct {
	ID       uuid.UUID
	Mute     MuteStatus
	Warnings []Warning
	Mail     map[int]MailItem
	Logs     map[LogChannel][]LogEntry
	Ignore   []uuid.UUID
	Groups   []string
}

// PlayerRecord 聚合一名玩家的禁言状态、警告、邮箱、活动日志、屏蔽列表与所属群组。
//
// 所有方法都持有记录自身的读写锁，调用方不会拿到内部结构的引用。
// 记录由 record.Store 独占，重新加载后旧引用即失效，需要重新获取。
type PlayerRecord struct {
	mu       sync.RWMutex
	id       uuid.UUID
	mute     MuteStatus
	warnings *WarningLog
	mail     *Mailbox
	logs     *ActivityLog
	ignore   []uuid.UUID
	groups   []string
	now      func() time.Time
}

// NewPlayerRecord 创建全部为空的记录
func NewPlayerRecord(id uuid.UUID, now func() time.Time) *PlayerRecord {
	if now == nil {
		now = time.Now
	}
	return &PlayerRecord{
		id:       id,
		warnings: NewWarningLog(),
		mail:     NewMailbox(),
		logs:     NewActivityLog(),
		ignore:   []uuid.UUID{},
		groups:   []string{},
		now:      now,
	}
}

// RestorePlayerRecord 从加载得到的状态构建记录，并对禁言执行惰性过期。
func RestorePlayerRecord(state PlayerState, now func() time.Time) (*PlayerRecord, error) {
	r := NewPlayerRecord(state.ID, now)

	r.mute = state.Mute
	r.mute.Normalize(r.now())

	r.warnings = NewWarningLog(state.Warnings...)
	for _, item := range state.Mail {
		r.mail.Put(item)
	}
	for ch, entries := range state.Logs {
		if err := r.logs.Restore(ch, entries); err != nil {
			return nil, err
		}
	}
	for _, id := range state.Ignore {
		r.ignore = appendUnique(r.ignore, id)
	}
	for _, g := range state.Groups {
		r.groups = appendUnique(r.groups, g)
	}
	return r, nil
}

// ID 玩家标识
func (r *PlayerRecord) ID() uuid.UUID {
	return r.id
}

// Snapshot 在读锁下复制全部数据
func (r *PlayerRecord) Snapshot() PlayerState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	logs := make(map[LogChannel][]LogEntry, len(LogChannels))
	for _, ch := range LogChannels {
		logs[ch] = r.logs.Entries(ch)
	}
	return PlayerState{
		ID:       r.id,
		Mute:     r.mute,
		Warnings: r.warnings.All(),
		Mail:     r.mail.All(),
		Logs:     logs,
		Ignore:   append([]uuid.UUID{}, r.ignore...),
		Groups:   append([]string{}, r.groups...),
	}
}

// ========== 禁言 ==========

// Mute 禁言到 releaseAt
func (r *PlayerRecord) Mute(issuer uuid.UUID, releaseAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mute.Mute(issuer, releaseAt, r.now())
}

// MuteFor 禁言 d 时长
func (r *PlayerRecord) MuteFor(issuer uuid.UUID, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	return r.mute.Mute(issuer, now.Add(d), now)
}

// Unmute 解除禁言
func (r *PlayerRecord) Unmute() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mute.Unmute()
}

// IsMuted 查询是否禁言中。记录常驻内存期间跨过解除时间时，在这里清空状态。
func (r *PlayerRecord) IsMuted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mute.Normalize(r.now())
	return r.mute.Active
}

// MuteStatus 返回禁言状态副本
func (r *PlayerRecord) MuteStatus() MuteStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mute
}

// ========== 警告 ==========

// AddWarning 以当前时间创建并追加一条警告
func (r *PlayerRecord) AddWarning(issuer uuid.UUID, reason string) Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := NewWarning(issuer, reason, r.now())
	r.warnings.Append(w)
	return w
}

// AppendWarning 追加一条已构造的警告
func (r *PlayerRecord) AppendWarning(w Warning) {
	w.Reason = cleanText(w.Reason)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings.Append(w)
}

// RemoveWarning 按位置删除警告，之后的下标整体前移
func (r *PlayerRecord) RemoveWarning(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warnings.RemoveAt(i)
}

// RemoveWarningValue 删除第一条相等的警告
func (r *PlayerRecord) RemoveWarningValue(w Warning) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warnings.Remove(w)
}

// Warnings 返回闭区间 [first, last] 的警告，规则见 WarningLog.Range
func (r *PlayerRecord) Warnings(first, last int) []Warning {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.warnings.Range(first, last)
}

// WarningCount 警告数量
func (r *PlayerRecord) WarningCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.warnings.Len()
}

// ========== 活动日志 ==========

// Log 向通道追加一条日志
func (r *PlayerRecord) Log(ch LogChannel, text string) (LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs.Append(ch, text, r.now())
}

// Logs 按时间区间查询日志
func (r *PlayerRecord) Logs(ch LogChannel, from, to time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logs.QueryByDate(ch, from, to)
}

// LogList 返回从纪元到现在的全部日志
func (r *PlayerRecord) LogList(ch LogChannel) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logs.QueryByDate(ch, time.UnixMilli(0), r.now().Add(time.Millisecond))
}

// ClearLog 清空一个通道
func (r *PlayerRecord) ClearLog(ch LogChannel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs.Clear(ch)
}

// ClearLogs 清空全部通道
func (r *PlayerRecord) ClearLogs() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs.ClearAll()
}

// ========== 邮件 ==========

// DeliverMail 投递邮件，编号重复返回 ErrDuplicateMailID
func (r *PlayerRecord) DeliverMail(id int, sender uuid.UUID, body string) (MailItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mail.Deliver(id, sender, body, r.now())
}

// DeliverNextMail 以下一个可用编号投递邮件
func (r *PlayerRecord) DeliverNextMail(sender uuid.UUID, body string) (MailItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mail.Deliver(r.mail.NextID(), sender, body, r.now())
}

// Mail 根据编号获取邮件
func (r *PlayerRecord) Mail(id int) (MailItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mail.Get(id)
}

// AllMail 返回全部邮件
func (r *PlayerRecord) AllMail() map[int]MailItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mail.All()
}

// UnreadMail 返回未读邮件
func (r *PlayerRecord) UnreadMail() map[int]MailItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mail.Unread()
}

// MailIDs 返回升序邮件编号
func (r *PlayerRecord) MailIDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mail.IDs()
}

// MarkMailRead 标记已读
func (r *PlayerRecord) MarkMailRead(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mail.MarkRead(id)
}

// DeleteMail 删除邮件
func (r *PlayerRecord) DeleteMail(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mail.Delete(id)
}

// ========== 屏蔽列表 ==========

// AddIgnore 屏蔽一名玩家，重复添加无效果
func (r *PlayerRecord) AddIgnore(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignore = appendUnique(r.ignore, id)
}

// RemoveIgnore 取消屏蔽，不存在时无效果
func (r *PlayerRecord) RemoveIgnore(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignore = removeValue(r.ignore, id)
}

// IsIgnoring 是否屏蔽了该玩家
func (r *PlayerRecord) IsIgnoring(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return indexOf(r.ignore, id) >= 0
}

// IgnoreList 返回屏蔽列表副本
func (r *PlayerRecord) IgnoreList() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]uuid.UUID{}, r.ignore...)
}

// ========== 群组 ==========

// AddGroup 加入群组，重复加入无效果
//
// 群组标识原样保存，不能为空、不能带首尾空白，也不能包含 ':'。
func (r *PlayerRecord) AddGroup(group string) error {
	if group == "" || strings.TrimSpace(group) != group || strings.ContainsRune(group, ':') {
		return fmt.Errorf("group %q: %w", group, ErrFormat)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = appendUnique(r.groups, group)
	return nil
}

// RemoveGroup 退出群组，不在群组中时无效果
func (r *PlayerRecord) RemoveGroup(group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = removeValue(r.groups, group)
}

// InGroup 是否属于该群组
func (r *PlayerRecord) InGroup(group string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return indexOf(r.groups, group) >= 0
}

// Groups 返回群组列表副本
func (r *PlayerRecord) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.groups...)
}

func indexOf[T comparable](list []T, v T) int {
	for i := range list {
		if list[i] == v {
			return i
		}
	}
	return -1
}

func appendUnique[T comparable](list []T, v T) []T {
	if indexOf(list, v) >= 0 {
		return list
	}
	return append(list, v)
}

func removeValue[T comparable](list []T, v T) []T {
	i := indexOf(list, v)
	if i < 0 {
		return list
	}
	return append(list[:i], list[i+1:]...)
}
