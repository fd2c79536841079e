package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MailItem 表示玩家邮箱内的一封邮件。
type MailItem struct {
	ID      int
	Sender  uuid.UUID // Console 表示控制台
	SentAt  time.Time
	Display string // SentAt 的展示字符串
	Unread  bool
	Body    string
}

// Mailbox 以整数编号为键的邮件存储。
//
// 投递不要求收件人在线，邮件只是静态数据。
type Mailbox struct {
	items map[int]*MailItem
}

// NewMailbox 创建空邮箱
func NewMailbox() *Mailbox {
	return &Mailbox{items: make(map[int]*MailItem)}
}

// Deliver 投递一封新邮件，编号已存在时返回 ErrDuplicateMailID。
func (b *Mailbox) Deliver(id int, sender uuid.UUID, body string, now time.Time) (MailItem, error) {
	if _, exists := b.items[id]; exists {
		return MailItem{}, fmt.Errorf("mail %d: %w", id, ErrDuplicateMailID)
	}
	now = stamp(now)
	item := &MailItem{
		ID:      id,
		Sender:  sender,
		SentAt:  now,
		Display: FormatDisplay(now),
		Unread:  true,
		Body:    cleanText(body),
	}
	b.items[id] = item
	return *item, nil
}

// Put 按编号写入邮件（加载时使用），已存在则覆盖
func (b *Mailbox) Put(item MailItem) {
	cp := item
	b.items[item.ID] = &cp
}

// Get 根据编号获取邮件副本
func (b *Mailbox) Get(id int) (MailItem, error) {
	item, ok := b.items[id]
	if !ok {
		return MailItem{}, fmt.Errorf("mail %d: %w", id, ErrNotFound)
	}
	return *item, nil
}

// Unread 返回所有未读邮件
func (b *Mailbox) Unread() map[int]MailItem {
	out := make(map[int]MailItem)
	for id, item := range b.items {
		if item.Unread {
			out[id] = *item
		}
	}
	return out
}

// All 返回全部邮件
func (b *Mailbox) All() map[int]MailItem {
	out := make(map[int]MailItem, len(b.items))
	for id, item := range b.items {
		out[id] = *item
	}
	return out
}

// MarkRead 将邮件标记为已读
func (b *Mailbox) MarkRead(id int) error {
	item, ok := b.items[id]
	if !ok {
		return fmt.Errorf("mail %d: %w", id, ErrNotFound)
	}
	item.Unread = false
	return nil
}

// Delete 删除一封邮件
func (b *Mailbox) Delete(id int) error {
	if _, ok := b.items[id]; !ok {
		return fmt.Errorf("mail %d: %w", id, ErrNotFound)
	}
	delete(b.items, id)
	return nil
}

// IDs 返回升序排列的邮件编号
func (b *Mailbox) IDs() []int {
	ids := make([]int, 0, len(b.items))
	for id := range b.items {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// NextID 返回当前最大编号加一，空邮箱返回 1
func (b *Mailbox) NextID() int {
	next := 1
	for id := range b.items {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// Len 邮件数量
func (b *Mailbox) Len() int {
	return len(b.items)
}
