package domain

import (
	"time"

	"github.com/google/uuid"
)

// MuteStatus 表示一名玩家的禁言状态。
//
// 只有两个状态：未禁言（零值）与禁言中。到期不依赖定时器，
// 只在加载（Normalize）和查询（Expired）时判断。
type MuteStatus struct {
	Active    bool
	ReleaseAt time.Time
	IssuedAt  time.Time
	Issuer    uuid.UUID // Console 表示控制台
}

// Mute 进入禁言状态，IssuedAt 取 now，覆盖之前的发起人与解除时间。
//
// 持久化精度为毫秒：releaseAt 向上取整，now 向下截断。
func (m *MuteStatus) Mute(issuer uuid.UUID, releaseAt, now time.Time) error {
	if !releaseAt.After(now) {
		return ErrInvalidMute
	}
	now = stamp(now)
	releaseAt = stampUp(releaseAt)

	m.Active = true
	m.ReleaseAt = releaseAt
	m.IssuedAt = now
	m.Issuer = issuer
	return nil
}

// Unmute 清空所有字段，回到未禁言状态。
func (m *MuteStatus) Unmute() {
	*m = MuteStatus{}
}

// Expired 判断解除时间是否已到（ReleaseAt <= now）
func (m MuteStatus) Expired(now time.Time) bool {
	return !m.ReleaseAt.After(now)
}

// Normalize 执行惰性过期：解除时间已到则无论 Active 如何都清空。
//
// 返回值:
//   - bool: 是否发生了清空
func (m *MuteStatus) Normalize(now time.Time) bool {
	if !m.Expired(now) {
		return false
	}
	cleared := *m != MuteStatus{}
	m.Unmute()
	return cleared
}

// IsMuted 查询时判断是否仍处于禁言中，不修改状态。
func (m MuteStatus) IsMuted(now time.Time) bool {
	return m.Active && !m.Expired(now)
}

// Remaining 返回剩余禁言时长，未禁言时为 0
func (m MuteStatus) Remaining(now time.Time) time.Duration {
	if !m.IsMuted(now) {
		return 0
	}
	return m.ReleaseAt.Sub(now)
}
