package cache

import (
	"sync"
	"time"
)

// LocalCache 带 TTL 的本地内存缓存
//
// 特点：
// - 使用 sync.Map 实现无锁读取
// - 支持 TTL 过期，读取时惰性删除
// - 后台定期清理过期条目，Stop 后停止
type LocalCache[K comparable, V any] struct {
	data     sync.Map
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - ttl: 默认过期时间
//   - cleanupInterval: 后台清理间隔，<= 0 时不启动清理协程
func NewLocalCache[K comparable, V any](ttl, cleanupInterval time.Duration) *LocalCache[K, V] {
	c := &LocalCache[K, V]{
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}

	return c
}

// Get 获取缓存值
func (c *LocalCache[K, V]) Get(key K) (V, bool) {
	var zero V
	val, ok := c.data.Load(key)
	if !ok {
		return zero, false
	}

	entry := val.(*cacheEntry[V])
	if !c.now().Before(entry.expiresAt) {
		c.data.Delete(key)
		return zero, false
	}

	return entry.value, true
}

// Set 设置缓存值，ttl 为 0 时使用默认过期时间
func (c *LocalCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.data.Store(key, &cacheEntry[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	})
}

// Delete 删除缓存值
func (c *LocalCache[K, V]) Delete(key K) {
	c.data.Delete(key)
}

// Clear 清空所有缓存
func (c *LocalCache[K, V]) Clear() {
	c.data.Range(func(key, _ any) bool {
		c.data.Delete(key)
		return true
	})
}

// Stop 停止后台清理
func (c *LocalCache[K, V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache[K, V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := c.now()
			c.data.Range(func(key, value any) bool {
				if !now.Before(value.(*cacheEntry[V]).expiresAt) {
					c.data.Delete(key)
				}
				return true
			})
		}
	}
}
