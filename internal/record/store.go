// Package record 负责玩家记录在数据段中的布局，以及全部记录的缓存。
//
// Store 是记录的唯一所有者：ReloadAll/ReloadOne 从存储重建记录，
// SaveAll/SaveOne 是把内存中的修改写回存储的唯一途径，修改记录不会自动保存。
package record

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cfchat/backend/internal/directory"
	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/section"
	"cfchat/backend/internal/storage"
)

// 操作范围，用于指标与日志
const (
	ScopeAll = "all"
	ScopeOne = "one"
)

// Observer 接收批量操作的结果
type Observer interface {
	RecordsReloaded(scope string, loaded, created, failed int, took time.Duration)
	RecordsSaved(scope string, saved, failed int, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) RecordsReloaded(string, int, int, int, time.Duration) {}
func (nopObserver) RecordsSaved(string, int, int, time.Duration)         {}

// Failure 单个玩家的失败原因
type Failure struct {
	ID  uuid.UUID
	Err error
}

// Report 批量加载或保存的结果
type Report struct {
	Loaded   int
	Created  int
	Saved    int
	Failures []Failure
	Took     time.Duration
}

// Err 合并所有失败，没有失败时返回 nil
func (r *Report) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = fmt.Errorf("%s: %w", f.ID, f.Err)
	}
	return errors.Join(errs...)
}

// entry 缓存中的一条记录，base 是最近一次加载或保存的数据段
type entry struct {
	record *domain.PlayerRecord

	mu   sync.Mutex
	base *section.Section
}

// Store 玩家记录缓存
type Store struct {
	sections storage.SectionStore
	dir      directory.Directory
	log      *zap.Logger
	observer Observer
	now      func() time.Time
	parallel int

	mu      sync.RWMutex
	records map[uuid.UUID]*entry
	loaded  bool
}

// Option 配置 Store
type Option func(*Store)

// WithLogger 设置日志记录器
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithObserver 设置结果观察者（通常是指标）
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock 设置时钟，测试使用
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSaveConcurrency 设置 SaveAll 的并发写入数
func WithSaveConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.parallel = n
		}
	}
}

// NewStore 创建空缓存，需要调用 ReloadAll 才会加载数据
func NewStore(sections storage.SectionStore, dir directory.Directory, opts ...Option) *Store {
	s := &Store{
		sections: sections,
		dir:      dir,
		log:      zap.NewNop(),
		observer: nopObserver{},
		now:      time.Now,
		parallel: 1,
		records:  make(map[uuid.UUID]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sections 底层数据段存储
func (s *Store) Sections() storage.SectionStore {
	return s.sections
}

// Directory 玩家目录
func (s *Store) Directory() directory.Directory {
	return s.dir
}

// Now 当前时间（使用注入的时钟）
func (s *Store) Now() time.Time {
	return s.now()
}

// ReloadAll 按目录中的全部玩家重建缓存。
//
// 首次出现的玩家从默认模板创建并立即保存。单个玩家加载失败不影响其他玩家，
// 失败的玩家不进入新缓存（避免之后的保存覆盖损坏的数据），并记录在报告中。
// 只有目录本身不可用时返回错误，此时旧缓存保持不变。
func (s *Store) ReloadAll() (*Report, error) {
	start := time.Now()

	ids, err := s.dir.AllKnown()
	if err != nil {
		return nil, fmt.Errorf("list known players: %w", err)
	}

	report := &Report{}
	records := make(map[uuid.UUID]*entry, len(ids))
	for _, id := range ids {
		e, created, err := s.load(id)
		if created {
			report.Created++
		}
		if err != nil {
			report.Failures = append(report.Failures, Failure{ID: id, Err: err})
			s.log.Error("加载玩家记录失败", zap.String("identity", id.String()), zap.Error(err))
			continue
		}
		records[id] = e
		report.Loaded++
	}

	s.mu.Lock()
	s.records = records
	s.loaded = true
	s.mu.Unlock()

	report.Took = time.Since(start)
	s.observer.RecordsReloaded(ScopeAll, report.Loaded, report.Created, len(report.Failures), report.Took)
	s.log.Info("玩家记录已重新加载",
		zap.Int("loaded", report.Loaded),
		zap.Int("created", report.Created),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("took", report.Took),
	)
	return report, nil
}

// ReloadOne 重新加载单个玩家，其他玩家不受影响。
//
// 玩家必须在目录中存在，否则返回 domain.ErrNotFound。
// 加载失败时返回错误，缓存中已有的记录保持不变；之后的保存会用这份旧记录覆盖损坏的数据段。
func (s *Store) ReloadOne(id uuid.UUID) error {
	start := time.Now()

	if _, err := s.dir.Lookup(id.String()); err != nil {
		return fmt.Errorf("player %s: %w", id, err)
	}

	e, created, err := s.load(id)
	createdCount := 0
	if created {
		createdCount = 1
	}

	if err != nil {
		s.observer.RecordsReloaded(ScopeOne, 0, createdCount, 1, time.Since(start))
		s.log.Error("加载玩家记录失败，保留缓存中的旧记录", zap.String("identity", id.String()), zap.Error(err))
		return fmt.Errorf("load player %s: %w", id, err)
	}

	s.mu.Lock()
	s.records[id] = e
	s.mu.Unlock()

	s.observer.RecordsReloaded(ScopeOne, 1, createdCount, 0, time.Since(start))
	s.log.Debug("玩家记录已重新加载", zap.String("identity", id.String()), zap.Bool("created", created))
	return nil
}

// load 读取并解析一个玩家，不存在时从默认模板创建
//
// 返回值:
//   - *entry: 解析成功的记录
//   - bool: 是否新建了数据段
//   - error: 读取、创建或解析失败
func (s *Store) load(id uuid.UUID) (*entry, bool, error) {
	created := false
	sec, err := s.sections.LoadSection(id)
	if errors.Is(err, storage.ErrSectionNotFound) {
		sec, err = DefaultSection(s.dir.DisplayName(id))
		if err != nil {
			return nil, false, err
		}
		if err := s.sections.SaveSection(id, sec); err != nil {
			return nil, false, fmt.Errorf("create default section: %w", err)
		}
		created = true
	}
	if err != nil {
		return nil, created, err
	}

	state, err := Decode(id, sec, s.now())
	if err != nil {
		return nil, created, err
	}
	rec, err := domain.RestorePlayerRecord(state, s.now)
	if err != nil {
		return nil, created, err
	}
	return &entry{record: rec, base: sec}, created, nil
}

// Get 获取缓存中的记录，不存在时返回 domain.ErrNotFound，不会自动创建。
//
// 返回的记录在下一次 ReloadAll/ReloadOne 之后失效。
func (s *Store) Get(id uuid.UUID) (*domain.PlayerRecord, error) {
	s.mu.RLock()
	e, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("player %s: %w", id, domain.ErrNotFound)
	}
	return e.record, nil
}

// Lookup 通过展示名称或标识字符串获取记录
func (s *Store) Lookup(nameOrToken string) (*domain.PlayerRecord, error) {
	id, err := s.dir.Lookup(nameOrToken)
	if err != nil {
		return nil, fmt.Errorf("player %q: %w", nameOrToken, err)
	}
	return s.Get(id)
}

// IDs 缓存中全部玩家，按标识排序
func (s *Store) IDs() []uuid.UUID {
	s.mu.RLock()
	ids := make([]uuid.UUID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Len 缓存中的记录数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Loaded 是否至少完成过一次 ReloadAll
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// SaveOne 保存单个玩家
func (s *Store) SaveOne(id uuid.UUID) error {
	start := time.Now()

	s.mu.RLock()
	e, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("player %s: %w", id, domain.ErrNotFound)
	}

	sec, err := s.encode(e)
	if err == nil {
		err = s.write(id, e, sec)
	}
	if err != nil {
		s.observer.RecordsSaved(ScopeOne, 0, 1, time.Since(start))
		return fmt.Errorf("save player %s: %w", id, err)
	}
	s.observer.RecordsSaved(ScopeOne, 1, 0, time.Since(start))
	return nil
}

// SaveAll 保存缓存中的全部记录。
//
// 编码在调用方 goroutine 上依次完成，写入以有限并发进行；所有写入结束后才返回。
// 失败不会回滚内存中的记录，调用方可对失败的玩家重试 SaveOne。
func (s *Store) SaveAll() *Report {
	start := time.Now()

	s.mu.RLock()
	entries := make(map[uuid.UUID]*entry, len(s.records))
	for id, e := range s.records {
		entries[id] = e
	}
	s.mu.RUnlock()

	report := &Report{}
	var mu sync.Mutex
	fail := func(id uuid.UUID, err error) {
		mu.Lock()
		report.Failures = append(report.Failures, Failure{ID: id, Err: err})
		mu.Unlock()
		s.log.Error("保存玩家记录失败", zap.String("identity", id.String()), zap.Error(err))
	}

	type pending struct {
		id  uuid.UUID
		e   *entry
		sec *section.Section
	}
	batch := make([]pending, 0, len(entries))
	for id, e := range entries {
		sec, err := s.encode(e)
		if err != nil {
			fail(id, err)
			continue
		}
		batch = append(batch, pending{id: id, e: e, sec: sec})
	}

	var g errgroup.Group
	g.SetLimit(s.parallel)
	for _, p := range batch {
		p := p
		g.Go(func() error {
			if err := s.write(p.id, p.e, p.sec); err != nil {
				fail(p.id, err)
				return nil
			}
			mu.Lock()
			report.Saved++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].ID.String() < report.Failures[j].ID.String()
	})
	report.Took = time.Since(start)
	s.observer.RecordsSaved(ScopeAll, report.Saved, len(report.Failures), report.Took)
	s.log.Info("玩家记录已保存",
		zap.Int("saved", report.Saved),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("took", report.Took),
	)
	return report
}

func (s *Store) encode(e *entry) (*section.Section, error) {
	state := e.record.Snapshot()

	e.mu.Lock()
	base := e.base
	e.mu.Unlock()

	return Encode(state, base, s.dir.DisplayName)
}

// write 写入存储，成功后把新数据段作为下一次保存的基础
func (s *Store) write(id uuid.UUID, e *entry, sec *section.Section) error {
	if err := s.sections.SaveSection(id, sec); err != nil {
		return err
	}
	e.mu.Lock()
	e.base = sec
	e.mu.Unlock()
	return nil
}
