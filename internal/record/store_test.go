package record

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cfchat/backend/internal/directory"
	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/section"
	"cfchat/backend/internal/storage"
	"cfchat/backend/internal/storage/memory"
)

// MockSectionStore 模拟数据段存储
type MockSectionStore struct {
	mock.Mock
}

func (m *MockSectionStore) LoadSection(id uuid.UUID) (*section.Section, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*section.Section), args.Error(1)
}

func (m *MockSectionStore) SaveSection(id uuid.UUID, sec *section.Section) error {
	args := m.Called(id, sec)
	return args.Error(0)
}

func (m *MockSectionStore) ListSections() ([]uuid.UUID, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockSectionStore) Health() error {
	return m.Called().Error(0)
}

func (m *MockSectionStore) Close() error {
	return m.Called().Error(0)
}

// recordingObserver 记录收到的结果
type recordingObserver struct {
	reloads []string
	saves   []string
	failed  int
}

func (o *recordingObserver) RecordsReloaded(scope string, _, _, failed int, _ time.Duration) {
	o.reloads = append(o.reloads, scope)
	o.failed += failed
}

func (o *recordingObserver) RecordsSaved(scope string, _, failed int, _ time.Duration) {
	o.saves = append(o.saves, scope)
	o.failed += failed
}

type fixture struct {
	sections *memory.Store
	dir      *directory.Static
	clock    *fakeClock
	store    *Store
	steve    uuid.UUID
	alex     uuid.UUID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		sections: memory.NewStore(),
		clock:    newClock(),
		steve:    uuid.New(),
		alex:     uuid.New(),
	}
	f.dir = directory.NewStatic(
		directory.Entry{ID: f.steve, Name: "Steve"},
		directory.Entry{ID: f.alex, Name: "Alex"},
	)
	opts = append([]Option{WithClock(f.clock.Now), WithSaveConcurrency(2)}, opts...)
	f.store = NewStore(f.sections, f.dir, opts...)
	return f
}

func (f *fixture) reload(t *testing.T) *Report {
	t.Helper()
	report, err := f.store.ReloadAll()
	require.NoError(t, err)
	return report
}

func (f *fixture) save(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.SaveAll().Err())
}

func (f *fixture) get(t *testing.T, id uuid.UUID) *domain.PlayerRecord {
	t.Helper()
	rec, err := f.store.Get(id)
	require.NoError(t, err)
	return rec
}

func TestStore_ReloadAllCreatesDefaults(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.store.Loaded())

	report := f.reload(t)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 2, report.Created)
	assert.Empty(t, report.Failures)
	assert.True(t, f.store.Loaded())
	assert.Equal(t, 2, f.store.Len())

	sec, err := f.sections.LoadSection(f.steve)
	require.NoError(t, err, "首次出现时立即保存模板")
	name, err := sec.GetString("name")
	require.NoError(t, err)
	assert.Equal(t, "Steve", name)

	report = f.reload(t)
	assert.Equal(t, 0, report.Created, "第二次加载不再创建")
}

func TestStore_GetNeverCreates(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	stranger := uuid.New()
	_, err := f.store.Get(stranger)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.sections.LoadSection(stranger)
	assert.ErrorIs(t, err, storage.ErrSectionNotFound)
}

func TestStore_Lookup(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	rec, err := f.store.Lookup("steve")
	require.NoError(t, err)
	assert.Equal(t, f.steve, rec.ID())

	rec, err = f.store.Lookup(f.alex.String())
	require.NoError(t, err)
	assert.Equal(t, f.alex, rec.ID())

	_, err = f.store.Lookup("Herobrine")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_WarningLifecycle(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	f.get(t, f.steve).AddWarning(f.alex, "spam§bot")
	f.save(t)
	f.reload(t)

	warnings := f.get(t, f.steve).Warnings(0, 0)
	require.Len(t, warnings, 1)
	assert.Equal(t, "spam§bot", warnings[0].Reason)
	assert.Equal(t, f.alex, warnings[0].Issuer)
}

func TestStore_MailDeliveryAndReadState(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	rec := f.get(t, f.steve)
	_, err := rec.DeliverMail(1, f.alex, "hi")
	require.NoError(t, err)
	assert.Contains(t, rec.UnreadMail(), 1)

	require.NoError(t, rec.MarkMailRead(1))
	assert.Empty(t, rec.UnreadMail())

	f.save(t)
	f.reload(t)

	item, err := f.get(t, f.steve).Mail(1)
	require.NoError(t, err)
	assert.False(t, item.Unread)
	assert.Equal(t, "hi", item.Body)
	assert.Equal(t, f.alex, item.Sender)
}

func TestStore_MuteThenLazyClear(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	rec := f.get(t, f.steve)
	require.NoError(t, rec.MuteFor(f.alex, time.Second))
	assert.True(t, rec.IsMuted())

	f.clock.Advance(2 * time.Second)
	f.save(t)
	f.reload(t)

	rec = f.get(t, f.steve)
	assert.False(t, rec.IsMuted())
	assert.Equal(t, domain.MuteStatus{}, rec.MuteStatus())
}

func TestStore_MuteSurvivesReload(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	require.NoError(t, f.get(t, f.steve).MuteFor(domain.Console, time.Hour))
	require.NoError(t, f.store.SaveOne(f.steve))
	f.reload(t)

	status := f.get(t, f.steve).MuteStatus()
	assert.True(t, status.Active)
	assert.Equal(t, domain.Console, status.Issuer)
	assert.True(t, f.clock.Now().Add(time.Hour).Equal(status.ReleaseAt))
}

func TestStore_ReloadDiscardsUnsavedChanges(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	old := f.get(t, f.steve)
	old.AddWarning(domain.Console, "never saved")
	require.NoError(t, old.AddGroup("staff"))

	f.reload(t)

	rec := f.get(t, f.steve)
	assert.NotSame(t, old, rec, "重新加载替换记录")
	assert.Equal(t, 0, rec.WarningCount())
	assert.False(t, rec.InGroup("staff"))
}

func TestStore_ReloadOne(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	alex := f.get(t, f.alex)
	alex.AddWarning(domain.Console, "kept in memory")
	f.get(t, f.steve).AddWarning(domain.Console, "discarded")

	require.NoError(t, f.store.ReloadOne(f.steve))
	assert.Equal(t, 0, f.get(t, f.steve).WarningCount())
	assert.Same(t, alex, f.get(t, f.alex), "其他玩家不受影响")
	assert.Equal(t, 1, alex.WarningCount())

	t.Run("目录中不存在的玩家", func(t *testing.T) {
		err := f.store.ReloadOne(uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("新加入目录的玩家", func(t *testing.T) {
		newcomer := uuid.New()
		f.dir.Add(newcomer, "Newcomer")

		require.NoError(t, f.store.ReloadOne(newcomer))
		_, err := f.store.Get(newcomer)
		assert.NoError(t, err)
		assert.Equal(t, 3, f.store.Len())
	})
}

func TestStore_ReloadOneKeepsRecordOnLoadFailure(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	old := f.get(t, f.alex)
	old.AddWarning(domain.Console, "still here")
	require.NoError(t, f.sections.Put(f.alex, []byte("chat: [this is not a mapping\n")))

	require.Error(t, f.store.ReloadOne(f.alex))

	rec, err := f.store.Get(f.alex)
	require.NoError(t, err, "手工改坏的文件不会让在线玩家消失")
	assert.Same(t, old, rec)
	assert.Equal(t, 1, rec.WarningCount())

	t.Run("修好后重新加载生效", func(t *testing.T) {
		fixed, err := DefaultSection("Alex")
		require.NoError(t, err)
		require.NoError(t, f.sections.SaveSection(f.alex, fixed))
		require.NoError(t, f.store.ReloadOne(f.alex))
		rec := f.get(t, f.alex)
		assert.NotSame(t, old, rec)
		assert.Zero(t, rec.WarningCount())
	})
}

func TestStore_CorruptRecordIsolated(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	require.NoError(t, f.sections.Put(f.alex, []byte("chat: [this is not a mapping\n")))

	report := f.reload(t)
	assert.Equal(t, 1, report.Loaded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, f.alex, report.Failures[0].ID)
	assert.Error(t, report.Err())

	_, err := f.store.Get(f.steve)
	assert.NoError(t, err)
	_, err = f.store.Get(f.alex)
	assert.ErrorIs(t, err, domain.ErrNotFound, "损坏的记录不进入缓存")

	f.save(t)
	raw, ok := f.sections.Raw(f.alex)
	require.True(t, ok)
	assert.Equal(t, "chat: [this is not a mapping\n", string(raw), "保存不会覆盖损坏的数据")
}

func TestStore_MissingSectionIsolated(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	require.NoError(t, f.sections.Put(f.alex, []byte("name: Alex\n")))

	report := f.reload(t)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrMissingSection)
	assert.Equal(t, 1, f.store.Len())
}

func TestStore_SaveKeepsName(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	f.get(t, f.steve).AddIgnore(f.alex)
	f.save(t)

	sec, err := f.sections.LoadSection(f.steve)
	require.NoError(t, err)
	name, err := sec.GetString("name")
	require.NoError(t, err)
	assert.Equal(t, "Steve", name)

	ignore, err := sec.GetStringList("chat.ignore")
	require.NoError(t, err)
	assert.Equal(t, []string{f.alex.String()}, ignore)
}

func TestStore_SaveFailure(t *testing.T) {
	clock := newClock()
	steve, alex := uuid.New(), uuid.New()
	dir := directory.NewStatic(
		directory.Entry{ID: steve, Name: "Steve"},
		directory.Entry{ID: alex, Name: "Alex"},
	)
	defaults, err := DefaultSection("")
	require.NoError(t, err)

	sections := new(MockSectionStore)
	sections.On("LoadSection", steve).Return(defaults.Clone(), nil)
	sections.On("LoadSection", alex).Return(defaults.Clone(), nil)
	sections.On("SaveSection", steve, mock.Anything).Return(nil)
	sections.On("SaveSection", alex, mock.Anything).Return(errors.New("disk full"))

	observer := &recordingObserver{}
	store := NewStore(sections, dir, WithClock(clock.Now), WithObserver(observer))
	_, err = store.ReloadAll()
	require.NoError(t, err)

	rec, err := store.Get(alex)
	require.NoError(t, err)
	rec.AddWarning(domain.Console, "still here")

	report := store.SaveAll()
	assert.Equal(t, 1, report.Saved)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, alex, report.Failures[0].ID)
	assert.ErrorContains(t, report.Err(), "disk full")
	assert.Equal(t, 1, rec.WarningCount(), "失败不回滚内存中的记录")

	err = store.SaveOne(alex)
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, store.SaveOne(steve))

	assert.Equal(t, []string{ScopeAll}, observer.reloads)
	assert.Equal(t, []string{ScopeAll, ScopeOne, ScopeOne}, observer.saves)
	assert.Equal(t, 2, observer.failed)
	sections.AssertExpectations(t)
}

func TestStore_ReloadAllDirectoryFailure(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	broken := NewStore(f.sections, failingDirectory{}, WithClock(f.clock.Now))
	_, err := broken.ReloadAll()
	assert.Error(t, err)
	assert.False(t, broken.Loaded())
}

func TestStore_IDsSorted(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	ids := f.store.IDs()
	require.Len(t, ids, 2)
	assert.True(t, ids[0].String() < ids[1].String())
}

type failingDirectory struct{}

func (failingDirectory) AllKnown() ([]uuid.UUID, error) { return nil, errors.New("directory offline") }
func (failingDirectory) DisplayName(uuid.UUID) string   { return "" }
func (failingDirectory) Lookup(string) (uuid.UUID, error) {
	return uuid.Nil, domain.ErrNotFound
}
