package record

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfchat/backend/internal/codec"
	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/section"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func names(id uuid.UUID) string { return "player-" + id.String()[:4] }

func TestDefaultSection(t *testing.T) {
	sec, err := DefaultSection("Steve")
	require.NoError(t, err)

	name, err := sec.GetString(pathName)
	require.NoError(t, err)
	assert.Equal(t, "Steve", name)

	state, err := Decode(uuid.New(), sec, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.MuteStatus{}, state.Mute)
	assert.Empty(t, state.Warnings)
	assert.Empty(t, state.Mail)
	assert.Empty(t, state.Ignore)
	assert.Empty(t, state.Groups)
	for _, ch := range domain.LogChannels {
		assert.Empty(t, state.Logs[ch])
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	clock := newClock()
	id := uuid.New()
	issuer := uuid.New()
	friend := uuid.New()

	rec := domain.NewPlayerRecord(id, clock.Now)
	rec.AddWarning(issuer, "spam§bot")
	rec.AddWarning(domain.Console, "line1\nline2 _CFUNIQUE_ literal")
	_, err := rec.Log(domain.ChannelMessages, "hello§world")
	require.NoError(t, err)
	_, err = rec.Log(domain.ChannelCommands, "/msg _CF_CF")
	require.NoError(t, err)
	_, err = rec.DeliverMail(7, friend, "body with § and\nnewline")
	require.NoError(t, err)
	_, err = rec.DeliverMail(2, domain.Console, "from console")
	require.NoError(t, err)
	require.NoError(t, rec.MarkMailRead(2))
	rec.AddIgnore(friend)
	require.NoError(t, rec.AddGroup("staff"))
	require.NoError(t, rec.MuteFor(issuer, time.Hour))

	base, err := DefaultSection("Steve")
	require.NoError(t, err)
	sec, err := Encode(rec.Snapshot(), base, names)
	require.NoError(t, err)

	// 经过文本往返，确认写出的 YAML 可以被重新解析
	data, err := sec.Marshal()
	require.NoError(t, err)
	parsed, err := section.Parse(data)
	require.NoError(t, err)

	state, err := Decode(id, parsed, clock.Now())
	require.NoError(t, err)
	restored, err := domain.RestorePlayerRecord(state, clock.Now)
	require.NoError(t, err)

	assert.Equal(t, rec.Snapshot(), restored.Snapshot())

	name, err := parsed.GetString(pathName)
	require.NoError(t, err)
	assert.Equal(t, "Steve", name, "未涉及的键保留")

	by, err := parsed.GetStringList(pathMuteBy)
	require.NoError(t, err)
	assert.Equal(t, []string{issuer.String(), names(issuer)}, by)

	sender, err := parsed.GetStringList("mail.2.name")
	require.NoError(t, err)
	assert.Equal(t, []string{"Console", "Console"}, sender)
}

// roundTrip 编码、序列化、重新解析并恢复记录
func roundTrip(t *testing.T, rec *domain.PlayerRecord, clock *fakeClock) *domain.PlayerRecord {
	t.Helper()
	base, err := DefaultSection("Steve")
	require.NoError(t, err)
	sec, err := Encode(rec.Snapshot(), base, names)
	require.NoError(t, err)
	data, err := sec.Marshal()
	require.NoError(t, err)
	parsed, err := section.Parse(data)
	require.NoError(t, err)
	state, err := Decode(rec.ID(), parsed, clock.Now())
	require.NoError(t, err)
	restored, err := domain.RestorePlayerRecord(state, clock.Now)
	require.NoError(t, err)
	return restored
}

func TestEncode_GroupsRoundTrip(t *testing.T) {
	clock := newClock()
	rec := domain.NewPlayerRecord(uuid.New(), clock.Now)
	require.NoError(t, rec.AddGroup("clan-red"))
	require.NoError(t, rec.AddGroup("clan-blue"))
	assert.ErrorIs(t, rec.AddGroup("clan:red"), domain.ErrFormat)

	restored := roundTrip(t, rec, clock)
	assert.Equal(t, []string{"clan-red", "clan-blue"}, restored.Groups(), "不同群组不会合并")
}

func TestEncode_InvalidUTF8Saves(t *testing.T) {
	clock := newClock()
	rec := domain.NewPlayerRecord(uuid.New(), clock.Now)
	rec.AddWarning(domain.Console, "bad \xff utf8")
	_, err := rec.Log(domain.ChannelMessages, "chat \xc3\x28")
	require.NoError(t, err)
	_, err = rec.DeliverMail(1, domain.Console, "mail \xfe")
	require.NoError(t, err)

	restored := roundTrip(t, rec, clock)

	warnings := restored.Warnings(0, -1)
	require.Len(t, warnings, 1)
	assert.Equal(t, "bad \uFFFD utf8", warnings[0].Reason)

	item, err := restored.Mail(1)
	require.NoError(t, err)
	assert.Equal(t, "mail \uFFFD", item.Body)

	entries, err := restored.LogList(domain.ChannelMessages)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0], "chat \uFFFD("))
}

func TestEncode_ReplacesMailAndWarnings(t *testing.T) {
	clock := newClock()
	id := uuid.New()
	rec := domain.NewPlayerRecord(id, clock.Now)
	_, err := rec.DeliverMail(1, domain.Console, "old")
	require.NoError(t, err)
	rec.AddWarning(domain.Console, "old warning")

	base, err := DefaultSection("Alex")
	require.NoError(t, err)
	first, err := Encode(rec.Snapshot(), base, nil)
	require.NoError(t, err)

	require.NoError(t, rec.DeleteMail(1))
	require.NoError(t, rec.RemoveWarning(0))
	second, err := Encode(rec.Snapshot(), first, nil)
	require.NoError(t, err)

	keys, err := second.Keys(pathMail)
	require.NoError(t, err)
	assert.Empty(t, keys, "删除的邮件不会残留")

	warnings, err := second.GetStringList(pathWarnings)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.True(t, first.Contains("mail.1"), "base 本身不被修改")
}

func TestDecode_ExpiredMuteIsCleared(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	doc := `
chat:
  mute:
    on: true
    time: ["1699999999000", "14 Nov 2023 22:13:19"]
    by: [not-a-uuid, "?"]
    at: [garbage, ""]
  ignore: []
  logger: {}
groups: []
warnings: []
mail: {}
`
	sec, err := section.Parse([]byte(doc))
	require.NoError(t, err)

	state, err := Decode(uuid.New(), sec, now)
	require.NoError(t, err)
	assert.Equal(t, domain.MuteStatus{}, state.Mute, "解除时间已过，其余字段不再读取")
}

func TestDecode_ActiveMute(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	issuer := uuid.New()
	doc := `
chat:
  mute:
    on: true
    time: ["1700000060000", ""]
    by: ["` + issuer.String() + `", Steve]
    at: ["1700000000000", ""]
  ignore: ["` + issuer.String() + `:Steve"]
  logger: {}
groups: ["staff:annotation"]
warnings: []
mail: {}
`
	sec, err := section.Parse([]byte(doc))
	require.NoError(t, err)

	state, err := Decode(uuid.New(), sec, now)
	require.NoError(t, err)
	assert.True(t, state.Mute.Active)
	assert.Equal(t, issuer, state.Mute.Issuer)
	assert.Equal(t, time.UnixMilli(1_700_000_060_000), state.Mute.ReleaseAt)
	assert.Equal(t, []uuid.UUID{issuer}, state.Ignore, "注释部分被忽略")
	assert.Equal(t, []string{"staff:annotation"}, state.Groups, "群组标识原样保留")

	sec, err = Encode(state, sec, nil)
	require.NoError(t, err)
	ignore, err := sec.GetStringList(pathIgnore)
	require.NoError(t, err)
	assert.Equal(t, []string{issuer.String()}, ignore, "写回时只保留标识")
}

func TestDecode_Errors(t *testing.T) {
	valid, err := DefaultSection("x")
	require.NoError(t, err)

	testCases := []struct {
		name   string
		mutate func(t *testing.T, sec *section.Section)
		want   error
	}{
		{
			name:   "缺少警告段",
			mutate: func(t *testing.T, sec *section.Section) { require.NoError(t, sec.Set(pathWarnings, nil)) },
			want:   domain.ErrMissingSection,
		},
		{
			name:   "缺少禁言时间",
			mutate: func(t *testing.T, sec *section.Section) { require.NoError(t, sec.Set(pathMuteTime, nil)) },
			want:   domain.ErrMissingSection,
		},
		{
			name:   "缺少日志段",
			mutate: func(t *testing.T, sec *section.Section) { require.NoError(t, sec.Set(pathLogger, nil)) },
			want:   domain.ErrMissingSection,
		},
		{
			name: "禁言时间不是数字",
			mutate: func(t *testing.T, sec *section.Section) {
				require.NoError(t, sec.Set(pathMuteTime, []string{"tomorrow", ""}))
			},
			want: domain.ErrFormat,
		},
		{
			name: "警告字段数错误",
			mutate: func(t *testing.T, sec *section.Section) {
				require.NoError(t, sec.Set(pathWarnings, []string{"1000§only§three"}))
			},
			want: domain.ErrFormat,
		},
		{
			name: "未知日志通道",
			mutate: func(t *testing.T, sec *section.Section) {
				require.NoError(t, sec.Set(pathLogger+".whispers", []string{}))
			},
			want: domain.ErrFormat,
		},
		{
			name: "邮件编号不是整数",
			mutate: func(t *testing.T, sec *section.Section) {
				require.NoError(t, sec.Set("mail.first.unread", true))
			},
			want: domain.ErrFormat,
		},
		{
			name: "邮件缺少正文",
			mutate: func(t *testing.T, sec *section.Section) {
				require.NoError(t, sec.Set("mail.1.name", codec.IdentityPair(domain.Console, nil)))
				require.NoError(t, sec.Set("mail.1.time", []string{"1000", ""}))
				require.NoError(t, sec.Set("mail.1.unread", true))
			},
			want: domain.ErrMissingSection,
		},
		{
			name: "屏蔽列表不是列表",
			mutate: func(t *testing.T, sec *section.Section) {
				require.NoError(t, sec.Set(pathIgnore, "everyone"))
			},
			want: domain.ErrFormat,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sec := valid.Clone()
			tc.mutate(t, sec)

			_, err := Decode(uuid.New(), sec, time.Now())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEncode_KeepsComments(t *testing.T) {
	base, err := section.Parse([]byte("name: Steve\nchat:\n  # 手工备注\n  nick: Stevie\nextra: kept\n"))
	require.NoError(t, err)

	rec := domain.NewPlayerRecord(uuid.New(), nil)
	sec, err := Encode(rec.Snapshot(), base, nil)
	require.NoError(t, err)

	data, err := sec.Marshal()
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "# 手工备注"))
	assert.True(t, strings.Contains(text, "extra: kept"))
	assert.True(t, sec.Contains("chat.nick"))
	assert.True(t, sec.Contains(pathMuteOn))
}
