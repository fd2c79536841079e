package codec

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfchat/backend/internal/domain"
)

var trickyTexts = []string{
	"",
	"plain reason",
	"spam§bot",
	"§§ leading and trailing §",
	"line one\nline two\r\n",
	"_CFUNIQUE_",
	"literal _CFUNIQUE_ and real §",
	"_CF_CF",
	"_CF",
	"x_C§F_",
	"__CFUNIQUE__",
	"unicode ✓ 禁言 §",
}

func TestEscapeRoundTrip(t *testing.T) {
	for _, s := range trickyTexts {
		enc := Escape(s)
		assert.NotContains(t, enc, Delimiter, "escaped %q", s)
		assert.Equal(t, s, Unescape(enc), "round trip %q", s)
	}
}

func TestUnescape_LegacyToken(t *testing.T) {
	assert.Equal(t, "spam§bot", Unescape("spam_CFUNIQUE_bot"))
}

func TestWarningRoundTrip(t *testing.T) {
	issuer := uuid.New()
	now := time.UnixMilli(1_700_000_000_123)
	names := func(id uuid.UUID) string { return "Notch" }

	for _, reason := range trickyTexts {
		for _, who := range []uuid.UUID{issuer, domain.Console} {
			w := domain.NewWarning(who, reason, now)
			line := EncodeWarning(w, names)

			got, err := DecodeWarning(line)
			require.NoError(t, err, line)
			assert.True(t, w.Equal(got), "reason %q: %#v != %#v", reason, w, got)
		}
	}
}

func TestEncodeWarning_Layout(t *testing.T) {
	issuer := uuid.MustParse("6f3a0c3e-8f0a-4b5e-9c1d-2e3f4a5b6c7d")
	w := domain.Warning{
		IssuedAt: time.UnixMilli(1000),
		Display:  "01 Jan 1970 00:00:01",
		Issuer:   issuer,
		Reason:   "spam§bot",
	}
	line := EncodeWarning(w, func(uuid.UUID) string { return "Steve" })
	assert.Equal(t, "1000§01 Jan 1970 00:00:01§6f3a0c3e-8f0a-4b5e-9c1d-2e3f4a5b6c7d§Steve§spam_CFUNIQUE_bot", line)

	console := EncodeWarning(domain.Warning{IssuedAt: time.UnixMilli(1000), Reason: "r"}, nil)
	assert.Equal(t, "1000§§Console§Console§r", console)
}

func TestLogEntryRoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_999)
	for _, payload := range trickyTexts {
		e := domain.LogEntry{LoggedAt: now, Display: domain.FormatDisplay(now), Payload: payload}
		got, err := DecodeLogEntry(EncodeLogEntry(e))
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestDecode_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"warning too few fields", func() error { _, err := DecodeWarning("1§2§Console"); return err }},
		{"warning bad timestamp", func() error { _, err := DecodeWarning("abc§d§Console§Console§r"); return err }},
		{"warning bad issuer", func() error { _, err := DecodeWarning("1§d§not-a-uuid§x§r"); return err }},
		{"log too few fields", func() error { _, err := DecodeLogEntry("1§only"); return err }},
		{"log bad timestamp", func() error { _, err := DecodeLogEntry("1.5§d§p"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn(), domain.ErrFormat)
		})
	}
}

func TestDecodeLogEntries_ReportsLine(t *testing.T) {
	_, err := DecodeLogEntries([]string{"1§d§ok", "broken"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFormat)
	assert.Contains(t, err.Error(), "line 1")
}

func TestParseIdentity(t *testing.T) {
	id := uuid.New()

	got, err := ParseIdentity(id.String() + ":Steve")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = ParseIdentity("console")
	require.NoError(t, err)
	assert.True(t, domain.IsConsole(got))

	assert.Equal(t, ConsoleName, FormatIdentity(domain.Console))
}

func TestParseMillis(t *testing.T) {
	for _, s := range []string{"", "0", "  "} {
		got, err := ParseMillis(s)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	}

	got, err := ParseMillis("1700000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), got.UnixMilli())

	assert.Equal(t, "", FormatMillis(time.Time{}))
	assert.Equal(t, []string{"", ""}, TimePair(time.Time{}))
}

func TestFormatName(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, ConsoleName, FormatName(domain.Console, nil))
	assert.Equal(t, id.String(), FormatName(id, nil))
	assert.Equal(t, id.String(), FormatName(id, func(uuid.UUID) string { return "" }))
	assert.Equal(t, "Alex", FormatName(id, func(uuid.UUID) string { return "Alex" }))
	assert.Equal(t, []string{id.String(), "Alex"}, IdentityPair(id, func(uuid.UUID) string { return "Alex" }))
}
