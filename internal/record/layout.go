package record

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cfchat/backend/internal/codec"
	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/section"
)

// 数据段中的路径
const (
	pathName     = "name"
	pathMuteOn   = "chat.mute.on"
	pathMuteTime = "chat.mute.time"
	pathMuteBy   = "chat.mute.by"
	pathMuteAt   = "chat.mute.at"
	pathIgnore   = "chat.ignore"
	pathLogger   = "chat.logger"
	pathGroups   = "groups"
	pathWarnings = "warnings"
	pathMail     = "mail"

	mailName    = "name"
	mailTime    = "time"
	mailUnread  = "unread"
	mailMessage = "message"
)

//go:embed default_player.yml
var defaultPlayer []byte

// DefaultSection 返回首次出现的玩家使用的模板，name 设为给定名称
func DefaultSection(name string) (*section.Section, error) {
	sec, err := section.Parse(defaultPlayer)
	if err != nil {
		return nil, fmt.Errorf("default template: %w", err)
	}
	if err := sec.Set(pathName, name); err != nil {
		return nil, fmt.Errorf("default template: %w", err)
	}
	return sec, nil
}

// Decode 从数据段解析出玩家状态。
//
// 数据段必须由 Encode 写出或来自默认模板：缺少的子段返回
// domain.ErrMissingSection，无法解析的字段返回 domain.ErrFormat。
func Decode(id uuid.UUID, sec *section.Section, now time.Time) (domain.PlayerState, error) {
	state := domain.PlayerState{ID: id}
	var err error

	if state.Mute, err = decodeMute(sec, now); err != nil {
		return state, err
	}
	if state.Warnings, err = decodeWarnings(sec); err != nil {
		return state, err
	}
	if state.Logs, err = decodeLogs(sec); err != nil {
		return state, err
	}
	if state.Mail, err = decodeMail(sec); err != nil {
		return state, err
	}

	ignore, err := stringList(sec, pathIgnore)
	if err != nil {
		return state, err
	}
	state.Ignore = make([]uuid.UUID, 0, len(ignore))
	for i, raw := range ignore {
		who, err := codec.ParseIdentity(raw)
		if err != nil {
			return state, fmt.Errorf("%s[%d]: %w", pathIgnore, i, err)
		}
		state.Ignore = append(state.Ignore, who)
	}

	groups, err := stringList(sec, pathGroups)
	if err != nil {
		return state, err
	}
	state.Groups = make([]string, 0, len(groups))
	for _, raw := range groups {
		if g := strings.TrimSpace(raw); g != "" {
			state.Groups = append(state.Groups, g)
		}
	}

	return state, nil
}

// Encode 把玩家状态写到 base 的副本上并返回。
//
// mail 与 warnings 整段重建；base 中未涉及的键（name、手工添加的注释等）保留。
// base 为 nil 时从空文档开始。
func Encode(state domain.PlayerState, base *section.Section, names codec.NameFunc) (*section.Section, error) {
	var sec *section.Section
	if base != nil {
		sec = base.Clone()
	} else {
		sec = section.New()
	}

	if err := sec.Set(pathMail, nil); err != nil {
		return nil, err
	}
	if err := sec.Set(pathWarnings, nil); err != nil {
		return nil, err
	}
	if err := sec.CreateSection(pathMail); err != nil {
		return nil, err
	}

	warnings := make([]string, len(state.Warnings))
	for i, w := range state.Warnings {
		warnings[i] = codec.EncodeWarning(w, names)
	}

	ignore := make([]string, len(state.Ignore))
	for i, who := range state.Ignore {
		ignore[i] = codec.FormatIdentity(who)
	}

	groups := state.Groups
	if groups == nil {
		groups = []string{}
	}

	type field struct {
		path  string
		value any
	}
	writes := []field{
		{pathWarnings, warnings},
		{pathGroups, groups},
		{pathIgnore, ignore},
		{pathMuteOn, state.Mute.Active},
		{pathMuteTime, codec.TimePair(state.Mute.ReleaseAt)},
		{pathMuteBy, codec.IdentityPair(state.Mute.Issuer, names)},
		{pathMuteAt, codec.TimePair(state.Mute.IssuedAt)},
	}
	for _, ch := range domain.LogChannels {
		writes = append(writes, field{pathLogger + "." + string(ch), codec.EncodeLogEntries(state.Logs[ch])})
	}
	for _, w := range writes {
		if err := sec.Set(w.path, w.value); err != nil {
			return nil, err
		}
	}

	ids := make([]int, 0, len(state.Mail))
	for id := range state.Mail {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if err := encodeMail(sec, state.Mail[id], names); err != nil {
			return nil, err
		}
	}

	return sec, nil
}

func encodeMail(sec *section.Section, item domain.MailItem, names codec.NameFunc) error {
	prefix := pathMail + "." + strconv.Itoa(item.ID) + "."
	display := item.Display
	if display == "" && !item.SentAt.IsZero() {
		display = domain.FormatDisplay(item.SentAt)
	}
	if err := sec.Set(prefix+mailName, codec.IdentityPair(item.Sender, names)); err != nil {
		return err
	}
	if err := sec.Set(prefix+mailTime, []string{codec.FormatMillis(item.SentAt), display}); err != nil {
		return err
	}
	if err := sec.Set(prefix+mailUnread, item.Unread); err != nil {
		return err
	}
	return sec.Set(prefix+mailMessage, item.Body)
}

// decodeMute 只有解除时间必需；解除时间已到时其余字段不再读取，直接视为未禁言
func decodeMute(sec *section.Section, now time.Time) (domain.MuteStatus, error) {
	release, err := pairHead(sec, pathMuteTime)
	if err != nil {
		return domain.MuteStatus{}, err
	}
	releaseAt, err := codec.ParseMillis(release)
	if err != nil {
		return domain.MuteStatus{}, fmt.Errorf("%s: %w", pathMuteTime, err)
	}
	if releaseAt.IsZero() || !releaseAt.After(now) {
		return domain.MuteStatus{}, nil
	}

	on, err := sec.GetBool(pathMuteOn)
	if err != nil {
		return domain.MuteStatus{}, fieldErr(err)
	}
	issued, err := pairHead(sec, pathMuteAt)
	if err != nil {
		return domain.MuteStatus{}, err
	}
	issuedAt, err := codec.ParseMillis(issued)
	if err != nil {
		return domain.MuteStatus{}, fmt.Errorf("%s: %w", pathMuteAt, err)
	}
	by, err := pairHead(sec, pathMuteBy)
	if err != nil {
		return domain.MuteStatus{}, err
	}
	issuer, err := codec.ParseIdentity(by)
	if err != nil {
		return domain.MuteStatus{}, fmt.Errorf("%s: %w", pathMuteBy, err)
	}

	return domain.MuteStatus{
		Active:    on,
		ReleaseAt: releaseAt,
		IssuedAt:  issuedAt,
		Issuer:    issuer,
	}, nil
}

func decodeWarnings(sec *section.Section) ([]domain.Warning, error) {
	lines, err := stringList(sec, pathWarnings)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Warning, 0, len(lines))
	for i, line := range lines {
		w, err := codec.DecodeWarning(line)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", pathWarnings, i, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// decodeLogs 遍历 chat.logger 下已有的通道，缺少的通道视为空
func decodeLogs(sec *section.Section) (map[domain.LogChannel][]domain.LogEntry, error) {
	keys, err := sec.Keys(pathLogger)
	if err != nil {
		return nil, fieldErr(err)
	}
	logs := make(map[domain.LogChannel][]domain.LogEntry, len(domain.LogChannels))
	for _, key := range keys {
		ch, err := domain.ParseLogChannel(key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", pathLogger, domain.ErrFormat, err)
		}
		path := pathLogger + "." + key
		lines, err := stringList(sec, path)
		if err != nil {
			return nil, err
		}
		entries, err := codec.DecodeLogEntries(lines)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		logs[ch] = append(logs[ch], entries...)
	}
	return logs, nil
}

func decodeMail(sec *section.Section) (map[int]domain.MailItem, error) {
	keys, err := sec.Keys(pathMail)
	if err != nil {
		return nil, fieldErr(err)
	}
	mail := make(map[int]domain.MailItem, len(keys))
	for _, key := range keys {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w: mail id", pathMail, key, domain.ErrFormat)
		}
		prefix := pathMail + "." + key + "."

		sender, err := pairHead(sec, prefix+mailName)
		if err != nil {
			return nil, err
		}
		from, err := codec.ParseIdentity(sender)
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", prefix, mailName, err)
		}
		sent, err := stringList(sec, prefix+mailTime)
		if err != nil {
			return nil, err
		}
		if len(sent) < 2 {
			return nil, fmt.Errorf("%s%s: %w: expected 2 fields, got %d", prefix, mailTime, domain.ErrFormat, len(sent))
		}
		sentAt, err := codec.ParseMillis(sent[0])
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", prefix, mailTime, err)
		}
		unread, err := sec.GetBool(prefix + mailUnread)
		if err != nil {
			return nil, fieldErr(err)
		}
		body, err := sec.GetString(prefix + mailMessage)
		if err != nil {
			return nil, fieldErr(err)
		}

		mail[id] = domain.MailItem{
			ID:      id,
			Sender:  from,
			SentAt:  sentAt,
			Display: sent[1],
			Unread:  unread,
			Body:    body,
		}
	}
	return mail, nil
}

func stringList(sec *section.Section, path string) ([]string, error) {
	list, err := sec.GetStringList(path)
	if err != nil {
		return nil, fieldErr(err)
	}
	return list, nil
}

// pairHead 读取 [值, 展示] 对的第一项
func pairHead(sec *section.Section, path string) (string, error) {
	pair, err := stringList(sec, path)
	if err != nil {
		return "", err
	}
	if len(pair) == 0 {
		return "", fmt.Errorf("%s: %w: empty pair", path, domain.ErrFormat)
	}
	return pair[0], nil
}

// fieldErr 把数据段错误映射为领域错误，原错误仍可用 errors.Is 匹配
func fieldErr(err error) error {
	switch {
	case errors.Is(err, section.ErrPathNotFound):
		return fmt.Errorf("%w: %w", domain.ErrMissingSection, err)
	case errors.Is(err, section.ErrTypeMismatch):
		return fmt.Errorf("%w: %w", domain.ErrFormat, err)
	}
	return err
}

