package domain

import "errors"

var (
	// ErrFormat 存储字段无法解析为期望的类型（数字、时间戳、标识符）
	ErrFormat = errors.New("malformed stored field")
	// ErrMissingSection 加载时缺少必需的层级小节
	ErrMissingSection = errors.New("required section missing")
	// ErrDuplicateMailID 投递到已被占用的邮件编号
	ErrDuplicateMailID = errors.New("mail id already in use")
	// ErrNotFound 标识、记录或邮件编号不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidMute 禁言解除时间不晚于发起时间
	ErrInvalidMute = errors.New("mute release must be after issue time")
	// ErrUnknownChannel 未知的活动日志通道
	ErrUnknownChannel = errors.New("unknown log channel")
)
