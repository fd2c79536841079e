// Package auth 校验运维人员凭证，并为其签发运维令牌。
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cfchat/backend/internal/auth/jwt"
)

var (
	// ErrInvalidPassword 无效的密码
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOperator 运维人员配置格式错误
	ErrInvalidOperator = errors.New("invalid operator entry")
)

// Operators 运维人员名称到密码哈希的映射
type Operators struct {
	hashes map[string]string
}

// ParseOperators 解析 "名称:bcrypt哈希" 列表
func ParseOperators(entries []string) (*Operators, error) {
	ops := &Operators{hashes: make(map[string]string, len(entries))}
	for _, entry := range entries {
		name, hash, ok := strings.Cut(strings.TrimSpace(entry), ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, entry)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOperator, name, err)
		}
		ops.hashes[name] = hash
	}
	return ops, nil
}

// Len 运维人员数量
func (o *Operators) Len() int {
	return len(o.hashes)
}

// Authenticate 校验密码，名称不存在与密码错误返回同一个错误
func (o *Operators) Authenticate(name, password string) error {
	hash, ok := o.hashes[name]
	if !ok || !CheckPassword(password, hash) {
		return ErrInvalidCredentials
	}
	return nil
}

// Login 校验密码后签发令牌，scopes 为空时授予全部权限
func (o *Operators) Login(tokens *jwt.Manager, name, password string, scopes ...string) (*jwt.Token, error) {
	if err := o.Authenticate(name, password); err != nil {
		return nil, err
	}
	return tokens.Issue(name, scopes...)
}

// ValidatePassword 验证密码强度
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: must be at least 8 characters", ErrInvalidPassword)
	}
	if len(password) > 72 {
		return fmt.Errorf("%w: must be at most 72 characters", ErrInvalidPassword)
	}
	return nil
}

// HashPassword 哈希密码
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 检查密码是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
