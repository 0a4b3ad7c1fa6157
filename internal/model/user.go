// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Role はユーザーのアクセス階層を表す。
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
)

// ParseRole は大文字小文字を区別せずにRoleへ変換する。
// 未知の値の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleManager:
		return RoleManager, true
	case RoleMember:
		return RoleMember, true
	default:
		return "", false
	}
}

// User はバックエンドが返すログインユーザーのプロフィール。
type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin はユーザーが管理者ロールかどうかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session はログインセッションを表す。
// TokenとUserは常に同時に存在し、片方だけが保存されることはない。
type Session struct {
	ID        string
	Token     string
	User      User
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsAuthenticated はトークンを保持しているかどうかを返す。
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Token != ""
}
