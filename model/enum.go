package model

// TokenType JWT token 類型
type TokenType string

const (
	TokenTypeUser TokenType = "user" // 用戶 token
)

// UserRole 用戶角色
type UserRole string

const (
	RoleAdmin  UserRole = "admin"  // 管理員
	RoleViewer UserRole = "viewer" // 唯讀
)
