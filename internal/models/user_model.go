package models

import (
	"time"
)

// User 用户模型
// 首次使用未知用户名登录时自动注册，之后不再修改或删除
type User struct {
	ID int64 `gorm:"primaryKey" json:"userId"`

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	// bcrypt 哈希，绝不存明文
	PasswordHash string `gorm:"not null" json:"passwordHash"`

	CreatedAt time.Time `json:"createdAt"`
}

func (User) TableName() string {
	return "users"
}
