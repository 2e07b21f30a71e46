package models

import (
	"time"
)

// Group 群组模型
// 创建者是唯一的初始成员；成员集合只通过成员变更修改
type Group struct {
	ID int64 `gorm:"primaryKey" json:"groupId"`

	Name string `gorm:"not null" json:"groupName"`

	// 成员 userId 集合。文件后端直接内联存储；
	// postgres 后端由 group_members 关联表填充
	Members []int64 `gorm:"-" json:"members"`

	CreatedAt time.Time `json:"createdAt"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupMember 群组成员关联（仅 postgres 后端使用）
type GroupMember struct {
	GroupID  int64     `gorm:"primaryKey" json:"groupId"`
	UserID   int64     `gorm:"primaryKey" json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
