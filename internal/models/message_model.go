package models

// Message 消息模型
// 发送时创建，不可变，不会删除
type Message struct {
	ID       int64 `gorm:"primaryKey" json:"messageId"`
	GroupID  int64 `gorm:"not null;index" json:"groupId"`
	SenderID int64 `gorm:"not null;index" json:"senderId"`

	Text string `gorm:"not null" json:"text"`

	// 写入时的 Unix 毫秒时间戳，按插入顺序单调不减
	Timestamp int64 `gorm:"not null" json:"timestamp"`
}

func (Message) TableName() string {
	return "messages"
}
