package services

import (
	"context"

	"github.com/Gopher0727/SignalRoom/internal/store"
)

// unknownUser 发送者已无法解析时的占位用户名
const unknownUser = "Unknown User"

// MessageService 消息服务
type MessageService struct {
	store store.Store
}

// NewMessageService 创建消息服务实例
func NewMessageService(st store.Store) *MessageService {
	return &MessageService{store: st}
}

// MessageDTO 补全了发送者用户名的消息
type MessageDTO struct {
	MessageID      int64  `json:"messageId"`
	GroupID        int64  `json:"groupId"`
	SenderID       int64  `json:"senderId"`
	SenderUsername string `json:"senderUsername"`
	MessageText    string `json:"messageText"`
	Timestamp      int64  `json:"timestamp"`
}

// Send 落库并返回补全后的消息
// messageId 和时间戳由存储层分配
func (s *MessageService) Send(ctx context.Context, groupID, senderID int64, text string) (*MessageDTO, error) {
	if text == "" {
		return nil, &ValidationError{Field: "messageText"}
	}

	msg, err := s.store.AppendMessage(ctx, groupID, senderID, text)
	if err != nil {
		return nil, err
	}

	username := unknownUser
	if sender, err := s.store.UserByID(ctx, senderID); err == nil {
		username = sender.Username
	}

	return &MessageDTO{
		MessageID:      msg.ID,
		GroupID:        msg.GroupID,
		SenderID:       msg.SenderID,
		SenderUsername: username,
		MessageText:    msg.Text,
		Timestamp:      msg.Timestamp,
	}, nil
}

// History 按时间戳升序返回群组消息
// 发送者已不存在时用占位用户名，读取端优雅降级
func (s *MessageService) History(ctx context.Context, groupID int64) ([]MessageDTO, error) {
	if _, err := s.store.GroupByID(ctx, groupID); err != nil {
		return nil, err
	}

	messages, err := s.store.MessagesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]int64, 0, len(messages))
	for _, m := range messages {
		senderIDs = append(senderIDs, m.SenderID)
	}
	names, err := s.store.UsernamesByID(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	dtos := make([]MessageDTO, 0, len(messages))
	for _, m := range messages {
		username, ok := names[m.SenderID]
		if !ok {
			username = unknownUser
		}
		dtos = append(dtos, MessageDTO{
			MessageID:      m.ID,
			GroupID:        m.GroupID,
			SenderID:       m.SenderID,
			SenderUsername: username,
			MessageText:    m.Text,
			Timestamp:      m.Timestamp,
		})
	}
	return dtos, nil
}
