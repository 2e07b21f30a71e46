package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/SignalRoom/internal/models"
	"github.com/Gopher0727/SignalRoom/utils/snowflake"
)

// PostgresStore 基于 gorm 的存储后端
// 与 FileStore 实现同一契约，换掉文件快照而不改中继逻辑
type PostgresStore struct {
	db  *gorm.DB
	gen *snowflake.Generator
}

func NewPostgresStore(db *gorm.DB, gen *snowflake.Generator) *PostgresStore {
	return &PostgresStore{db: db, gen: gen}
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	id, err := s.gen.NextID()
	if err != nil {
		return nil, err
	}

	user := models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) UserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) UsernamesByID(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].Username
	}
	return names, nil
}

func (s *PostgresStore) CreateGroup(ctx context.Context, name string, creatorID int64) (*models.Group, error) {
	id, err := s.gen.NextID()
	if err != nil {
		return nil, err
	}

	group := models.Group{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
	}

	// 群组和创建者成员关系在一个事务里落库
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		member := models.GroupMember{
			GroupID:  group.ID,
			UserID:   creatorID,
			JoinedAt: time.Now(),
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}

	group.Members = []int64{creatorID}
	return &group, nil
}

func (s *PostgresStore) GroupByID(ctx context.Context, id int64) (*models.Group, error) {
	var group models.Group
	if err := s.db.WithContext(ctx).First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.fillMembers(ctx, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *PostgresStore) Groups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.WithContext(ctx).Order("created_at").Find(&groups).Error; err != nil {
		return nil, err
	}
	for i := range groups {
		if err := s.fillMembers(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (s *PostgresStore) GroupsByMember(ctx context.Context, userID int64) ([]models.Group, error) {
	var memberRows []models.GroupMember
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&memberRows).Error; err != nil {
		return nil, err
	}
	if len(memberRows) == 0 {
		return nil, nil
	}

	groupIDs := make([]int64, 0, len(memberRows))
	for _, m := range memberRows {
		groupIDs = append(groupIDs, m.GroupID)
	}

	var groups []models.Group
	if err := s.db.WithContext(ctx).Where("id IN ?", groupIDs).Order("created_at").Find(&groups).Error; err != nil {
		return nil, err
	}
	for i := range groups {
		if err := s.fillMembers(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, groupID, senderID int64, text string) (*models.Message, error) {
	id, err := s.gen.NextID()
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		ID:        id,
		GroupID:   groupID,
		SenderID:  senderID,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *PostgresStore) MessagesByGroup(ctx context.Context, groupID int64) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("timestamp, id").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *PostgresStore) fillMembers(ctx context.Context, group *models.Group) error {
	var memberRows []models.GroupMember
	if err := s.db.WithContext(ctx).Where("group_id = ?", group.ID).Find(&memberRows).Error; err != nil {
		return err
	}
	group.Members = make([]int64, 0, len(memberRows))
	for _, m := range memberRows {
		group.Members = append(group.Members, m.UserID)
	}
	return nil
}
