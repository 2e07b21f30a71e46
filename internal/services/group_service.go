package services

import (
	"context"
	"errors"
	"slices"

	"github.com/Gopher0727/SignalRoom/internal/models"
	"github.com/Gopher0727/SignalRoom/internal/store"
)

// GroupService 群组服务
type GroupService struct {
	store store.Store
}

// NewGroupService 创建群组服务实例
func NewGroupService(st store.Store) *GroupService {
	return &GroupService{store: st}
}

// GroupDTO 群组数据传输对象
type GroupDTO struct {
	GroupID         int64    `json:"groupId"`
	GroupName       string   `json:"groupName"`
	Members         []int64  `json:"members"`
	MemberUsernames []string `json:"memberUsernames"`
	CreatedAt       string   `json:"createdAt"`
}

// Create 创建群组，创建者是唯一的初始成员
func (s *GroupService) Create(ctx context.Context, name string, creatorID int64) (*GroupDTO, error) {
	if name == "" {
		return nil, &ValidationError{Field: "groupName"}
	}
	if creatorID == 0 {
		return nil, &ValidationError{Field: "userId"}
	}

	// 创建者必须存在（未知引用 -> store.ErrNotFound）
	if _, err := s.store.UserByID(ctx, creatorID); err != nil {
		return nil, err
	}

	group, err := s.store.CreateGroup(ctx, name, creatorID)
	if err != nil {
		return nil, err
	}

	return s.toDTO(ctx, group)
}

// List 列出所有群组，成员用户名解析后一并返回
func (s *GroupService) List(ctx context.Context) ([]GroupDTO, error) {
	groups, err := s.store.Groups(ctx)
	if err != nil {
		return nil, err
	}

	dtos := make([]GroupDTO, 0, len(groups))
	for i := range groups {
		dto, err := s.toDTO(ctx, &groups[i])
		if err != nil {
			return nil, err
		}
		dtos = append(dtos, *dto)
	}
	return dtos, nil
}

// IsMember 判断用户是否是群组成员
// 未知群组视为非成员
func (s *GroupService) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return slices.Contains(group.Members, userID), nil
}

// GroupsByMember 用户已加入的全部群组（登录时批量订阅、断开时离组通知用）
func (s *GroupService) GroupsByMember(ctx context.Context, userID int64) ([]models.Group, error) {
	return s.store.GroupsByMember(ctx, userID)
}

func (s *GroupService) toDTO(ctx context.Context, group *models.Group) (*GroupDTO, error) {
	names, err := s.store.UsernamesByID(ctx, group.Members)
	if err != nil {
		return nil, err
	}

	usernames := make([]string, 0, len(group.Members))
	for _, id := range group.Members {
		if name, ok := names[id]; ok {
			usernames = append(usernames, name)
		} else {
			usernames = append(usernames, unknownUser)
		}
	}

	return &GroupDTO{
		GroupID:         group.ID,
		GroupName:       group.Name,
		Members:         group.Members,
		MemberUsernames: usernames,
		CreatedAt:       group.CreatedAt.Format("2006-01-02 15:04:05"),
	}, nil
}
