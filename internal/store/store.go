package store

import (
	"context"
	"errors"

	"github.com/Gopher0727/SignalRoom/internal/models"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrConflict 唯一约束冲突（如用户名已存在）
	ErrConflict = errors.New("record already exists")
)

// Store 持久化抽象
// 中继逻辑只依赖这个接口，后端可以在 JSON 快照文件和
// postgres 之间切换而不触碰上层代码
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// UsernamesByID 批量解析用户名，用于展示层补全
	UsernamesByID(ctx context.Context, ids []int64) (map[int64]string, error)

	CreateGroup(ctx context.Context, name string, creatorID int64) (*models.Group, error)
	GroupByID(ctx context.Context, id int64) (*models.Group, error)
	Groups(ctx context.Context) ([]models.Group, error)
	GroupsByMember(ctx context.Context, userID int64) ([]models.Group, error)

	AppendMessage(ctx context.Context, groupID, senderID int64, text string) (*models.Message, error)
	MessagesByGroup(ctx context.Context, groupID int64) ([]models.Message, error)
}
