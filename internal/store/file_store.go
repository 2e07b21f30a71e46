package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	logger "github.com/Gopher0727/SignalRoom/middleware/log"

	"github.com/Gopher0727/SignalRoom/internal/models"
	"github.com/Gopher0727/SignalRoom/utils/snowflake"
)

// document 落盘的单文档布局：三个顶层集合，每次变更整体重写
type document struct {
	Users    []models.User    `json:"users"`
	Groups   []models.Group   `json:"groups"`
	Messages []models.Message `json:"messages"`
}

// FileStore JSON 快照存储
// 启动时整体读入内存，每次变更整体重写文件（写临时文件再 rename）
// 写盘失败只记日志并继续以内存态运行，不向调用方冒错
// 注意：多进程共享同一文件会互相覆盖，单进程使用
type FileStore struct {
	mu   sync.RWMutex
	path string
	gen  *snowflake.Generator
	log  *logger.Logger

	doc document

	// 保证消息时间戳按插入顺序单调不减
	lastTimestamp int64
}

func NewFileStore(path string, gen *snowflake.Generator, log *logger.Logger) (*FileStore, error) {
	s := &FileStore{
		path: path,
		gen:  gen,
		log:  log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read store file: %w", err)
		}
		// 文件不存在，从空状态启动
		return s, nil
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}

	for _, m := range s.doc.Messages {
		if m.Timestamp > s.lastTimestamp {
			s.lastTimestamp = m.Timestamp
		}
	}

	return s, nil
}

func (s *FileStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Users {
		if s.doc.Users[i].Username == username {
			return nil, ErrConflict
		}
	}

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
	s.doc.Users = append(s.doc.Users, user)
	s.flush()

	return &user, nil
}

func (s *FileStore) UserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.doc.Users {
		if s.doc.Users[i].ID == id {
			u := s.doc.Users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.doc.Users {
		if s.doc.Users[i].Username == username {
			u := s.doc.Users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) UsernamesByID(ctx context.Context, ids []int64) (map[int64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[int64]string, len(ids))
	for _, id := range ids {
		for i := range s.doc.Users {
			if s.doc.Users[i].ID == id {
				names[id] = s.doc.Users[i].Username
				break
			}
		}
	}
	return names, nil
}

func (s *FileStore) CreateGroup(ctx context.Context, name string, creatorID int64) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.gen.NextID()
	if err != nil {
		return nil, err
	}

	group := models.Group{
		ID:        id,
		Name:      name,
		Members:   []int64{creatorID},
		CreatedAt: time.Now(),
	}
	s.doc.Groups = append(s.doc.Groups, group)
	s.flush()

	g := group
	g.Members = slices.Clone(group.Members)
	return &g, nil
}

func (s *FileStore) GroupByID(ctx context.Context, id int64) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.doc.Groups {
		if s.doc.Groups[i].ID == id {
			g := s.doc.Groups[i]
			g.Members = slices.Clone(s.doc.Groups[i].Members)
			return &g, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) Groups(ctx context.Context) ([]models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]models.Group, 0, len(s.doc.Groups))
	for i := range s.doc.Groups {
		g := s.doc.Groups[i]
		g.Members = slices.Clone(s.doc.Groups[i].Members)
		groups = append(groups, g)
	}
	return groups, nil
}

func (s *FileStore) GroupsByMember(ctx context.Context, userID int64) ([]models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var groups []models.Group
	for i := range s.doc.Groups {
		if slices.Contains(s.doc.Groups[i].Members, userID) {
			g := s.doc.Groups[i]
			g.Members = slices.Clone(s.doc.Groups[i].Members)
			groups = append(groups, g)
		}
	}
	return groups, nil
}

func (s *FileStore) AppendMessage(ctx context.Context, groupID, senderID int64, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.gen.NextID()
	if err != nil {
		return nil, err
	}

	ts := time.Now().UnixMilli()
	if ts < s.lastTimestamp {
		ts = s.lastTimestamp
	}
	s.lastTimestamp = ts

	msg := models.Message{
		ID:        id,
		GroupID:   groupID,
		SenderID:  senderID,
		Text:      text,
		Timestamp: ts,
	}
	s.doc.Messages = append(s.doc.Messages, msg)
	s.flush()

	return &msg, nil
}

func (s *FileStore) MessagesByGroup(ctx context.Context, groupID int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []models.Message
	for i := range s.doc.Messages {
		if s.doc.Messages[i].GroupID == groupID {
			messages = append(messages, s.doc.Messages[i])
		}
	}

	slices.SortStableFunc(messages, func(a, b models.Message) int {
		if a.Timestamp != b.Timestamp {
			if a.Timestamp < b.Timestamp {
				return -1
			}
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	return messages, nil
}

// flush 整体重写快照文件，调用方必须持有写锁
// 失败只记日志，内存态仍然是权威数据（进程崩溃会丢这部分写入）
func (s *FileStore) flush() {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		s.log.Error("encode store snapshot failed", zap.Error(err))
		return
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.log.Error("create store directory failed", zap.String("dir", dir), zap.Error(err))
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		s.log.Error("write store snapshot failed", zap.String("path", tmp), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Error("replace store snapshot failed", zap.String("path", s.path), zap.Error(err))
	}
}
