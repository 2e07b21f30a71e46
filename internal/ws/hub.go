package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	logger "github.com/Gopher0727/SignalRoom/middleware/log"
)

var (
	// ErrNotIdentified 连接还没有通过 login 事件绑定用户
	ErrNotIdentified = errors.New("connection has no bound user")
	// ErrPermissionDenied 用户不是目标群组成员
	// 旧实现会静默吞掉未授权的订阅，这里显式拒绝
	ErrPermissionDenied = errors.New("not a member of this group")
)

// Membership 订阅房间前的成员资格校验
type Membership interface {
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
}

// Hub 维护活跃连接和群组广播房间
// 房间成员关系是连接级的瞬时状态，与持久化的 Group.members 不同
type Hub struct {
	mu sync.RWMutex

	// 所有注册的连接
	clients map[*Client]struct{}

	// GroupID -> 订阅该房间的连接集合
	rooms map[int64]map[*Client]struct{}

	sessions   *SessionRegistry
	membership Membership
	log        *logger.Logger
}

func NewHub(sessions *SessionRegistry, membership Membership, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[int64]map[*Client]struct{}),
		sessions:   sessions,
		membership: membership,
		log:        log,
	}
}

// Register 注册新连接
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister 注销连接，从所有房间移除并关闭发送通道
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	for groupID := range c.joined {
		h.removeFromRoom(c, groupID)
	}

	c.closeSend()
}

// Subscribe 将连接加入群组房间，前提是绑定用户确实是群组成员
// 否则返回 ErrNotIdentified / ErrPermissionDenied，房间状态不变
func (h *Hub) Subscribe(ctx context.Context, c *Client, groupID int64) error {
	userID, ok := h.sessions.Lookup(c.id)
	if !ok {
		return ErrNotIdentified
	}

	member, err := h.membership.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrPermissionDenied
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.addToRoom(c, groupID)
	return nil
}

// SubscribeMany 登录时批量订阅，群组列表来自持久化成员关系，不再重查
func (h *Hub) SubscribeMany(c *Client, groupIDs []int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, groupID := range groupIDs {
		h.addToRoom(c, groupID)
	}
}

// Unsubscribe 将连接移出房间，无论是否成员都成功
func (h *Hub) Unsubscribe(c *Client, groupID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, groupID)
}

// Broadcast 向房间内所有连接（包括发送者自己的连接）广播事件
func (h *Hub) Broadcast(groupID int64, ev *Event) {
	h.broadcast(groupID, nil, ev)
}

// BroadcastExcept 向房间内除 except 外的所有连接广播事件（信令转发用）
func (h *Hub) BroadcastExcept(groupID int64, except *Client, ev *Event) {
	h.broadcast(groupID, except, ev)
}

// RoomSize 房间内的连接数
func (h *Hub) RoomSize(groupID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupID])
}

// InRoom 连接是否占用着房间
func (h *Hub) InRoom(c *Client, groupID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[groupID][c]
	return ok
}

func (h *Hub) broadcast(groupID int64, except *Client, ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode broadcast event failed",
			zap.String("event", ev.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[groupID] {
		if c == except {
			continue
		}
		select {
		case c.send <- data:
		default:
			// 订阅方消费不动就丢弃这条，不做流控
			h.log.Warn("send buffer full, dropping event",
				zap.String("conn_id", c.id),
				zap.String("event", ev.Type),
				zap.Int64("group_id", groupID))
		}
	}
}

// addToRoom 调用方必须持有写锁
func (h *Hub) addToRoom(c *Client, groupID int64) {
	room, ok := h.rooms[groupID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[groupID] = room
	}
	room[c] = struct{}{}
	c.joined[groupID] = struct{}{}
}

// removeFromRoom 调用方必须持有写锁
func (h *Hub) removeFromRoom(c *Client, groupID int64) {
	if room, ok := h.rooms[groupID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, groupID)
		}
	}
	delete(c.joined, groupID)
}
