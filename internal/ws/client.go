package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/SignalRoom/middleware/log"

	"github.com/Gopher0727/SignalRoom/internal/presence"
	"github.com/Gopher0727/SignalRoom/internal/services"
	"github.com/Gopher0727/SignalRoom/pkg/utils"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	// SDP offer 会到几 KB，留足余量
	maxMessageSize = 16384
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway 长连接入口，持有中继需要的全部依赖
type Gateway struct {
	hub      *Hub
	auth     *services.AuthService
	groups   *services.GroupService
	messages *services.MessageService
	presence presence.Tracker
	log      *logger.Logger
}

func NewGateway(
	hub *Hub,
	auth *services.AuthService,
	groups *services.GroupService,
	messages *services.MessageService,
	tracker presence.Tracker,
	log *logger.Logger,
) *Gateway {
	return &Gateway{
		hub:      hub,
		auth:     auth,
		groups:   groups,
		messages: messages,
		presence: tracker,
		log:      log,
	}
}

// ServeWs 处理 WebSocket 升级请求
// 连接建立后处于匿名态，身份通过后续的 login 事件确立
func (g *Gateway) ServeWs(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		gw:     g,
		hub:    g.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		joined: make(map[int64]struct{}),
		log:    g.log.WithTraceID(uuid.NewString()),
	}

	client.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// Client 代表一个 WebSocket 连接
// 每连接状态机：Anonymous -> Identified（login 事件）-> {Idle, InRoom}* -> Closed
type Client struct {
	id   string
	gw   *Gateway
	hub  *Hub
	conn *websocket.Conn

	// 缓冲通道，Hub 广播写入，writePump 消费
	send     chan []byte
	sendOnce sync.Once

	// 已订阅的房间集合，由 hub.mu 保护
	joined map[int64]struct{}

	// 绑定身份后填充（权威数据在 SessionRegistry）
	mu       sync.RWMutex
	userID   int64
	username string

	log *logger.Logger
}

// closeSend 关闭发送通道，幂等
func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.send)
	})
}

func (c *Client) identity() (int64, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.username
}

func (c *Client) setIdentity(userID int64, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.username = username
}

// readPump 读取客户端上行事件并分发
func (c *Client) readPump() {
	defer func() {
		c.teardown(context.Background())
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// 收到 Pong 说明客户端还活着，异步刷新在线状态
		if userID, ok := c.hub.sessions.Lookup(c.id); ok {
			go func() {
				if err := c.gw.presence.Refresh(context.Background(), userID); err != nil {
					c.log.Warn("refresh presence failed", zap.Int64("user_id", userID), zap.Error(err))
				}
			}()
		}
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Warn("malformed event dropped", zap.Error(err))
			continue
		}

		c.dispatch(context.Background(), &ev)
	}
}

// writePump 把 Hub 广播的事件写出到连接，并周期性发送 Ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, ev *Event) {
	switch ev.Type {
	case EventLogin:
		c.handleLogin(ctx, ev)
	case EventJoinGroup:
		c.handleJoin(ctx, ev)
	case EventLeaveGroup:
		c.hub.Unsubscribe(c, ev.GroupID)
	case EventChatMessage:
		c.handleChat(ctx, ev)
	case EventOffer, EventAnswer, EventICECandidate:
		c.handleSignal(ev)
	default:
		c.log.Debug("unknown event type dropped", zap.String("event", ev.Type))
	}
}

// handleLogin 确立连接身份并批量加入用户已属群组的房间
func (c *Client) handleLogin(ctx context.Context, ev *Event) {
	userID := ev.UserID
	if ev.Token != "" {
		claims, err := utils.ParseToken(ev.Token)
		if err != nil {
			c.log.Warn("login with invalid token", zap.Error(err))
			c.sendEvent(&Event{Type: EventError, Error: "invalid token"})
			return
		}
		userID = claims.UserID
	}
	if userID == 0 {
		c.sendEvent(&Event{Type: EventError, Error: "missing userId"})
		return
	}

	user, err := c.gw.auth.UserByID(ctx, userID)
	if err != nil {
		c.log.Warn("login for unknown user dropped", zap.Int64("user_id", userID), zap.Error(err))
		c.sendEvent(&Event{Type: EventError, Error: "unknown user"})
		return
	}

	c.hub.sessions.Bind(c.id, user.ID)
	c.setIdentity(user.ID, user.Username)

	if err := c.gw.presence.Online(ctx, user.ID); err != nil {
		c.log.Warn("mark user online failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	// 自动订阅用户已经是成员的所有群组房间
	groups, err := c.gw.groups.GroupsByMember(ctx, user.ID)
	if err != nil {
		c.log.Error("load user groups failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	groupIDs := make([]int64, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}
	c.hub.SubscribeMany(c, groupIDs)

	c.log.Info("connection identified",
		zap.String("conn_id", c.id),
		zap.Int64("user_id", user.ID),
		zap.Int("auto_joined", len(groupIDs)))
}

func (c *Client) handleJoin(ctx context.Context, ev *Event) {
	if err := c.hub.Subscribe(ctx, c, ev.GroupID); err != nil {
		// 未授权的加入不再静默吞掉，显式告知发起方；房间状态不变
		c.log.Warn("join group denied",
			zap.String("conn_id", c.id),
			zap.Int64("group_id", ev.GroupID),
			zap.Error(err))
		c.sendEvent(&Event{Type: EventError, GroupID: ev.GroupID, Error: err.Error()})
		return
	}

	userID, username := c.identity()
	c.hub.Broadcast(ev.GroupID, &Event{
		Type:     EventUserJoinedGroup,
		GroupID:  ev.GroupID,
		UserID:   userID,
		Username: username,
	})
}

// handleChat 聊天消息：落库后向房间内所有连接（含发送者自己）广播
func (c *Client) handleChat(ctx context.Context, ev *Event) {
	userID, ok := c.hub.sessions.Lookup(c.id)
	if !ok {
		// 匿名连接的消息直接丢弃，没有应答通道
		c.log.Debug("chat from anonymous connection dropped")
		return
	}

	member, err := c.gw.groups.IsMember(ctx, ev.GroupID, userID)
	if err != nil || !member {
		c.log.Warn("chat to group without membership dropped",
			zap.Int64("user_id", userID),
			zap.Int64("group_id", ev.GroupID),
			zap.Error(err))
		c.sendEvent(&Event{Type: EventError, GroupID: ev.GroupID, Error: ErrPermissionDenied.Error()})
		return
	}

	dto, err := c.gw.messages.Send(ctx, ev.GroupID, userID, ev.MessageText)
	if err != nil {
		c.log.Warn("persist chat message failed",
			zap.Int64("user_id", userID),
			zap.Int64("group_id", ev.GroupID),
			zap.Error(err))
		c.sendEvent(&Event{Type: EventError, GroupID: ev.GroupID, Error: err.Error()})
		return
	}

	c.hub.Broadcast(ev.GroupID, &Event{Type: EventMessage, Message: dto})
}

// handleSignal 信令转发：盖上发送者 ID，广播给房间里除自己外的所有连接
// payload 不做任何语义校验，to 字段原样透传，接收端按 senderId 自行过滤
func (c *Client) handleSignal(ev *Event) {
	userID, ok := c.hub.sessions.Lookup(c.id)
	if !ok {
		c.log.Debug("signal from anonymous connection dropped", zap.String("event", ev.Type))
		return
	}

	c.hub.BroadcastExcept(ev.GroupID, c, &Event{
		Type:     ev.Type,
		GroupID:  ev.GroupID,
		SenderID: userID,
		To:       ev.To,
		Payload:  ev.Payload,
	})
}

// teardown 连接关闭时的清理
// 已识别身份的连接，向用户所属的每个群组广播离开通知——
// 按持久化成员关系计算，而不是断开瞬间实际占用的房间
func (c *Client) teardown(ctx context.Context) {
	if userID, ok := c.hub.sessions.Lookup(c.id); ok {
		groups, err := c.gw.groups.GroupsByMember(ctx, userID)
		if err != nil {
			c.log.Error("load groups for disconnect notify failed",
				zap.Int64("user_id", userID), zap.Error(err))
		} else {
			for _, g := range groups {
				c.hub.Broadcast(g.ID, &Event{
					Type:    EventUserLeftGroup,
					GroupID: g.ID,
					UserID:  userID,
				})
			}
		}

		if err := c.gw.presence.Offline(ctx, userID); err != nil {
			c.log.Warn("mark user offline failed", zap.Int64("user_id", userID), zap.Error(err))
		}

		c.hub.sessions.Unbind(c.id)
	}

	c.hub.Unregister(c)
}

// sendEvent 只发给当前连接
func (c *Client) sendEvent(ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.log.Error("encode event failed", zap.String("event", ev.Type), zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("send buffer full, dropping event", zap.String("event", ev.Type))
	}
}
