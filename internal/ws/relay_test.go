package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logger "github.com/Gopher0727/SignalRoom/middleware/log"

	"github.com/Gopher0727/SignalRoom/internal/presence"
	"github.com/Gopher0727/SignalRoom/internal/services"
	"github.com/Gopher0727/SignalRoom/internal/store"
	"github.com/Gopher0727/SignalRoom/pkg/utils"
	"github.com/Gopher0727/SignalRoom/utils/snowflake"
)

// relayEnv 起一个只挂 /ws 路由的测试服务器，存储用临时文件
type relayEnv struct {
	srv      *httptest.Server
	auth     *services.AuthService
	groups   *services.GroupService
	messages *services.MessageService
}

func newRelayEnv(t *testing.T) *relayEnv {
	t.Helper()

	utils.SetJWTSecret("relay-test-secret")
	utils.SetJWTTTL(time.Hour)

	log, err := logger.NewDevelopmentLogger()
	require.NoError(t, err)

	gen, err := snowflake.NewGenerator(1)
	require.NoError(t, err)

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "store.json"), gen, log)
	require.NoError(t, err)

	auth := services.NewAuthService(st)
	groups := services.NewGroupService(st)
	messages := services.NewMessageService(st)

	sessions := NewSessionRegistry()
	hub := NewHub(sessions, groups, log)
	gateway := NewGateway(hub, auth, groups, messages, presence.NoopTracker{}, log)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", gateway.ServeWs)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &relayEnv{srv: srv, auth: auth, groups: groups, messages: messages}
}

func (e *relayEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, ev *Event) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ev))
}

func readEvent(t *testing.T, conn *websocket.Conn) *Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return &ev
}

// readUntilMessage 丢弃其它事件，直到读到指定文本的聊天消息
// 两条连接的登录各自异步完成，用标记消息做同步点
func readUntilMessage(t *testing.T, conn *websocket.Conn, text string) *Event {
	t.Helper()
	for i := 0; i < 16; i++ {
		ev := readEvent(t, conn)
		if ev.Type == EventMessage && ev.Message != nil && ev.Message.MessageText == text {
			return ev
		}
	}
	t.Fatalf("marker message %q never arrived", text)
	return nil
}

// expectSilence 断言连接在窗口期内收不到任何事件
// 读超时后连接不再可读，只能作为某条连接的最后一步
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no event, got %s", data)
	}
}

// 聊天只到达群组成员：非成员既进不了房间也收不到消息
func TestRelay_ChatReachesOnlyMembers(t *testing.T) {
	env := newRelayEnv(t)
	ctx := context.Background()

	alice, err := env.auth.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	bob, err := env.auth.Login(ctx, "bob", "pw-bob")
	require.NoError(t, err)

	group, err := env.groups.Create(ctx, "Team", alice.UserID)
	require.NoError(t, err)

	connA := env.dial(t)
	connB := env.dial(t)
	sendEvent(t, connA, &Event{Type: EventLogin, UserID: alice.UserID})
	sendEvent(t, connB, &Event{Type: EventLogin, UserID: bob.UserID})

	// bob 不是成员，加入被显式拒绝
	sendEvent(t, connB, &Event{Type: EventJoinGroup, GroupID: group.GroupID})
	denied := readEvent(t, connB)
	assert.Equal(t, EventError, denied.Type)
	assert.Equal(t, group.GroupID, denied.GroupID)
	assert.Equal(t, ErrPermissionDenied.Error(), denied.Error)

	// alice 发消息，自己的连接也收到一份
	sendEvent(t, connA, &Event{Type: EventChatMessage, GroupID: group.GroupID, MessageText: "hi"})
	ev := readEvent(t, connA)
	require.Equal(t, EventMessage, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "hi", ev.Message.MessageText)
	assert.Equal(t, "alice", ev.Message.SenderUsername)
	assert.Equal(t, alice.UserID, ev.Message.SenderID)

	// 消息已落库
	history, err := env.messages.History(ctx, group.GroupID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].MessageText)

	// bob 全程收不到任何东西
	expectSilence(t, connB)
}

// 用 HTTP 登录签发的 token 确立连接身份
func TestRelay_LoginWithToken(t *testing.T) {
	env := newRelayEnv(t)
	ctx := context.Background()

	alice, err := env.auth.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	group, err := env.groups.Create(ctx, "Team", alice.UserID)
	require.NoError(t, err)

	conn := env.dial(t)
	sendEvent(t, conn, &Event{Type: EventLogin, Token: alice.Token})

	// 身份来自 token：作为成员加入成功，并收到自己的入组通知
	sendEvent(t, conn, &Event{Type: EventJoinGroup, GroupID: group.GroupID})
	ev := readEvent(t, conn)
	assert.Equal(t, EventUserJoinedGroup, ev.Type)
	assert.Equal(t, alice.UserID, ev.UserID)
	assert.Equal(t, "alice", ev.Username)
}

func TestRelay_LoginWithBadToken(t *testing.T) {
	env := newRelayEnv(t)

	conn := env.dial(t)
	sendEvent(t, conn, &Event{Type: EventLogin, Token: "not-a-jwt"})

	ev := readEvent(t, conn)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "invalid token", ev.Error)
}

// 信令按发送者之外广播，payload 原样透传
// 同一用户开两条连接模拟两台设备
func TestRelay_SignalingExcludesSender(t *testing.T) {
	env := newRelayEnv(t)
	ctx := context.Background()

	carol, err := env.auth.Login(ctx, "carol", "pw-carol")
	require.NoError(t, err)
	group, err := env.groups.Create(ctx, "Mesh", carol.UserID)
	require.NoError(t, err)

	conn1 := env.dial(t)
	conn2 := env.dial(t)
	sendEvent(t, conn1, &Event{Type: EventLogin, UserID: carol.UserID})
	sendEvent(t, conn2, &Event{Type: EventLogin, UserID: carol.UserID})

	// 两条连接登录后都被自动订阅；逐条用标记消息确认就绪，
	// 读到标记后两边的接收队列都为空
	sendEvent(t, conn1, &Event{Type: EventChatMessage, GroupID: group.GroupID, MessageText: "sync-1"})
	readUntilMessage(t, conn1, "sync-1")
	sendEvent(t, conn2, &Event{Type: EventChatMessage, GroupID: group.GroupID, MessageText: "sync-2"})
	readUntilMessage(t, conn2, "sync-2")
	readUntilMessage(t, conn1, "sync-2")

	offerSDP := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 0 0 IN IP4 127.0.0.1"}`)
	sendEvent(t, conn1, &Event{Type: EventOffer, GroupID: group.GroupID, Payload: offerSDP})

	ev := readEvent(t, conn2)
	assert.Equal(t, EventOffer, ev.Type)
	assert.Equal(t, carol.UserID, ev.SenderID)
	assert.JSONEq(t, string(offerSDP), string(ev.Payload))

	// 回应方向：conn1 收到的第一个事件必须是 answer，
	// 自己发出的 offer 没有被回环
	answerSDP := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	sendEvent(t, conn2, &Event{Type: EventAnswer, GroupID: group.GroupID, To: carol.UserID, Payload: answerSDP})

	ev = readEvent(t, conn1)
	assert.Equal(t, EventAnswer, ev.Type)
	assert.Equal(t, carol.UserID, ev.SenderID)
	assert.Equal(t, carol.UserID, ev.To)
	assert.JSONEq(t, string(answerSDP), string(ev.Payload))
}

// 断开连接时向用户所属的每个群组各广播一次离开通知
func TestRelay_DisconnectNotifiesEachGroupOnce(t *testing.T) {
	env := newRelayEnv(t)
	ctx := context.Background()

	dave, err := env.auth.Login(ctx, "dave", "pw-dave")
	require.NoError(t, err)
	ops, err := env.groups.Create(ctx, "Ops", dave.UserID)
	require.NoError(t, err)
	dev, err := env.groups.Create(ctx, "Dev", dave.UserID)
	require.NoError(t, err)

	conn1 := env.dial(t)
	conn2 := env.dial(t)
	sendEvent(t, conn1, &Event{Type: EventLogin, UserID: dave.UserID})
	sendEvent(t, conn2, &Event{Type: EventLogin, UserID: dave.UserID})

	// 确认两边都已就位，队列清空
	sendEvent(t, conn1, &Event{Type: EventChatMessage, GroupID: ops.GroupID, MessageText: "sync-1"})
	readUntilMessage(t, conn1, "sync-1")
	sendEvent(t, conn2, &Event{Type: EventChatMessage, GroupID: ops.GroupID, MessageText: "sync-2"})
	readUntilMessage(t, conn2, "sync-2")
	readUntilMessage(t, conn1, "sync-2")

	require.NoError(t, conn1.Close())

	got := map[int64]int{}
	for i := 0; i < 2; i++ {
		ev := readEvent(t, conn2)
		require.Equal(t, EventUserLeftGroup, ev.Type)
		assert.Equal(t, dave.UserID, ev.UserID)
		got[ev.GroupID]++
	}
	assert.Equal(t, map[int64]int{ops.GroupID: 1, dev.GroupID: 1}, got,
		"每个群组恰好一次离开通知")

	expectSilence(t, conn2)
}

// 匿名连接的聊天被丢弃，既不广播也不落库
func TestRelay_AnonymousChatDropped(t *testing.T) {
	env := newRelayEnv(t)
	ctx := context.Background()

	alice, err := env.auth.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	group, err := env.groups.Create(ctx, "Team", alice.UserID)
	require.NoError(t, err)

	conn := env.dial(t)
	sendEvent(t, conn, &Event{Type: EventChatMessage, GroupID: group.GroupID, MessageText: "ghost"})
	expectSilence(t, conn)

	history, err := env.messages.History(ctx, group.GroupID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

// 非法 JSON 只丢弃当前帧，连接继续可用
func TestRelay_MalformedEventDoesNotKillConnection(t *testing.T) {
	env := newRelayEnv(t)
	ctx := context.Background()

	alice, err := env.auth.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	group, err := env.groups.Create(ctx, "Team", alice.UserID)
	require.NoError(t, err)

	conn := env.dial(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	sendEvent(t, conn, &Event{Type: EventLogin, UserID: alice.UserID})
	sendEvent(t, conn, &Event{Type: EventJoinGroup, GroupID: group.GroupID})

	ev := readEvent(t, conn)
	assert.Equal(t, EventUserJoinedGroup, ev.Type)
}
