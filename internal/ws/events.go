package ws

import (
	"encoding/json"

	"github.com/Gopher0727/SignalRoom/internal/services"
)

// 客户端上行事件类型
const (
	EventLogin        = "login"
	EventChatMessage  = "chatMessage"
	EventJoinGroup    = "joinGroup"
	EventLeaveGroup   = "leaveGroup"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
)

// 服务端下行事件类型
const (
	EventMessage         = "message"
	EventUserJoinedGroup = "userJoinedGroup"
	EventUserLeftGroup   = "userLeftGroup"
	EventError           = "error"
)

// Event 长连接上的统一事件信封
// 信令事件的 payload（SDP/ICE 结构）是不透明的二进制块，服务端原样转发
type Event struct {
	Type string `json:"type"`

	GroupID  int64  `json:"groupId,omitempty"`
	UserID   int64  `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`

	// login 事件可带 HTTP 登录签发的 token，优先于裸 userId
	Token string `json:"token,omitempty"`

	MessageText string               `json:"messageText,omitempty"`
	Message     *services.MessageDTO `json:"message,omitempty"`

	// 信令转发时由服务端盖上发送者 ID，接收端按它自行过滤
	SenderID int64 `json:"senderId,omitempty"`
	// to 字段原样透传，服务端不做定向过滤
	To      int64           `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	Error string `json:"error,omitempty"`
}
