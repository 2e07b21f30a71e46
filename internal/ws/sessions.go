package ws

import (
	"sync"
)

// SessionRegistry 记录每条活跃连接代表哪个已认证用户
// 同一个用户可以有多条并发连接（多设备）；绑定不过期，
// 与底层连接同生共死
type SessionRegistry struct {
	mu     sync.RWMutex
	byConn map[string]int64
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byConn: make(map[string]int64),
	}
}

// Bind 记录连接代表的用户，重复绑定直接覆盖
func (r *SessionRegistry) Bind(connID string, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[connID] = userID
}

// Lookup 查询连接绑定的用户
func (r *SessionRegistry) Lookup(connID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byConn[connID]
	return userID, ok
}

// Unbind 连接断开时解除绑定
func (r *SessionRegistry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConn, connID)
}

// Count 当前绑定数量
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
