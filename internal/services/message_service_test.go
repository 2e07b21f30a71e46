package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/SignalRoom/internal/store"
)

func TestMessageService_SendAndHistory(t *testing.T) {
	st := newTestStore(t)
	auth := NewAuthService(st)
	groups := NewGroupService(st)
	svc := NewMessageService(st)
	ctx := context.Background()

	alice, err := auth.Login(ctx, "alice", "password-a")
	require.NoError(t, err)
	group, err := groups.Create(ctx, "Team", alice.UserID)
	require.NoError(t, err)

	sent, err := svc.Send(ctx, group.GroupID, alice.UserID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "alice", sent.SenderUsername)
	assert.Equal(t, "hi", sent.MessageText)
	assert.Greater(t, sent.MessageID, int64(0))

	history, err := svc.History(ctx, group.GroupID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sent.MessageID, history[0].MessageID)
	assert.Equal(t, "alice", history[0].SenderUsername)
}

func TestMessageService_HistoryOrderedAndExactlyOnce(t *testing.T) {
	st := newTestStore(t)
	auth := NewAuthService(st)
	groups := NewGroupService(st)
	svc := NewMessageService(st)
	ctx := context.Background()

	alice, err := auth.Login(ctx, "alice", "password-a")
	require.NoError(t, err)
	group, err := groups.Create(ctx, "Team", alice.UserID)
	require.NoError(t, err)

	const n = 20
	for i := range n {
		_, err := svc.Send(ctx, group.GroupID, alice.UserID, fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, group.GroupID)
	require.NoError(t, err)
	require.Len(t, history, n)

	seen := make(map[int64]bool, n)
	for i, m := range history {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), m.MessageText)
		assert.False(t, seen[m.MessageID], "message delivered more than once in history")
		seen[m.MessageID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, m.Timestamp, history[i-1].Timestamp)
		}
	}
}

func TestMessageService_UnknownSenderPlaceholder(t *testing.T) {
	st := newTestStore(t)
	auth := NewAuthService(st)
	groups := NewGroupService(st)
	svc := NewMessageService(st)
	ctx := context.Background()

	alice, err := auth.Login(ctx, "alice", "password-a")
	require.NoError(t, err)
	group, err := groups.Create(ctx, "Team", alice.UserID)
	require.NoError(t, err)

	// 写入时不校验 senderId 引用，读取端用占位用户名降级
	_, err = st.AppendMessage(ctx, group.GroupID, 424242, "ghost message")
	require.NoError(t, err)

	history, err := svc.History(ctx, group.GroupID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, unknownUser, history[0].SenderUsername)
}

func TestMessageService_Validation(t *testing.T) {
	st := newTestStore(t)
	svc := NewMessageService(st)
	ctx := context.Background()

	var vErr *ValidationError
	_, err := svc.Send(ctx, 1, 1, "")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "messageText", vErr.Field)

	// 未知群组的历史 -> NotFound
	_, err = svc.History(ctx, 424242)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
