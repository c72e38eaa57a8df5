package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comigor/jarvis-chat/internal/config"
	"github.com/comigor/jarvis-chat/internal/database"
	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/guard"
	"github.com/comigor/jarvis-chat/internal/history"
)

type fixture struct {
	store    *history.GormStore
	messages *MessageService
	convs    *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		FilePath:     filepath.Join(t.TempDir(), "service.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store := history.NewGormStore(db)
	require.NoError(t, store.Migrate())

	messages := NewMessageService(store)
	return &fixture{
		store:    store,
		messages: messages,
		convs:    NewConversationService(store, guard.New(store), messages),
	}
}

var (
	alice = &domain.Identity{UserID: "alice"}
	bob   = &domain.Identity{UserID: "bob"}
)

func TestClock_StrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &clock{now: func() time.Time { return fixed }}

	a, b, d := c.Next(), c.Next(), c.Next()
	assert.Equal(t, fixed, a)
	assert.Equal(t, fixed.Add(time.Microsecond), b)
	assert.Equal(t, fixed.Add(2*time.Microsecond), d)
}

func TestCreate_SeedRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, alice, []domain.NewMessage{
		{Role: domain.RoleUser, Content: "a"},
		{Role: domain.RoleAssistant, Content: "b"},
	})
	require.NoError(t, err)
	require.Equal(t, "alice", conv.OwnerID)

	msgs, err := f.convs.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "a", msgs[0].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "b", msgs[1].Content)
}

func TestCreate_InvalidSeedRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.convs.Create(ctx, alice, []domain.NewMessage{{Role: "robot", Content: "x"}})
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	list, err := f.convs.List(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestCreate_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	_, err := f.convs.Create(context.Background(), nil, nil)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.convs.List(context.Background(), &domain.Identity{})
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAppendMessage_OrderPreserved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, alice, nil)
	require.NoError(t, err)

	const n = 25
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		_, err := f.messages.AppendMessage(ctx, conv.ID, role, string(rune('A'+i)))
		require.NoError(t, err)
	}

	msgs, err := f.convs.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i, m := range msgs {
		assert.Equal(t, string(rune('A'+i)), m.Content)
		if i > 0 {
			assert.True(t, m.CreatedAt.After(msgs[i-1].CreatedAt))
		}
	}
}

func TestAppendMessage_VerbatimContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, alice, nil)
	require.NoError(t, err)

	content := "<b>bold</b>\n\n```go\nfmt.Println(\"hi\")\n```"
	m, err := f.messages.AppendMessage(ctx, conv.ID, domain.RoleUser, content)
	require.NoError(t, err)
	require.NotEmpty(t, m.ID)

	msgs, err := f.convs.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, content, msgs[0].Content)
}

func TestAppendMessage_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.messages.AppendMessage(ctx, "", domain.RoleUser, "x")
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.messages.AppendMessage(ctx, uuid.NewString(), domain.RoleUser, "x")
	require.ErrorIs(t, err, domain.ErrNotFound)

	conv, err := f.convs.Create(ctx, alice, nil)
	require.NoError(t, err)
	_, err = f.messages.AppendMessage(ctx, conv.ID, "tool", "x")
	require.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestList_NewUserIsEmpty(t *testing.T) {
	f := newFixture(t)
	list, err := f.convs.List(context.Background(), &domain.Identity{UserID: "new-user"})
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.convs.Create(ctx, alice, []domain.NewMessage{{Role: domain.RoleUser, Content: "hi"}})
	require.NoError(t, err)

	require.ErrorIs(t, f.convs.Delete(ctx, bob, conv.ID), domain.ErrForbidden)
	require.ErrorIs(t, f.convs.Delete(ctx, alice, uuid.NewString()), domain.ErrNotFound)

	require.NoError(t, f.convs.Delete(ctx, alice, conv.ID))
	require.ErrorIs(t, f.convs.Delete(ctx, alice, conv.ID), domain.ErrNotFound)

	msgs, err := f.convs.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}
