package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/comigor/jarvis-chat/internal/domain"
)

// fakeStore serves conversations from a map.
type fakeStore struct {
	convs map[string]domain.Conversation
	err   error
}

func (f *fakeStore) CreateConversation(context.Context, domain.Conversation, []domain.Message) error {
	return nil
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.convs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (f *fakeStore) ListConversations(context.Context, string) ([]domain.Conversation, error) {
	return nil, nil
}

func (f *fakeStore) DeleteConversation(context.Context, string) error { return nil }

func (f *fakeStore) AppendMessages(context.Context, string, []domain.Message) error { return nil }

func (f *fakeStore) ListMessages(context.Context, string) ([]domain.Message, error) { return nil, nil }

func setup() (*Guard, string) {
	id := uuid.NewString()
	store := &fakeStore{convs: map[string]domain.Conversation{
		id: {ID: id, OwnerID: "alice", CreatedAt: time.Now()},
	}}
	return New(store), id
}

func TestAuthorize_Owner(t *testing.T) {
	g, id := setup()
	for _, access := range []Access{Read, Write} {
		conv, err := g.Authorize(context.Background(), &domain.Identity{UserID: "alice"}, id, access)
		require.NoError(t, err)
		require.Equal(t, id, conv.ID)
	}
}

func TestAuthorize_OtherOwnerForbidden(t *testing.T) {
	g, id := setup()
	for _, access := range []Access{Read, Write} {
		_, err := g.Authorize(context.Background(), &domain.Identity{UserID: "bob"}, id, access)
		require.ErrorIs(t, err, domain.ErrForbidden)
	}
}

func TestAuthorize_Failures(t *testing.T) {
	g, id := setup()
	ctx := context.Background()

	_, err := g.Authorize(ctx, nil, id, Read)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = g.Authorize(ctx, &domain.Identity{}, id, Read)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = g.Authorize(ctx, &domain.Identity{UserID: "alice"}, "", Read)
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = g.Authorize(ctx, &domain.Identity{UserID: "alice"}, "not-a-uuid", Read)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = g.Authorize(ctx, &domain.Identity{UserID: "alice"}, uuid.NewString(), Write)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthorize_StoreFailure(t *testing.T) {
	store := &fakeStore{err: domain.Storage("get conversation", errors.New("disk full"))}
	_, err := New(store).Authorize(context.Background(), &domain.Identity{UserID: "alice"}, uuid.NewString(), Read)
	require.Equal(t, domain.KindStorage, domain.KindOf(err))
}
