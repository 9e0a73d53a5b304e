package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"connectmeet/internal/domain"
)

func TestInMemoryUserRepositoryCreateAndGet(t *testing.T) {
	repo := NewInMemoryUserRepository()
	ctx := context.Background()

	user := domain.NewUser("Alice", "alice@example.com", []byte("hash"))
	require.NoError(t, repo.Create(ctx, user))

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Name, byID.Name)

	byEmail, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)
}

func TestInMemoryUserRepositoryDuplicateEmail(t *testing.T) {
	repo := NewInMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewUser("Alice", "alice@example.com", nil)))
	err := repo.Create(ctx, domain.NewUser("Imposter", "Alice@Example.com", nil))
	require.ErrorIs(t, err, ErrUserEmailExists)
}

func TestInMemoryUserRepositoryGuestsHaveNoEmail(t *testing.T) {
	repo := NewInMemoryUserRepository()
	ctx := context.Background()

	// guests carry no email, so any number of them can coexist
	require.NoError(t, repo.Create(ctx, domain.NewGuestUser("Bob")))
	require.NoError(t, repo.Create(ctx, domain.NewGuestUser("Carol")))
}

func TestInMemoryUserRepositoryNotFound(t *testing.T) {
	repo := NewInMemoryUserRepository()

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestInMemoryUserRepositoryUpdate(t *testing.T) {
	repo := NewInMemoryUserRepository()
	ctx := context.Background()

	user := domain.NewUser("Alice", "alice@example.com", nil)
	require.NoError(t, repo.Create(ctx, user))

	user.Name = "Alice B."
	require.NoError(t, repo.Update(ctx, user))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice B.", got.Name)

	missing := domain.NewUser("Ghost", "", nil)
	require.ErrorIs(t, repo.Update(ctx, missing), ErrUserNotFound)
}
