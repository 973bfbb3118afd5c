package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgo/internal/domain"
	"chatgo/internal/store/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, repo *sqlite.UserRepo, username string) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:       username,
		Name:           username,
		ShareID:        "share-" + username,
		HashedPassword: "hash",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	require.NotZero(t, u.ID)
	return u
}

func TestUserRepo(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewUserRepo(db)
	ctx := context.Background()

	alice := createUser(t, repo, "alice")

	t.Run("GetByUsername", func(t *testing.T) {
		got, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, "share-alice", got.ShareID)
	})

	t.Run("GetByShareID", func(t *testing.T) {
		got, err := repo.GetByShareID(ctx, "share-alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, alice.ID, got.ID)
	})

	t.Run("MissingUserIsNil", func(t *testing.T) {
		got, err := repo.GetByUsername(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DuplicateUsernameFails", func(t *testing.T) {
		err := repo.Create(ctx, &domain.User{
			Username: "alice", Name: "other", ShareID: "share-other", HashedPassword: "hash",
		})
		assert.Error(t, err)
	})
}

func TestChatRepoFindByParticipants(t *testing.T) {
	db := openTestDB(t)
	users := sqlite.NewUserRepo(db)
	chats := sqlite.NewChatRepo(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")
	carol := createUser(t, users, "carol")

	pair := &domain.Chat{}
	require.NoError(t, chats.Create(ctx, pair, []int64{alice.ID, bob.ID}))
	trio := &domain.Chat{}
	require.NoError(t, chats.Create(ctx, trio, []int64{alice.ID, bob.ID, carol.ID}))

	t.Run("ExactSetMatches", func(t *testing.T) {
		got, err := chats.FindByParticipants(ctx, []int64{bob.ID, alice.ID})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, pair.ID, got.ID)
		assert.Len(t, got.Participants, 2)
	})

	t.Run("SubsetDoesNotMatch", func(t *testing.T) {
		got, err := chats.FindByParticipants(ctx, []int64{alice.ID})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SupersetMatchesTrioOnly", func(t *testing.T) {
		got, err := chats.FindByParticipants(ctx, []int64{alice.ID, bob.ID, carol.ID})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, trio.ID, got.ID)
	})
}

func TestChatRepoMembership(t *testing.T) {
	db := openTestDB(t)
	users := sqlite.NewUserRepo(db)
	chats := sqlite.NewChatRepo(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")
	chat := &domain.Chat{}
	require.NoError(t, chats.Create(ctx, chat, []int64{alice.ID}))

	ok, err := chats.IsParticipant(ctx, chat.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = chats.IsParticipant(ctx, chat.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, chats.AddParticipant(ctx, chat.ID, bob.ID))
	// adding twice is a no-op
	require.NoError(t, chats.AddParticipant(ctx, chat.ID, bob.ID))
	ids, err := chats.ParticipantIDs(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, chats.RemoveParticipant(ctx, chat.ID, bob.ID))
	ok, err = chats.IsParticipant(ctx, chat.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// a chat listed for a user includes its participants
	list, err := chats.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, chat.ID, list[0].ID)
}

func TestMessageRepoLifecycle(t *testing.T) {
	db := openTestDB(t)
	users := sqlite.NewUserRepo(db)
	chats := sqlite.NewChatRepo(db)
	msgs := sqlite.NewMessageRepo(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	chat := &domain.Chat{}
	require.NoError(t, chats.Create(ctx, chat, []int64{alice.ID}))

	now := time.Now().UTC()
	first := &domain.Message{
		ChatID: chat.ID, AuthorID: alice.ID, Body: "first",
		Status: domain.StatusSent, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, msgs.Create(ctx, first))
	require.NotZero(t, first.ID)

	second := &domain.Message{
		ChatID: chat.ID, AuthorID: alice.ID, Body: "second",
		ReplyTo: &first.ID, Status: domain.StatusSent,
		Attachments: []domain.Attachment{{Filename: "a.png", MimeType: "image/png", URL: "/files/a.png", Size: 42}},
		CreatedAt:   now.Add(time.Second), UpdatedAt: now.Add(time.Second),
	}
	require.NoError(t, msgs.Create(ctx, second))

	t.Run("GetRoundTrips", func(t *testing.T) {
		got, err := msgs.GetByID(ctx, second.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "second", got.Body)
		require.NotNil(t, got.ReplyTo)
		assert.Equal(t, first.ID, *got.ReplyTo)
		require.Len(t, got.Attachments, 1)
		assert.Equal(t, "a.png", got.Attachments[0].Filename)
		assert.Equal(t, int64(42), got.Attachments[0].Size)
	})

	t.Run("ListAscending", func(t *testing.T) {
		list, err := msgs.ListForChat(ctx, chat.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)
	})

	t.Run("UpdatePersistsEdit", func(t *testing.T) {
		first.Body = "first, edited"
		first.Status = domain.StatusEdited
		first.UpdatedAt = now.Add(2 * time.Second)
		require.NoError(t, msgs.Update(ctx, first))

		got, err := msgs.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "first, edited", got.Body)
		assert.Equal(t, domain.StatusEdited, got.Status)
	})

	t.Run("SoftDeleteClearsBodyKeepsRow", func(t *testing.T) {
		second.Body = ""
		second.Attachments = nil
		second.Status = domain.StatusDeleted
		second.UpdatedAt = now.Add(3 * time.Second)
		require.NoError(t, msgs.Update(ctx, second))

		got, err := msgs.GetByID(ctx, second.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Empty(t, got.Body)
		assert.Empty(t, got.Attachments)
		assert.Equal(t, domain.StatusDeleted, got.Status)
		// the row still occupies its slot in the history
		list, err := msgs.ListForChat(ctx, chat.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("DeleteForChatRemovesAll", func(t *testing.T) {
		require.NoError(t, msgs.DeleteForChat(ctx, chat.ID))
		list, err := msgs.ListForChat(ctx, chat.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestChatRepoDelete(t *testing.T) {
	db := openTestDB(t)
	users := sqlite.NewUserRepo(db)
	chats := sqlite.NewChatRepo(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	chat := &domain.Chat{}
	require.NoError(t, chats.Create(ctx, chat, []int64{alice.ID}))

	require.NoError(t, chats.Delete(ctx, chat.ID))

	got, err := chats.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	ids, err := chats.ParticipantIDs(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
