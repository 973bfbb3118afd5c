package client_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatgo/client"
	"chatgo/internal/domain"
)

func msg(id int64, body string) domain.Message {
	return domain.Message{ID: id, ChatID: 1, Body: body, Status: domain.StatusSent}
}

func TestHistoryApplyNew(t *testing.T) {
	h := client.NewHistory()

	h.ApplyNew(msg(1, "first"))
	h.ApplyNew(msg(2, "second"))

	got := h.Messages()
	assert.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Body)
	assert.Equal(t, "second", got[1].Body)

	t.Run("DuplicateIDIgnored", func(t *testing.T) {
		// the originator sees the same message twice: once from the
		// synchronous response, once from the room broadcast
		h.ApplyNew(msg(1, "first again"))
		got := h.Messages()
		assert.Len(t, got, 2)
		assert.Equal(t, "first", got[0].Body)
	})
}

func TestHistoryApplyUpdate(t *testing.T) {
	h := client.NewHistory()
	h.ApplyNew(msg(1, "first"))
	h.ApplyNew(msg(2, "second"))

	edited := msg(1, "first, edited")
	edited.Status = domain.StatusEdited
	h.ApplyUpdate(edited)

	got := h.Messages()
	assert.Len(t, got, 2)
	assert.Equal(t, "first, edited", got[0].Body)
	assert.Equal(t, domain.StatusEdited, got[0].Status)

	t.Run("UnknownIDIgnored", func(t *testing.T) {
		h.ApplyUpdate(msg(99, "phantom"))
		assert.Equal(t, 2, h.Len())
	})
}

func TestHistoryApplyDelete(t *testing.T) {
	h := client.NewHistory()
	h.ApplyNew(msg(1, "first"))
	h.ApplyNew(msg(2, "second"))

	cleared := domain.Message{ID: 1, ChatID: 1, Status: domain.StatusDeleted}
	h.ApplyDelete(cleared)

	got := h.Messages()
	// the deleted message keeps its slot in the sequence
	assert.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Empty(t, got[0].Body)
	assert.Equal(t, domain.StatusDeleted, got[0].Status)
	assert.Equal(t, "second", got[1].Body)
}

func TestHistoryReplace(t *testing.T) {
	h := client.NewHistory()
	h.ApplyNew(msg(5, "stale"))

	h.Replace([]domain.Message{msg(1, "first"), msg(2, "second"), msg(3, "third")})

	got := h.Messages()
	assert.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].ID)

	t.Run("IndexRebuilt", func(t *testing.T) {
		h.ApplyUpdate(msg(2, "second, edited"))
		assert.Equal(t, "second, edited", h.Messages()[1].Body)
		// the pre-replace id is gone
		h.ApplyUpdate(msg(5, "stale, edited"))
		assert.Len(t, h.Messages(), 3)
	})

	t.Run("SnapshotIsACopy", func(t *testing.T) {
		snap := h.Messages()
		snap[0].Body = "mutated"
		assert.Equal(t, "first", h.Messages()[0].Body)
	})
}
