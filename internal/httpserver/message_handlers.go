package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatgo/internal/domain"
	"chatgo/internal/service"
)

type messageCreateRequest struct {
	ChatID      int64               `json:"chat_id"`
	Body        string              `json:"body"`
	ReplyTo     *int64              `json:"reply_to"`
	Attachments []domain.Attachment `json:"attachments"`
}

type messageEditRequest struct {
	Body string `json:"body"`
}

// handleListMessages serves GET /api/messages?chatId=, the full ordered
// history for a chat. Clients use it both to seed and to reconcile.
func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}

		chatIDStr := r.URL.Query().Get("chatId")
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil || chatID <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid or missing chatId"})
			return
		}

		msgs, err := msgSvc.List(r.Context(), currentUser.ID, chatID)
		if err != nil {
			writeError(w, err)
			return
		}
		if msgs == nil {
			msgs = []*domain.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleCreateMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}

		var req messageCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.ChatID <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid or missing chat_id"})
			return
		}

		msg, err := msgSvc.Create(r.Context(), currentUser.ID, service.MessageCreateInput{
			ChatID:      req.ChatID,
			Body:        req.Body,
			ReplyTo:     req.ReplyTo,
			Attachments: req.Attachments,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func handleEditMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}

		messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}

		var req messageEditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		msg, err := msgSvc.Edit(r.Context(), currentUser.ID, messageID, req.Body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func handleDeleteMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}

		messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}

		msg, err := msgSvc.Delete(r.Context(), currentUser.ID, messageID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}
