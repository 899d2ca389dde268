package http

import (
	"net/http"
	"strconv"

	"xapobank-backend/internal/service"
)

type ChatHandler struct {
	chat service.ChatService
}

func NewChatHandler(chat service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToEmail string `json:"to_email,omitempty"`
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	msg, err := h.chat.Send(r.Context(), identityFrom(r), req.ToEmail, req.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, msg)
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseInt32(q.Get("limit"), 50)
	offset := parseInt32(q.Get("offset"), 0)

	msgs, total, err := h.chat.History(r.Context(), identityFrom(r), q.Get("email"), limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, map[string]any{"messages": msgs, "total": total})
}

func parseInt32(raw string, fallback int32) int32 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(v)
}
