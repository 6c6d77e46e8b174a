package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/estate-chat/internal/common"
	"github.com/suPer8Hu/estate-chat/internal/conversation"
	"github.com/suPer8Hu/estate-chat/internal/httpapi/middleware"
)

// serviceError maps conversation errors onto the response envelope.
func (h *Handler) serviceError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "conversation not found")
	case errors.Is(err, conversation.ErrValidation):
		common.Fail(c, http.StatusBadRequest, 10002, err.Error())
	default:
		h.Log.Error().
			Err(err).
			Str("op", op).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("token", c.Param("token")).
			Msg("conversation operation failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

// startConversationReq carries no validation rules: a token that matches nothing
// starts a new conversation and client fields are stored as given.
type startConversationReq struct {
	Token       string  `json:"token"`
	ClientName  *string `json:"client_name"`
	ClientEmail *string `json:"client_email"`
	ClientPhone *string `json:"client_phone"`
}

func (h *Handler) StartConversation(c *gin.Context) {
	var req startConversationReq
	// an empty body starts an anonymous conversation
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	caller, err := h.caller(c)
	if err != nil {
		h.serviceError(c, "start", err)
		return
	}

	conv, resumed, err := h.ConvSvc.Start(c.Request.Context(), conversation.StartInput{
		Token:       req.Token,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
	}, caller)
	if err != nil {
		h.serviceError(c, "start", err)
		return
	}

	common.OK(c, gin.H{
		"conversation": conv.Payload(),
		"resumed":      resumed,
	})
}

func (h *Handler) GetConversation(c *gin.Context) {
	d, err := h.ConvSvc.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.serviceError(c, "get", err)
		return
	}
	common.OK(c, gin.H{"conversation": d})
}

func (h *Handler) ListMessages(c *gin.Context) {
	// malformed numbers fall back to defaults; clamping handles the rest
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	page, _ := strconv.Atoi(c.Query("page"))

	res, err := h.ConvSvc.ListMessages(c.Request.Context(), c.Param("token"), perPage, page)
	if err != nil {
		h.serviceError(c, "list_messages", err)
		return
	}
	common.OK(c, res)
}

type sendMessageReq struct {
	Sender string  `json:"sender" binding:"required,oneof=user admin"`
	Body   *string `json:"body"`
	TempID *string `json:"temp_id" binding:"omitempty,max=64"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "sender must be user or admin")
		return
	}

	caller, err := h.caller(c)
	if err != nil {
		h.serviceError(c, "append", err)
		return
	}

	msg, err := h.ConvSvc.Append(c.Request.Context(), conversation.AppendInput{
		Token:  c.Param("token"),
		Sender: req.Sender,
		Body:   req.Body,
		TempID: req.TempID,
	}, caller)
	if err != nil {
		h.serviceError(c, "append", err)
		return
	}

	common.OK(c, gin.H{
		"ok":      true,
		"message": msg,
	})
}

type markReadReq struct {
	As string `json:"as" binding:"required,oneof=user admin"`
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req markReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "as must be user or admin")
		return
	}

	n, err := h.ConvSvc.MarkRead(c.Request.Context(), c.Param("token"), req.As)
	if err != nil {
		h.serviceError(c, "mark_read", err)
		return
	}
	common.OK(c, gin.H{"ok": true, "updated": n})
}

func (h *Handler) CloseConversation(c *gin.Context) {
	conv, err := h.ConvSvc.Close(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.serviceError(c, "close", err)
		return
	}
	common.OK(c, gin.H{"conversation": conv.Payload()})
}
