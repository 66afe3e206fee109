package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"PinSocial/internal/middleware"
	"PinSocial/internal/service"
)

type CommentHandler struct {
	svc *service.CommentService
}

func NewCommentHandler(svc *service.CommentService) *CommentHandler {
	return &CommentHandler{svc: svc}
}

func (h *CommentHandler) Create(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required,max=1000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	cm, err := h.svc.Create(c.Request.Context(), middleware.UserIDFrom(c), pinID, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cm)
}

func (h *CommentHandler) List(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	cursor, limit, ok := page(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.List(c.Request.Context(), middleware.ViewerFrom(c), pinID, cursor, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	list(c, rows, next)
}

// Delete 评论作者或 pin 作者可删
func (h *CommentHandler) Delete(c *gin.Context) {
	commentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.UserIDFrom(c), commentID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
