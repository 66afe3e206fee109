package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"PinSocial/internal/middleware"
	"PinSocial/internal/service"
)

type PinLikeHandler struct {
	svc *service.PinLikeService
}

func NewPinLikeHandler(svc *service.PinLikeService) *PinLikeHandler {
	return &PinLikeHandler{svc: svc}
}

func (h *PinLikeHandler) Like(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	changed, err := h.svc.Like(c.Request.Context(), middleware.UserIDFrom(c), pinID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *PinLikeHandler) Unlike(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	changed, err := h.svc.Unlike(c.Request.Context(), middleware.UserIDFrom(c), pinID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// Status 点赞数，登录时附带是否已赞
func (h *PinLikeHandler) Status(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	viewer := middleware.ViewerFrom(c)
	count, err := h.svc.Count(c.Request.Context(), viewer, pinID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"count": count}
	if uid, ok := viewer.ID(); ok {
		liked, err := h.svc.IsLiked(c.Request.Context(), uid, pinID)
		if err != nil {
			writeError(c, err)
			return
		}
		resp["liked"] = liked
	}
	c.JSON(http.StatusOK, resp)
}
