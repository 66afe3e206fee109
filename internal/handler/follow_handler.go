package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"PinSocial/internal/middleware"
	"PinSocial/internal/service"
)

type FollowHandler struct {
	svc *service.FollowService
}

func NewFollowHandler(svc *service.FollowService) *FollowHandler {
	return &FollowHandler{svc: svc}
}

// Follow 公开账号直接关注，私密账号生成申请
func (h *FollowHandler) Follow(c *gin.Context) {
	target, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.RequestFollow(c.Request.Context(), middleware.UserIDFrom(c), target)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if res.Type == service.ResultRequest {
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}

func (h *FollowHandler) Unfollow(c *gin.Context) {
	target, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Unfollow(c.Request.Context(), middleware.UserIDFrom(c), target); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelRequest 撤回自己发出的待处理申请
func (h *FollowHandler) CancelRequest(c *gin.Context) {
	target, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), middleware.UserIDFrom(c), target); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FollowHandler) Accept(c *gin.Context) {
	reqID, ok := pathID(c, "id")
	if !ok {
		return
	}
	req, err := h.svc.Accept(c.Request.Context(), middleware.UserIDFrom(c), reqID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *FollowHandler) Reject(c *gin.Context) {
	reqID, ok := pathID(c, "id")
	if !ok {
		return
	}
	req, err := h.svc.Reject(c.Request.Context(), middleware.UserIDFrom(c), reqID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// RemoveFollower 把某个粉丝移出
func (h *FollowHandler) RemoveFollower(c *gin.Context) {
	follower, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.RemoveFollower(c.Request.Context(), middleware.UserIDFrom(c), follower); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Relation 当前用户对目标用户的关注关系
func (h *FollowHandler) Relation(c *gin.Context) {
	target, ok := pathID(c, "id")
	if !ok {
		return
	}
	rel, err := h.svc.GetFollowRequestStatus(c.Request.Context(), middleware.UserIDFrom(c), target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

// ListFollowers 粉丝列表，私密账号仅本人和粉丝可看
func (h *FollowHandler) ListFollowers(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	cursor, limit, ok := page(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.GetFollowers(c.Request.Context(), middleware.ViewerFrom(c), userID, cursor, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	list(c, rows, next)
}

// ListFollowings 关注列表
func (h *FollowHandler) ListFollowings(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	cursor, limit, ok := page(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.GetFollowing(c.Request.Context(), middleware.ViewerFrom(c), userID, cursor, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	list(c, rows, next)
}

func (h *FollowHandler) Counts(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	counts, err := h.svc.GetFollowCounts(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *FollowHandler) Incoming(c *gin.Context) {
	cursor, limit, ok := page(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.ListIncomingRequests(c.Request.Context(), middleware.UserIDFrom(c), cursor, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	list(c, rows, next)
}

func (h *FollowHandler) Outgoing(c *gin.Context) {
	cursor, limit, ok := page(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.ListOutgoingRequests(c.Request.Context(), middleware.UserIDFrom(c), cursor, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	list(c, rows, next)
}
