package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"PinSocial/internal/middleware"
	"PinSocial/internal/service"
)

type PinHandler struct {
	svc *service.PinService
}

func NewPinHandler(svc *service.PinService) *PinHandler {
	return &PinHandler{svc: svc}
}

type createPinReq struct {
	Title     string   `json:"title" binding:"required,max=120"`
	Content   string   `json:"content" binding:"max=4000"`
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	IsPublic  *bool    `json:"is_public"`
}

type updatePinReq struct {
	Title     *string  `json:"title" binding:"omitempty,max=120"`
	Content   *string  `json:"content" binding:"omitempty,max=4000"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	IsPublic  *bool    `json:"is_public"`
}

func (h *PinHandler) Create(c *gin.Context) {
	var req createPinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	pin, err := h.svc.Create(c.Request.Context(), middleware.UserIDFrom(c), service.PinInput{
		Title:     req.Title,
		Content:   req.Content,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		IsPublic:  req.IsPublic,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pin)
}

func (h *PinHandler) Update(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updatePinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	pin, err := h.svc.Update(c.Request.Context(), middleware.UserIDFrom(c), pinID, service.PinUpdate{
		Title:     req.Title,
		Content:   req.Content,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		IsPublic:  req.IsPublic,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pin)
}

func (h *PinHandler) Delete(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.UserIDFrom(c), pinID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get 看不到的 pin 与不存在的 pin 一样返回 404
func (h *PinHandler) Get(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	pin, err := h.svc.GetPinByID(c.Request.Context(), middleware.ViewerFrom(c), pinID)
	if err != nil {
		writeError(c, err)
		return
	}
	if pin == nil {
		writeError(c, service.ErrPinNotFound)
		return
	}
	c.JSON(http.StatusOK, pin)
}

// ListByAuthor 某个用户的 pin 列表
func (h *PinHandler) ListByAuthor(c *gin.Context) {
	authorID, ok := pathID(c, "id")
	if !ok {
		return
	}
	q, ok := pinQuery(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.ListByAuthor(c.Request.Context(), middleware.ViewerFrom(c), authorID, q)
	if err != nil {
		writeError(c, err)
		return
	}
	list(c, rows, next)
}

// Feed 公开 pin、自己的和已关注作者的
func (h *PinHandler) Feed(c *gin.Context) {
	q, ok := pinQuery(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.ListFeed(c.Request.Context(), middleware.ViewerFrom(c), q)
	if err != nil {
		writeError(c, err)
		return
	}
	list(c, rows, next)
}

// PresignImage 申请图片直传地址
func (h *PinHandler) PresignImage(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ContentType string `json:"content_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	up, err := h.svc.PresignImage(c.Request.Context(), middleware.UserIDFrom(c), pinID, req.ContentType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, up)
}

// AttachImage 上传完成后回写图片地址
func (h *PinHandler) AttachImage(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	pin, err := h.svc.AttachImage(c.Request.Context(), middleware.UserIDFrom(c), pinID, req.Key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pin)
}

// pinQuery 解析 is_public、lat/lng/radius_km 和分页参数；三个地理参数要么都给要么都不给
func pinQuery(c *gin.Context) (service.PinQuery, bool) {
	var q service.PinQuery
	cursor, limit, ok := page(c)
	if !ok {
		return q, false
	}
	q.Cursor, q.Limit = cursor, limit

	if v := c.Query("is_public"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "invalid is_public")
			return q, false
		}
		q.IsPublic = &b
	}

	lat, lng, radius := c.Query("lat"), c.Query("lng"), c.Query("radius_km")
	if lat == "" && lng == "" && radius == "" {
		return q, true
	}
	var (
		geo  service.GeoFilter
		errs [3]error
	)
	geo.Lat, errs[0] = strconv.ParseFloat(lat, 64)
	geo.Lng, errs[1] = strconv.ParseFloat(lng, 64)
	geo.RadiusKm, errs[2] = strconv.ParseFloat(radius, 64)
	for _, err := range errs {
		if err != nil {
			badRequest(c, "lat, lng and radius_km must be given together")
			return q, false
		}
	}
	q.Near = &geo
	return q, true
}
