package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"PinSocial/internal/model"
	"PinSocial/internal/pkg"
	"PinSocial/internal/repository/redis"
	"PinSocial/internal/repository/sqlstore"
)

// EarthRadiusKm haversine 使用的地球半径
const EarthRadiusKm = 6371.0

// GeoFilter 以 (Lat, Lng) 为圆心、RadiusKm 为半径过滤
type GeoFilter struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

type PinQuery struct {
	IsPublic *bool
	Near     *GeoFilter
	Cursor   uint64
	Limit    int
}

type PinInput struct {
	Title     string
	Content   string
	Latitude  float64
	Longitude float64
	IsPublic  *bool
}

type PinUpdate struct {
	Title     *string
	Content   *string
	Latitude  *float64
	Longitude *float64
	IsPublic  *bool
}

// PinView 带上距离查询点的公里数
type PinView struct {
	model.Pin
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

type PinService struct {
	pins      *sqlstore.PinRepository
	users     *sqlstore.UserRepository
	vis       *Visibility
	likeCache *redis.LikeCache
	storage   *pkg.ObjectStorage
	log       *zap.Logger
}

func NewPinService(pins *sqlstore.PinRepository, users *sqlstore.UserRepository, vis *Visibility,
	likeCache *redis.LikeCache, storage *pkg.ObjectStorage, log *zap.Logger) *PinService {
	return &PinService{
		pins:      pins,
		users:     users,
		vis:       vis,
		likeCache: likeCache,
		storage:   storage,
		log:       log,
	}
}

func (s *PinService) Create(ctx context.Context, authorID uint64, in PinInput) (*model.Pin, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || !validCoords(in.Latitude, in.Longitude) {
		return nil, ErrInvalidArgument
	}
	pin := &model.Pin{
		AuthorID:  authorID,
		Title:     title,
		Content:   in.Content,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		IsPublic:  true,
	}
	if in.IsPublic != nil {
		pin.IsPublic = *in.IsPublic
	}
	if err := s.pins.Create(ctx, pin); err != nil {
		return nil, fmt.Errorf("create pin: %w", err)
	}
	return pin, nil
}

func (s *PinService) Update(ctx context.Context, authorID, pinID uint64, upd PinUpdate) (*model.Pin, error) {
	fields := map[string]any{}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, ErrInvalidArgument
		}
		fields["title"] = title
	}
	if upd.Content != nil {
		fields["content"] = *upd.Content
	}
	if upd.Latitude != nil || upd.Longitude != nil {
		if upd.Latitude == nil || upd.Longitude == nil || !validCoords(*upd.Latitude, *upd.Longitude) {
			return nil, ErrInvalidArgument
		}
		fields["latitude"] = *upd.Latitude
		fields["longitude"] = *upd.Longitude
	}
	if upd.IsPublic != nil {
		fields["is_public"] = *upd.IsPublic
	}
	if err := s.pins.Update(ctx, pinID, authorID, fields); err != nil {
		return nil, pinError("update pin", err)
	}
	pin, err := s.pins.FindByID(ctx, pinID)
	if err != nil {
		return nil, pinError("reload pin", err)
	}
	return pin, nil
}

func (s *PinService) Delete(ctx context.Context, authorID, pinID uint64) error {
	if err := s.pins.Delete(ctx, pinID, authorID); err != nil {
		return pinError("delete pin", err)
	}
	if s.likeCache != nil {
		if err := s.likeCache.Forget(ctx, pinID); err != nil {
			s.log.Warn("drop like cache", zap.Uint64("pin_id", pinID), zap.Error(err))
		}
	}
	return nil
}

// GetPinByID 不存在或不可见都返回 nil，不暴露 pin 是否存在
func (s *PinService) GetPinByID(ctx context.Context, viewer Viewer, pinID uint64) (*model.Pin, error) {
	pin, err := s.pins.FindByID(ctx, pinID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pin: %w", err)
	}
	ok, err := s.vis.CanViewPin(ctx, viewer, pin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return pin, nil
}

// ListByAuthor 先按作者资料可见性拦截；非本人非粉丝只能看到公开 pin。
// 距离过滤在取出一页之后做，返回条数可能少于 limit
func (s *PinService) ListByAuthor(ctx context.Context, viewer Viewer, authorID uint64, q PinQuery) ([]PinView, uint64, error) {
	author, err := s.users.FindByID(ctx, authorID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return nil, 0, ErrUserNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load author: %w", err)
	}
	ok, err := s.vis.CanViewProfile(ctx, viewer, author)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrProfileNotVisible
	}
	sees, err := s.vis.Sees(ctx, viewer, authorID)
	if err != nil {
		return nil, 0, err
	}
	rows, next, err := s.pins.ListByAuthor(ctx, authorID, sqlstore.PinFilter{
		OnlyPublic: !sees,
		IsPublic:   q.IsPublic,
		Cursor:     q.Cursor,
		Limit:      q.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list pins: %w", err)
	}
	return filterByDistance(rows, q.Near), next, nil
}

// ListFeed 公开 pin 加上自己和关注作者的全部 pin
func (s *PinService) ListFeed(ctx context.Context, viewer Viewer, q PinQuery) ([]PinView, uint64, error) {
	viewerID, _ := viewer.ID()
	rows, next, err := s.pins.ListFeed(ctx, viewerID, q.Cursor, q.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list feed: %w", err)
	}
	return filterByDistance(rows, q.Near), next, nil
}

// PresignImage 作者为 pin 申请图片上传地址
func (s *PinService) PresignImage(ctx context.Context, authorID, pinID uint64, contentType string) (*pkg.PresignedUpload, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	pin, err := s.pins.FindByID(ctx, pinID)
	if err != nil {
		return nil, pinError("load pin", err)
	}
	if pin.AuthorID != authorID {
		return nil, ErrNotPinAuthor
	}
	key, err := pkg.PinImageKey(authorID, pinID, contentType)
	if err != nil {
		return nil, ErrInvalidArgument
	}
	up, err := s.storage.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return up, nil
}

// AttachImage 上传完成后确认对象存在并写回 image_url
func (s *PinService) AttachImage(ctx context.Context, authorID, pinID uint64, key string) (*model.Pin, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	if !strings.HasPrefix(key, fmt.Sprintf("pins/%d/%d/", authorID, pinID)) {
		return nil, ErrInvalidArgument
	}
	found, err := s.storage.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("head object: %w", err)
	}
	if !found {
		return nil, ErrUploadMissing
	}
	if err := s.pins.SetImage(ctx, pinID, authorID, s.storage.URL(key)); err != nil {
		return nil, pinError("set pin image", err)
	}
	return s.pins.FindByID(ctx, pinID)
}

// DistanceKm haversine 球面距离
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func filterByDistance(rows []model.Pin, near *GeoFilter) []PinView {
	out := make([]PinView, 0, len(rows))
	for _, p := range rows {
		if near == nil {
			out = append(out, PinView{Pin: p})
			continue
		}
		d := DistanceKm(near.Lat, near.Lng, p.Latitude, p.Longitude)
		if d > near.RadiusKm {
			continue
		}
		out = append(out, PinView{Pin: p, DistanceKm: &d})
	}
	return out
}

func validCoords(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func pinError(op string, err error) error {
	switch {
	case errors.Is(err, sqlstore.ErrNotFound):
		return ErrPinNotFound
	case errors.Is(err, sqlstore.ErrNotOwner):
		return ErrNotPinAuthor
	}
	return fmt.Errorf("%s: %w", op, err)
}
