package service

import (
	"context"
	"fmt"

	"PinSocial/internal/model"
	"PinSocial/internal/repository/sqlstore"
)

// Visibility 计算查看者能否看到资料或 pin，结果不落库
type Visibility struct {
	edges *sqlstore.FollowRepository
}

func NewVisibility(follows *sqlstore.FollowRepository) *Visibility {
	return &Visibility{edges: follows}
}

// CanViewProfile 本人、公开账号、或已关注
func (v *Visibility) CanViewProfile(ctx context.Context, viewer Viewer, owner *model.User) (bool, error) {
	if viewer.Is(owner.ID) || !owner.IsPrivate {
		return true, nil
	}
	return v.isFollower(ctx, viewer, owner.ID)
}

// CanViewPin pin 公开、本人、或已关注作者。作者的 IsPrivate 不参与判断
func (v *Visibility) CanViewPin(ctx context.Context, viewer Viewer, pin *model.Pin) (bool, error) {
	if pin.IsPublic || viewer.Is(pin.AuthorID) {
		return true, nil
	}
	return v.isFollower(ctx, viewer, pin.AuthorID)
}

// Sees 本人或已关注，用于决定是否能看到非公开内容
func (v *Visibility) Sees(ctx context.Context, viewer Viewer, ownerID uint64) (bool, error) {
	if viewer.Is(ownerID) {
		return true, nil
	}
	return v.isFollower(ctx, viewer, ownerID)
}

func (v *Visibility) isFollower(ctx context.Context, viewer Viewer, ownerID uint64) (bool, error) {
	id, ok := viewer.ID()
	if !ok {
		return false, nil
	}
	found, err := v.edges.Exists(ctx, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("check follow edge: %w", err)
	}
	return found, nil
}
