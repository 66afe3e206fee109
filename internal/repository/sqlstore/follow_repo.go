package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"PinSocial/internal/model"
)

// outbox 事件类型
const (
	EventFollow           = "follow"
	EventUnfollow         = "unfollow"
	EventFollowerRemoved  = "follower_removed"
	EventFollowRequest    = "follow_request"
	EventFollowAccepted   = "follow_accepted"
	EventFollowRejected   = "follow_rejected"
	EventRequestCancelled = "follow_request_cancelled"
)

type FollowRepository struct {
	DB *gorm.DB
}

type FollowRequestRepository struct {
	DB *gorm.DB
}

func NewFollowRepository(db *gorm.DB) *FollowRepository {
	return &FollowRepository{DB: db}
}

func NewFollowRequestRepository(db *gorm.DB) *FollowRequestRepository {
	return &FollowRequestRepository{DB: db}
}

// Create 直接关注公开用户：写边、调计数、写 outbox 在同一事务。
// 并发下唯一键冲突返回 ErrDuplicate
func (r *FollowRepository) Create(ctx context.Context, followerID, followingID uint64) (*model.Follow, error) {
	edge := &model.Follow{FollowerID: followerID, FollowingID: followingID}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(edge).Error; err != nil {
			return err
		}
		if err := adjustCounts(tx, followerID, followingID, +1); err != nil {
			return err
		}
		return insertOutbox(tx, EventFollow, followerID, followingID, 0)
	})
	if err != nil {
		return nil, translate(err)
	}
	return edge, nil
}

// Delete 删除 follower -> following 的边；不存在时返回 ErrNotFound。
// event 区分主动取关和被移除粉丝
func (r *FollowRepository) Delete(ctx context.Context, followerID, followingID uint64, event string) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).
			Delete(&model.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := adjustCounts(tx, followerID, followingID, -1); err != nil {
			return err
		}
		return insertOutbox(tx, event, followerID, followingID, 0)
	})
	return translate(err)
}

// Exists 判断是否关注
func (r *FollowRepository) Exists(ctx context.Context, followerID, followingID uint64) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListFollowings userID 关注的人，按 id 倒序游标分页
func (r *FollowRepository) ListFollowings(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	return r.list(ctx, "follower_id = ?", userID, cursor, limit)
}

// ListFollowers userID 的粉丝
func (r *FollowRepository) ListFollowers(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	return r.list(ctx, "following_id = ?", userID, cursor, limit)
}

func (r *FollowRepository) list(ctx context.Context, cond string, userID, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	limit = clampLimit(limit)
	q := r.DB.WithContext(ctx).Model(&model.Follow{}).Where(cond, userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Follow
	// 多取一条判断是否还有下一页
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

// FollowingIDs viewer 关注的全部用户 id，用于 feed 过滤
func (r *FollowRepository) FollowingIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error
	return ids, err
}

// FindByID 按 id 取申请
func (r *FollowRequestRepository) FindByID(ctx context.Context, id uint64) (*model.FollowRequest, error) {
	var req model.FollowRequest
	if err := r.DB.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// FindByPair 按 (sender, receiver) 取申请
func (r *FollowRequestRepository) FindByPair(ctx context.Context, senderID, receiverID uint64) (*model.FollowRequest, error) {
	var req model.FollowRequest
	if err := r.DB.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		First(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// Open 发起关注申请。没有记录则新建 PENDING；已是 PENDING 返回 ErrStateConflict；
// 其余状态复用原行改回 PENDING。prev 为改动前的状态，新建时为空
func (r *FollowRequestRepository) Open(ctx context.Context, senderID, receiverID uint64) (req *model.FollowRequest, prev model.FollowRequestStatus, err error) {
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.FollowRequest
		// select for update 避免竞争
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = model.FollowRequest{SenderID: senderID, ReceiverID: receiverID, Status: model.RequestPending}
			if err = tx.Create(&row).Error; err != nil {
				return err
			}
			req = &row
			return insertOutbox(tx, EventFollowRequest, senderID, receiverID, row.ID)
		}
		if err != nil {
			return err
		}
		if row.Status == model.RequestPending {
			req = &row
			return ErrStateConflict
		}
		prev = row.Status
		if err = tx.Model(&row).Update("status", model.RequestPending).Error; err != nil {
			return err
		}
		row.Status = model.RequestPending
		req = &row
		return insertOutbox(tx, EventFollowRequest, senderID, receiverID, row.ID)
	})
	return req, prev, translate(err)
}

// Accept 接受申请：建边和改状态在一个事务里，要么都成功要么都不生效
func (r *FollowRequestRepository) Accept(ctx context.Context, requestID, receiverID uint64) (*model.FollowRequest, error) {
	var req model.FollowRequest
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPending(tx, requestID, receiverID, &req); err != nil {
			return err
		}
		// 边已存在时不重复计数
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.Follow{FollowerID: req.SenderID, FollowingID: req.ReceiverID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if err := adjustCounts(tx, req.SenderID, req.ReceiverID, +1); err != nil {
				return err
			}
		}
		if err := setStatus(tx, req.ID, model.RequestAccepted); err != nil {
			return err
		}
		req.Status = model.RequestAccepted
		return insertOutbox(tx, EventFollowAccepted, req.SenderID, req.ReceiverID, req.ID)
	})
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// Reject 拒绝申请，不建边
func (r *FollowRequestRepository) Reject(ctx context.Context, requestID, receiverID uint64) (*model.FollowRequest, error) {
	var req model.FollowRequest
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPending(tx, requestID, receiverID, &req); err != nil {
			return err
		}
		if err := setStatus(tx, req.ID, model.RequestRejected); err != nil {
			return err
		}
		req.Status = model.RequestRejected
		return insertOutbox(tx, EventFollowRejected, req.SenderID, req.ReceiverID, req.ID)
	})
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// Cancel 发送方撤回 PENDING 申请，物理删除
func (r *FollowRequestRepository) Cancel(ctx context.Context, senderID, receiverID uint64) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.FollowRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
			First(&req).Error; err != nil {
			return err
		}
		if req.Status != model.RequestPending {
			return ErrStateConflict
		}
		res := tx.Where("id = ? AND status = ?", req.ID, model.RequestPending).Delete(&model.FollowRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStateConflict
		}
		return insertOutbox(tx, EventRequestCancelled, senderID, receiverID, req.ID)
	})
	return translate(err)
}

// ListIncoming receiver 待处理的申请
func (r *FollowRequestRepository) ListIncoming(ctx context.Context, receiverID, cursor uint64, limit int) ([]model.FollowRequest, uint64, error) {
	return r.listPending(ctx, "receiver_id = ?", receiverID, cursor, limit)
}

// ListOutgoing sender 发出且未处理的申请
func (r *FollowRequestRepository) ListOutgoing(ctx context.Context, senderID, cursor uint64, limit int) ([]model.FollowRequest, uint64, error) {
	return r.listPending(ctx, "sender_id = ?", senderID, cursor, limit)
}

func (r *FollowRequestRepository) listPending(ctx context.Context, cond string, userID, cursor uint64, limit int) ([]model.FollowRequest, uint64, error) {
	limit = clampLimit(limit)
	q := r.DB.WithContext(ctx).Model(&model.FollowRequest{}).
		Where(cond, userID).
		Where("status = ?", model.RequestPending)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.FollowRequest
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

// lockPending 加锁读取申请并依次校验：存在、接收方、PENDING
func lockPending(tx *gorm.DB, requestID, receiverID uint64, req *model.FollowRequest) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(req, requestID).Error; err != nil {
		return err
	}
	if req.ReceiverID != receiverID {
		return ErrNotOwner
	}
	if req.Status != model.RequestPending {
		return ErrStateConflict
	}
	return nil
}

func setStatus(tx *gorm.DB, id uint64, status model.FollowRequestStatus) error {
	res := tx.Model(&model.FollowRequest{}).
		Where("id = ? AND status = ?", id, model.RequestPending).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

// adjustCounts 调整关注数和粉丝数，不低于 0
func adjustCounts(tx *gorm.DB, followerID, followingID uint64, delta int64) error {
	if err := tx.Model(&model.User{}).
		Where("id = ?", followerID).
		UpdateColumn("following_count", clampedAdd("following_count", delta)).Error; err != nil {
		return err
	}
	return tx.Model(&model.User{}).
		Where("id = ?", followingID).
		UpdateColumn("follower_count", clampedAdd("follower_count", delta)).Error
}

// GREATEST 在 sqlite 上不可用，统一用 CASE
func clampedAdd(column string, delta int64) clause.Expr {
	return gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
}

// insertOutbox 插入 outbox 事件表
func insertOutbox(tx *gorm.DB, event string, actorID, targetID, requestID uint64) error {
	body := map[string]any{
		"event_time": time.Now().UTC().Format(time.RFC3339Nano),
		"actor_id":   actorID,
		"target_id":  targetID,
	}
	if requestID > 0 {
		body["request_id"] = requestID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tx.Create(&model.SocialOutbox{
		EventType: event,
		ActorID:   actorID,
		TargetID:  targetID,
		Payload:   string(payload),
	}).Error
}
