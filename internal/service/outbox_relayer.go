package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"PinSocial/internal/model"
	"PinSocial/internal/pkg"
	"PinSocial/internal/repository/sqlstore"
)

// Sender 投递一条 outbox 事件，返回错误会进入重试
type Sender func(ctx context.Context, ob *model.SocialOutbox) error

// MailDeliverer 发信接口，pkg.Mailer 实现
type MailDeliverer interface {
	Send(to, subject, htmlBody string) error
}

// OutboxRelayer 从 outbox 表读取事件异步投递
type OutboxRelayer struct {
	repo      *sqlstore.OutboxRepository
	batchSize int
	interval  time.Duration
	sender    Sender
	log       *zap.Logger
}

// FollowCountReconciler 定期用 follows 表校正用户上的计数
type FollowCountReconciler struct {
	repo      *sqlstore.FollowCountReconcilerRepo
	batchSize int
	interval  time.Duration
	log       *zap.Logger
}

func NewOutboxRelayer(repo *sqlstore.OutboxRepository, sender Sender, log *zap.Logger) *OutboxRelayer {
	return &OutboxRelayer{
		repo:      repo,
		batchSize: 200,
		interval:  time.Second,
		sender:    sender,
		log:       log,
	}
}

func NewFollowCountReconciler(repo *sqlstore.FollowCountReconcilerRepo, log *zap.Logger) *FollowCountReconciler {
	return &FollowCountReconciler{
		repo:      repo,
		batchSize: 500,
		interval:  5 * time.Minute,
		log:       log,
	}
}

// Run outbox 启动器，ctx 取消后退出
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.drainOnce(ctx)
		}
	}
}

// drainOnce 投递一批，返回成功条数
func (r *OutboxRelayer) drainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize)
	if err != nil {
		r.log.Error("outbox query failed", zap.Error(err))
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err := r.sender(ctx, &ob); err != nil {
			r.log.Warn("outbox send failed",
				zap.Uint64("id", ob.ID),
				zap.String("event", ob.EventType),
				zap.Int("retry", ob.Retry),
				zap.Error(err))
			if err := r.repo.MarkFailed(ctx, ob.ID); err != nil {
				r.log.Error("outbox mark failed", zap.Uint64("id", ob.ID), zap.Error(err))
			}
			continue
		}
		if err := r.repo.MarkSent(ctx, ob.ID); err != nil {
			r.log.Error("outbox mark sent", zap.Uint64("id", ob.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// FanOut 依次调用多个 sender，任一失败整条重试。
// 已成功的 sender 会在重试时再收到同一事件，投递是至少一次，下游按事件 id 去重
func FanOut(senders ...Sender) Sender {
	return func(ctx context.Context, ob *model.SocialOutbox) error {
		var errs []error
		for _, s := range senders {
			if err := s(ctx, ob); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// LogSender 未配置 Kafka 时使用，只打印
func LogSender(log *zap.Logger) Sender {
	return func(ctx context.Context, ob *model.SocialOutbox) error {
		log.Info("outbox event",
			zap.String("event", ob.EventType),
			zap.Uint64("actor_id", ob.ActorID),
			zap.Uint64("target_id", ob.TargetID),
			zap.String("payload", ob.Payload))
		return nil
	}
}

type eventEnvelope struct {
	ID       uint64          `json:"id"`
	Type     string          `json:"type"`
	ActorID  uint64          `json:"actor_id"`
	TargetID uint64          `json:"target_id"`
	Payload  json.RawMessage `json:"payload"`
}

// KafkaSender 以 target 用户 id 为 key，同一用户的事件保持顺序
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.SocialOutbox) error {
		value, err := json.Marshal(eventEnvelope{
			ID:       ob.ID,
			Type:     ob.EventType,
			ActorID:  ob.ActorID,
			TargetID: ob.TargetID,
			Payload:  json.RawMessage(ob.Payload),
		})
		if err != nil {
			return err
		}
		return p.Send(ctx, pkg.MakeKeyFromID(ob.TargetID), value, eventHeaders(ob)...)
	}
}

// eventHeaders event_id 即 outbox 行 id，重试时不变
func eventHeaders(ob *model.SocialOutbox) []kafka.Header {
	return []kafka.Header{
		{Key: "event_id", Value: []byte(pkg.MakeKeyFromID(ob.ID))},
		{Key: "event_type", Value: []byte(ob.EventType)},
	}
}

// MailSender 申请和通过两类事件发邮件提醒，其余事件忽略
func MailSender(users *sqlstore.UserRepository, mailer MailDeliverer) Sender {
	return func(ctx context.Context, ob *model.SocialOutbox) error {
		if ob.EventType != sqlstore.EventFollowRequest && ob.EventType != sqlstore.EventFollowAccepted {
			return nil
		}
		actor, err := users.FindByID(ctx, ob.ActorID)
		if errors.Is(err, sqlstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := users.FindByID(ctx, ob.TargetID)
		if errors.Is(err, sqlstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if ob.EventType == sqlstore.EventFollowRequest {
			return mailer.Send(target.Email, "New follow request",
				pkg.FollowRequestHTML(target.Username, actor.Username))
		}
		// 通过事件里 actor 是申请方
		return mailer.Send(actor.Email, "Follow request accepted",
			pkg.FollowAcceptedHTML(actor.Username, target.Username))
	}
}

// ReconcilerRun 对账定时任务启动器
func (r *FollowCountReconciler) ReconcilerRun(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.reconcileOnce(ctx); err != nil {
				r.log.Error("reconcile follow counts", zap.Error(err))
			}
		}
	}
}

// reconcileOnce 扫一遍全部用户，返回修正的用户数
func (r *FollowCountReconciler) reconcileOnce(ctx context.Context) (int, error) {
	var lastID uint64
	fixed := 0
	for {
		users, next, err := r.repo.ReconcileList(ctx, r.batchSize, lastID)
		if err != nil {
			return fixed, fmt.Errorf("reconcile list: %w", err)
		}
		if len(users) == 0 {
			return fixed, nil
		}
		for _, u := range users {
			// 先查 follows 表真实值，再和 users 表比对
			realFollowing, err := r.repo.RealFollowings(ctx, u.ID)
			if err != nil {
				return fixed, err
			}
			realFollower, err := r.repo.RealFollowers(ctx, u.ID)
			if err != nil {
				return fixed, err
			}
			changed := false
			if realFollowing != u.FollowingCount {
				if err := r.repo.SetFollowingCount(ctx, u.ID, realFollowing); err != nil {
					return fixed, err
				}
				changed = true
			}
			if realFollower != u.FollowerCount {
				if err := r.repo.SetFollowerCount(ctx, u.ID, realFollower); err != nil {
					return fixed, err
				}
				changed = true
			}
			if changed {
				fixed++
				r.log.Info("follow counts repaired",
					zap.Uint64("user_id", u.ID),
					zap.Int64("followers", realFollower),
					zap.Int64("following", realFollowing))
			}
		}
		lastID = next
	}
}
