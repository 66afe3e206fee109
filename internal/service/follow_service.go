package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"PinSocial/internal/model"
	"PinSocial/internal/observability"
	"PinSocial/internal/repository/sqlstore"
)

// RequestFollow 的结果类型
const (
	ResultFollow  = "follow"
	ResultRequest = "request"
)

// RequestStatus 额外包含 NONE，表示这对用户之间没有申请记录
const RequestNone = "NONE"

type FollowResult struct {
	Type    string               `json:"type"`
	Request *model.FollowRequest `json:"request,omitempty"`
}

// RelationStatus viewer 对 target 的关注关系
type RelationStatus struct {
	IsFollowing   bool   `json:"is_following"`
	RequestStatus string `json:"request_status"`
	RequestID     uint64 `json:"request_id,omitempty"`
}

type FollowCounts struct {
	Followers int64 `json:"followers_count"`
	Following int64 `json:"following_count"`
}

type UserSummary struct {
	ID        uint64 `json:"id"`
	Username  string `json:"username"`
	IsPrivate bool   `json:"is_private"`
}

type RequestSummary struct {
	ID        uint64      `json:"id"`
	Status    string      `json:"status"`
	User      UserSummary `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
}

type FollowService struct {
	users    *sqlstore.UserRepository
	follows  *sqlstore.FollowRepository
	requests *sqlstore.FollowRequestRepository
	vis      *Visibility
	metrics  *observability.FollowMetrics
	log      *zap.Logger
}

func NewFollowService(users *sqlstore.UserRepository, follows *sqlstore.FollowRepository, requests *sqlstore.FollowRequestRepository,
	vis *Visibility, metrics *observability.FollowMetrics, log *zap.Logger) *FollowService {
	return &FollowService{
		users:    users,
		follows:  follows,
		requests: requests,
		vis:      vis,
		metrics:  metrics,
		log:      log,
	}
}

// RequestFollow 公开账号直接关注，私密账号发起申请
func (s *FollowService) RequestFollow(ctx context.Context, followerID, targetID uint64) (*FollowResult, error) {
	if followerID == targetID {
		return nil, ErrSelfFollow
	}
	following, err := s.follows.Exists(ctx, followerID, targetID)
	if err != nil {
		return nil, fmt.Errorf("check follow edge: %w", err)
	}
	if following {
		return nil, ErrAlreadyFollowing
	}
	target, err := s.users.FindByID(ctx, targetID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return nil, ErrTargetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}

	if !target.IsPrivate {
		if _, err := s.follows.Create(ctx, followerID, targetID); err != nil {
			// 并发下另一请求先插入了同一条边
			if errors.Is(err, sqlstore.ErrDuplicate) {
				return nil, ErrAlreadyFollowing
			}
			return nil, fmt.Errorf("create follow edge: %w", err)
		}
		s.metrics.Observe("follow")
		return &FollowResult{Type: ResultFollow}, nil
	}

	req, prev, err := s.requests.Open(ctx, followerID, targetID)
	switch {
	case errors.Is(err, sqlstore.ErrStateConflict), errors.Is(err, sqlstore.ErrDuplicate):
		return nil, ErrRequestAlreadyPending
	case err != nil:
		return nil, fmt.Errorf("open follow request: %w", err)
	}
	if prev == model.RequestAccepted {
		// 已通过的申请但边已被删除（取关或被移除），复用原行重新申请
		s.log.Warn("re-opening accepted follow request without edge",
			zap.Uint64("request_id", req.ID),
			zap.Uint64("sender_id", followerID),
			zap.Uint64("receiver_id", targetID))
	}
	s.metrics.Observe("request")
	return &FollowResult{Type: ResultRequest, Request: req}, nil
}

// Accept 接收方同意申请
func (s *FollowService) Accept(ctx context.Context, receiverID, requestID uint64) (*model.FollowRequest, error) {
	req, err := s.requests.Accept(ctx, requestID, receiverID)
	if err != nil {
		return nil, requestError("accept follow request", err)
	}
	s.metrics.Observe("accept")
	return req, nil
}

// Reject 接收方拒绝申请
func (s *FollowService) Reject(ctx context.Context, receiverID, requestID uint64) (*model.FollowRequest, error) {
	req, err := s.requests.Reject(ctx, requestID, receiverID)
	if err != nil {
		return nil, requestError("reject follow request", err)
	}
	s.metrics.Observe("reject")
	return req, nil
}

// Cancel 发送方撤回还在 PENDING 的申请
func (s *FollowService) Cancel(ctx context.Context, senderID, receiverID uint64) error {
	if err := s.requests.Cancel(ctx, senderID, receiverID); err != nil {
		return requestError("cancel follow request", err)
	}
	s.metrics.Observe("cancel")
	return nil
}

// Unfollow 取消关注
func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID uint64) error {
	if err := s.follows.Delete(ctx, followerID, targetID, sqlstore.EventUnfollow); err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return ErrNotFollowing
		}
		return fmt.Errorf("delete follow edge: %w", err)
	}
	s.metrics.Observe("unfollow")
	return nil
}

// RemoveFollower userID 移除自己的粉丝 followerID
func (s *FollowService) RemoveFollower(ctx context.Context, userID, followerID uint64) error {
	if err := s.follows.Delete(ctx, followerID, userID, sqlstore.EventFollowerRemoved); err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return ErrNotFollowing
		}
		return fmt.Errorf("delete follow edge: %w", err)
	}
	s.metrics.Observe("remove_follower")
	return nil
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, targetID uint64) (bool, error) {
	ok, err := s.follows.Exists(ctx, followerID, targetID)
	if err != nil {
		return false, fmt.Errorf("check follow edge: %w", err)
	}
	return ok, nil
}

// GetFollowRequestStatus sender 对 receiver 的关注和申请状态
func (s *FollowService) GetFollowRequestStatus(ctx context.Context, senderID, receiverID uint64) (*RelationStatus, error) {
	following, err := s.IsFollowing(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	status := &RelationStatus{IsFollowing: following, RequestStatus: RequestNone}
	req, err := s.requests.FindByPair(ctx, senderID, receiverID)
	switch {
	case errors.Is(err, sqlstore.ErrNotFound):
		return status, nil
	case err != nil:
		return nil, fmt.Errorf("load follow request: %w", err)
	}
	status.RequestStatus = string(req.Status)
	status.RequestID = req.ID
	return status, nil
}

// GetFollowers 粉丝列表，受资料可见性限制
func (s *FollowService) GetFollowers(ctx context.Context, viewer Viewer, userID, cursor uint64, limit int) ([]UserSummary, uint64, error) {
	if err := s.checkProfile(ctx, viewer, userID); err != nil {
		return nil, 0, err
	}
	rows, next, err := s.follows.ListFollowers(ctx, userID, cursor, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list followers: %w", err)
	}
	ids := make([]uint64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.FollowerID)
	}
	list, err := s.summaries(ctx, ids)
	return list, next, err
}

// GetFollowing 关注列表，受资料可见性限制
func (s *FollowService) GetFollowing(ctx context.Context, viewer Viewer, userID, cursor uint64, limit int) ([]UserSummary, uint64, error) {
	if err := s.checkProfile(ctx, viewer, userID); err != nil {
		return nil, 0, err
	}
	rows, next, err := s.follows.ListFollowings(ctx, userID, cursor, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list followings: %w", err)
	}
	ids := make([]uint64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.FollowingID)
	}
	list, err := s.summaries(ctx, ids)
	return list, next, err
}

// GetFollowCounts 计数对所有人可见
func (s *FollowService) GetFollowCounts(ctx context.Context, userID uint64) (*FollowCounts, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &FollowCounts{Followers: u.FollowerCount, Following: u.FollowingCount}, nil
}

// ListIncomingRequests 收到的待处理申请
func (s *FollowService) ListIncomingRequests(ctx context.Context, receiverID, cursor uint64, limit int) ([]RequestSummary, uint64, error) {
	rows, next, err := s.requests.ListIncoming(ctx, receiverID, cursor, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list incoming requests: %w", err)
	}
	list, err := s.requestSummaries(ctx, rows, func(r model.FollowRequest) uint64 { return r.SenderID })
	return list, next, err
}

// ListOutgoingRequests 发出的待处理申请
func (s *FollowService) ListOutgoingRequests(ctx context.Context, senderID, cursor uint64, limit int) ([]RequestSummary, uint64, error) {
	rows, next, err := s.requests.ListOutgoing(ctx, senderID, cursor, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list outgoing requests: %w", err)
	}
	list, err := s.requestSummaries(ctx, rows, func(r model.FollowRequest) uint64 { return r.ReceiverID })
	return list, next, err
}

func (s *FollowService) checkProfile(ctx context.Context, viewer Viewer, userID uint64) error {
	owner, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	ok, err := s.vis.CanViewProfile(ctx, viewer, owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProfileNotVisible
	}
	return nil
}

// summaries 按 ids 顺序返回，已删除的用户跳过
func (s *FollowService) summaries(ctx context.Context, ids []uint64) ([]UserSummary, error) {
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	byID := make(map[uint64]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, summaryOf(&u))
		}
	}
	return out, nil
}

func (s *FollowService) requestSummaries(ctx context.Context, rows []model.FollowRequest, other func(model.FollowRequest) uint64) ([]RequestSummary, error) {
	ids := make([]uint64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, other(r))
	}
	users, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]UserSummary, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]RequestSummary, 0, len(rows))
	for _, r := range rows {
		u, ok := byID[other(r)]
		if !ok {
			continue
		}
		out = append(out, RequestSummary{ID: r.ID, Status: string(r.Status), User: u, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func summaryOf(u *model.User) UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, IsPrivate: u.IsPrivate}
}

// requestError 把存储层错误换成申请相关的业务错误
func requestError(op string, err error) error {
	switch {
	case errors.Is(err, sqlstore.ErrNotFound):
		return ErrRequestNotFound
	case errors.Is(err, sqlstore.ErrNotOwner):
		return ErrUnauthorized
	case errors.Is(err, sqlstore.ErrStateConflict):
		return ErrNotPending
	}
	return fmt.Errorf("%s: %w", op, err)
}
