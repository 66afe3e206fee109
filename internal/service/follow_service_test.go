package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"PinSocial/internal/model"
)

func TestRequestFollowPublicCreatesEdge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.user(t, "u1", false)
	u2 := env.user(t, "u2", false)

	res, err := env.reg.Follow.RequestFollow(ctx, u2.ID, u1.ID)
	if err != nil {
		t.Fatalf("request follow: %v", err)
	}
	if res.Type != ResultFollow || res.Request != nil {
		t.Fatalf("result = %+v, want follow", res)
	}
	if n := env.count(t, &model.Follow{}, "follower_id = ? AND following_id = ?", u2.ID, u1.ID); n != 1 {
		t.Fatalf("edges = %d, want 1", n)
	}
	if n := env.count(t, &model.FollowRequest{}, "sender_id = ?", u2.ID); n != 0 {
		t.Fatalf("request rows = %d, want 0", n)
	}
	counts, err := env.reg.Follow.GetFollowCounts(ctx, u1.ID)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Followers != 1 || counts.Following != 0 {
		t.Fatalf("counts = %+v", counts)
	}
}

func TestRequestFollowPrivateThenAccept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u2 := env.user(t, "u2", false)
	u3 := env.user(t, "u3", true)

	res, err := env.reg.Follow.RequestFollow(ctx, u2.ID, u3.ID)
	if err != nil {
		t.Fatalf("request follow: %v", err)
	}
	if res.Type != ResultRequest || res.Request == nil || res.Request.Status != model.RequestPending {
		t.Fatalf("result = %+v, want pending request", res)
	}
	if ok, _ := env.reg.Follow.IsFollowing(ctx, u2.ID, u3.ID); ok {
		t.Fatal("edge must not exist before accept")
	}

	req, err := env.reg.Follow.Accept(ctx, u3.ID, res.Request.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if req.Status != model.RequestAccepted {
		t.Fatalf("status = %s", req.Status)
	}
	ok, err := env.reg.Follow.IsFollowing(ctx, u2.ID, u3.ID)
	if err != nil || !ok {
		t.Fatalf("is following = %v, err = %v", ok, err)
	}
	st, err := env.reg.Follow.GetFollowRequestStatus(ctx, u2.ID, u3.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.IsFollowing || st.RequestStatus != string(model.RequestAccepted) || st.RequestID != req.ID {
		t.Fatalf("relation = %+v", st)
	}
	counts, _ := env.reg.Follow.GetFollowCounts(ctx, u3.ID)
	if counts.Followers != 1 {
		t.Fatalf("followers = %d", counts.Followers)
	}
}

func TestRejectThenRequestReusesRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "a", false)
	b := env.user(t, "b", true)

	first, err := env.reg.Follow.RequestFollow(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	rejected, err := env.reg.Follow.Reject(ctx, b.ID, first.Request.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.RequestRejected {
		t.Fatalf("status = %s", rejected.Status)
	}
	if ok, _ := env.reg.Follow.IsFollowing(ctx, a.ID, b.ID); ok {
		t.Fatal("reject must not create an edge")
	}

	again, err := env.reg.Follow.RequestFollow(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("request again: %v", err)
	}
	if again.Request.ID != first.Request.ID || again.Request.Status != model.RequestPending {
		t.Fatalf("request = %+v, want row %d back to PENDING", again.Request, first.Request.ID)
	}
	if n := env.count(t, &model.FollowRequest{}, "sender_id = ? AND receiver_id = ?", a.ID, b.ID); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestCancelOnlyWhilePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "a", false)
	b := env.user(t, "b", true)
	c := env.user(t, "c", true)
	svc := env.reg.Follow

	if err := svc.Cancel(ctx, a.ID, b.ID); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("cancel missing err = %v", err)
	}

	res, _ := svc.RequestFollow(ctx, a.ID, b.ID)
	if _, err := svc.Accept(ctx, b.ID, res.Request.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := svc.Cancel(ctx, a.ID, b.ID); !errors.Is(err, ErrNotPending) {
		t.Fatalf("cancel accepted err = %v", err)
	}

	res, _ = svc.RequestFollow(ctx, a.ID, c.ID)
	if _, err := svc.Reject(ctx, c.ID, res.Request.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := svc.Cancel(ctx, a.ID, c.ID); !errors.Is(err, ErrNotPending) {
		t.Fatalf("cancel rejected err = %v", err)
	}

	// 重新申请后可以撤回，行被物理删除
	if _, err := svc.RequestFollow(ctx, a.ID, c.ID); err != nil {
		t.Fatalf("re-request: %v", err)
	}
	if err := svc.Cancel(ctx, a.ID, c.ID); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	st, _ := svc.GetFollowRequestStatus(ctx, a.ID, c.ID)
	if st.RequestStatus != RequestNone {
		t.Fatalf("status after cancel = %s", st.RequestStatus)
	}
}

func TestRequestFollowGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "a", false)
	pub := env.user(t, "pub", false)
	priv := env.user(t, "priv", true)
	svc := env.reg.Follow

	if _, err := svc.RequestFollow(ctx, a.ID, a.ID); !errors.Is(err, ErrSelfFollow) {
		t.Fatalf("self err = %v", err)
	}
	if _, err := svc.RequestFollow(ctx, a.ID, 9999); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("missing target err = %v", err)
	}
	if _, err := svc.RequestFollow(ctx, a.ID, pub.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if _, err := svc.RequestFollow(ctx, a.ID, pub.ID); !errors.Is(err, ErrAlreadyFollowing) {
		t.Fatalf("duplicate err = %v", err)
	}
	res, err := svc.RequestFollow(ctx, a.ID, priv.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.RequestFollow(ctx, a.ID, priv.ID); !errors.Is(err, ErrRequestAlreadyPending) {
		t.Fatalf("pending twice err = %v", err)
	}

	if _, err := svc.Accept(ctx, priv.ID, 9999); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("accept missing err = %v", err)
	}
	if _, err := svc.Accept(ctx, a.ID, res.Request.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("accept by sender err = %v", err)
	}
	if _, err := svc.Reject(ctx, pub.ID, res.Request.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("reject by stranger err = %v", err)
	}
	if _, err := svc.Accept(ctx, priv.ID, res.Request.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Reject(ctx, priv.ID, res.Request.ID); !errors.Is(err, ErrNotPending) {
		t.Fatalf("reject accepted err = %v", err)
	}
	// 已关注优先于其他检查
	if _, err := svc.RequestFollow(ctx, a.ID, priv.ID); !errors.Is(err, ErrAlreadyFollowing) {
		t.Fatalf("follow accepted err = %v", err)
	}
}

func TestUnfollowAndRemoveFollower(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "a", false)
	b := env.user(t, "b", false)
	svc := env.reg.Follow

	if err := svc.Unfollow(ctx, a.ID, b.ID); !errors.Is(err, ErrNotFollowing) {
		t.Fatalf("unfollow without edge err = %v", err)
	}
	if _, err := svc.RequestFollow(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if err := svc.Unfollow(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	counts, _ := svc.GetFollowCounts(ctx, b.ID)
	if counts.Followers != 0 {
		t.Fatalf("followers after unfollow = %d", counts.Followers)
	}

	if _, err := svc.RequestFollow(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("follow again: %v", err)
	}
	// 参数顺序：b 移除粉丝 a
	if err := svc.RemoveFollower(ctx, a.ID, b.ID); !errors.Is(err, ErrNotFollowing) {
		t.Fatalf("remove reversed err = %v", err)
	}
	if err := svc.RemoveFollower(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("remove follower: %v", err)
	}
	if ok, _ := svc.IsFollowing(ctx, a.ID, b.ID); ok {
		t.Fatal("edge should be gone")
	}
}

func TestAcceptedRequestReopensAfterUnfollow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "a", false)
	b := env.user(t, "b", true)
	svc := env.reg.Follow

	res, _ := svc.RequestFollow(ctx, a.ID, b.ID)
	if _, err := svc.Accept(ctx, b.ID, res.Request.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := svc.Unfollow(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	again, err := svc.RequestFollow(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("request again: %v", err)
	}
	if again.Request.ID != res.Request.ID || again.Request.Status != model.RequestPending {
		t.Fatalf("request = %+v", again.Request)
	}
}

func TestFollowerListsRespectPrivacy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", true)
	fan := env.user(t, "fan", false)
	stranger := env.user(t, "stranger", false)
	svc := env.reg.Follow

	res, _ := svc.RequestFollow(ctx, fan.ID, owner.ID)
	if _, err := svc.Accept(ctx, owner.ID, res.Request.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, _, err := svc.GetFollowers(ctx, AsUser(stranger.ID), owner.ID, 0, 10); !errors.Is(err, ErrProfileNotVisible) {
		t.Fatalf("stranger err = %v", err)
	}
	if _, _, err := svc.GetFollowing(ctx, Anonymous(), owner.ID, 0, 10); !errors.Is(err, ErrProfileNotVisible) {
		t.Fatalf("anonymous err = %v", err)
	}
	list, _, err := svc.GetFollowers(ctx, AsUser(fan.ID), owner.ID, 0, 10)
	if err != nil {
		t.Fatalf("fan view: %v", err)
	}
	if len(list) != 1 || list[0].ID != fan.ID || list[0].Username != "fan" {
		t.Fatalf("followers = %+v", list)
	}
	list, _, err = svc.GetFollowing(ctx, Anonymous(), fan.ID, 0, 10)
	if err != nil || len(list) != 1 || list[0].ID != owner.ID {
		t.Fatalf("public following list = %+v, err = %v", list, err)
	}
}

func TestIncomingAndOutgoingRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "a", false)
	b := env.user(t, "b", false)
	p := env.user(t, "p", true)
	svc := env.reg.Follow

	_, _ = svc.RequestFollow(ctx, a.ID, p.ID)
	resB, _ := svc.RequestFollow(ctx, b.ID, p.ID)
	if _, err := svc.Reject(ctx, p.ID, resB.Request.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	in, _, err := svc.ListIncomingRequests(ctx, p.ID, 0, 10)
	if err != nil {
		t.Fatalf("incoming: %v", err)
	}
	if len(in) != 1 || in[0].User.ID != a.ID {
		t.Fatalf("incoming = %+v", in)
	}
	out, _, err := svc.ListOutgoingRequests(ctx, a.ID, 0, 10)
	if err != nil || len(out) != 1 || out[0].User.ID != p.ID {
		t.Fatalf("outgoing = %+v, err = %v", out, err)
	}
}

// 存在性检查之后、插入之前另一个请求抢先写入同一条边
func TestConcurrentPublicFollowLoserGetsAlreadyFollowing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.user(t, "u1", false)
	u2 := env.user(t, "u2", false)

	fired := false
	err := env.db.Callback().Create().Before("gorm:create").Register("test:competing_edge", func(tx *gorm.DB) {
		if fired || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "follows" {
			return
		}
		fired = true
		if _, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"INSERT INTO follows (follower_id, following_id, created_at) VALUES (?, ?, ?)",
			u2.ID, u1.ID, time.Now()); err != nil {
			t.Errorf("competing insert: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	if _, err := env.reg.Follow.RequestFollow(ctx, u2.ID, u1.ID); !errors.Is(err, ErrAlreadyFollowing) {
		t.Fatalf("err = %v, want ErrAlreadyFollowing", err)
	}
	if !fired {
		t.Fatal("competing insert never ran")
	}
	counts, err := env.reg.Follow.GetFollowCounts(ctx, u1.ID)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Followers != 0 {
		t.Fatalf("losing follow must not touch counters, got %+v", counts)
	}
}
