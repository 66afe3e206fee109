package service

import (
	"context"
	"errors"
	"testing"

	"PinSocial/internal/model"
)

func TestRegisterLoginAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.reg.User

	if _, err := svc.Register(ctx, "alice", "secret1", "alice@example.com"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "secret1", "other@example.com"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate register err = %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}

	first, err := svc.Login(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	uid, err := svc.Authenticate(ctx, first.AccessToken)
	if err != nil || uid == 0 {
		t.Fatalf("authenticate = %d, %v", uid, err)
	}

	// 刷新后旧 access 失效
	second, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := svc.Authenticate(ctx, first.AccessToken); !errors.Is(err, ErrSessionReplaced) {
		t.Fatalf("old token err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, second.AccessToken); err != nil {
		t.Fatalf("new token: %v", err)
	}

	if err := svc.Logout(ctx, uid); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, second.AccessToken); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("after logout err = %v", err)
	}
	if _, err := svc.Refresh(ctx, second.RefreshToken); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("refresh after logout err = %v", err)
	}
}

func TestChangePasswordForcesRelogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.reg.User
	u, err := svc.Register(ctx, "bob", "secret1", "bob@example.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, _ := svc.Login(ctx, "bob", "secret1")

	if err := svc.ChangePassword(ctx, u.ID, "nope", "secret2"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("wrong old password err = %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "secret1", "secret2"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("old session err = %v", err)
	}
	if _, err := svc.Login(ctx, "bob", "secret2"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestProfileHidesBioOfPrivateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", false)
	viewer := env.user(t, "viewer", false)
	private, bio := true, "hello"
	if _, err := env.reg.User.UpdateSettings(ctx, owner.ID, Settings{IsPrivate: &private, Bio: &bio}); err != nil {
		t.Fatalf("settings: %v", err)
	}

	p, err := env.reg.User.GetProfile(ctx, AsUser(viewer.ID), owner.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.CanView || p.Bio != "" || !p.IsPrivate {
		t.Fatalf("stranger profile = %+v", p)
	}
	if p.Relation == nil || p.Relation.RequestStatus != RequestNone {
		t.Fatalf("relation = %+v", p.Relation)
	}

	if _, err := env.reg.Follow.RequestFollow(ctx, viewer.ID, owner.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	p, _ = env.reg.User.GetProfile(ctx, AsUser(viewer.ID), owner.ID)
	if p.Relation.RequestStatus != string(model.RequestPending) {
		t.Fatalf("relation after request = %+v", p.Relation)
	}

	p, err = env.reg.User.GetProfile(ctx, AsUser(owner.ID), owner.ID)
	if err != nil || !p.CanView || p.Bio != "hello" || p.Relation != nil {
		t.Fatalf("own profile = %+v, err = %v", p, err)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.reg.User
	u, err := svc.Register(ctx, "carol", "secret1", "carol@example.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	friend := env.user(t, "friend", true)
	if _, err := env.reg.Follow.RequestFollow(ctx, u.ID, friend.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	env.pin(t, u, "pin", true, 0, 0)

	if err := svc.DeleteAccount(ctx, u.ID, "bad"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("bad password err = %v", err)
	}
	if err := svc.DeleteAccount(ctx, u.ID, "secret1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := env.count(t, &model.FollowRequest{}, "sender_id = ?", u.ID); n != 0 {
		t.Fatalf("requests left = %d", n)
	}
	if n := env.count(t, &model.Pin{}, "author_id = ?", u.ID); n != 0 {
		t.Fatalf("pins left = %d", n)
	}
	if _, err := svc.GetProfile(ctx, Anonymous(), u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("profile err = %v", err)
	}
}

func TestDeleteAccountRefreshesLikeCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, err := env.reg.User.Register(ctx, "dave", "secret1", "dave@example.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	author := env.user(t, "author", false)
	fan := env.user(t, "fan", false)
	liked := env.pin(t, author, "liked", true, 0, 0)
	own := env.pin(t, u, "own", true, 0, 0)

	if _, err := env.reg.Like.Like(ctx, u.ID, liked.ID); err != nil {
		t.Fatalf("like: %v", err)
	}
	if _, err := env.reg.Like.Like(ctx, fan.ID, own.ID); err != nil {
		t.Fatalf("fan like: %v", err)
	}
	// 读一次让计数进缓存
	for _, p := range []*model.Pin{liked, own} {
		if n, err := env.reg.Like.Count(ctx, Anonymous(), p.ID); err != nil || n != 1 {
			t.Fatalf("count before delete = %d, %v", n, err)
		}
	}

	if err := env.reg.User.DeleteAccount(ctx, u.ID, "secret1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, err := env.reg.Like.Count(ctx, Anonymous(), liked.ID)
	if err != nil || n != 0 {
		t.Fatalf("count after delete = %d, %v", n, err)
	}
	if env.mr.Exists("like:cnt:pin:" + itoa(own.ID)) {
		t.Fatal("cache of a deleted pin should be dropped")
	}
}
