package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"PinSocial/internal/model"
)

func TestLikeIsIdempotentAndCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author", false)
	fan := env.user(t, "fan", false)
	p := env.pin(t, author, "pin", true, 0, 0)
	svc := env.reg.Like

	changed, err := svc.Like(ctx, fan.ID, p.ID)
	if err != nil || !changed {
		t.Fatalf("like = %v, %v", changed, err)
	}
	changed, err = svc.Like(ctx, fan.ID, p.ID)
	if err != nil || changed {
		t.Fatalf("second like = %v, %v", changed, err)
	}
	n, err := svc.Count(ctx, Anonymous(), p.ID)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}
	// 回源后计数已进缓存，后续增减直接改缓存
	if !env.mr.Exists("like:cnt:pin:" + itoa(p.ID)) {
		t.Fatal("count should be cached after a read")
	}
	if _, err := svc.Like(ctx, author.ID, p.ID); err != nil {
		t.Fatalf("author like: %v", err)
	}
	if n, _ := svc.Count(ctx, Anonymous(), p.ID); n != 2 {
		t.Fatalf("cached count = %d", n)
	}

	changed, err = svc.Unlike(ctx, fan.ID, p.ID)
	if err != nil || !changed {
		t.Fatalf("unlike = %v, %v", changed, err)
	}
	liked, err := svc.IsLiked(ctx, fan.ID, p.ID)
	if err != nil || liked {
		t.Fatalf("is liked = %v, %v", liked, err)
	}
	if n, _ := svc.Count(ctx, Anonymous(), p.ID); n != 1 {
		t.Fatalf("count after unlike = %d", n)
	}
}

func TestIsLikedServedFromLikeSet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author", false)
	fan := env.user(t, "fan", false)
	other := env.user(t, "other", false)
	p := env.pin(t, author, "pin", true, 0, 0)
	svc := env.reg.Like
	key := "like:set:pin:" + itoa(p.ID)

	for _, u := range []*model.User{fan, other} {
		if _, err := svc.Like(ctx, u.ID, p.ID); err != nil {
			t.Fatalf("like: %v", err)
		}
	}
	liked, err := svc.IsLiked(ctx, fan.ID, p.ID)
	if err != nil || !liked {
		t.Fatalf("is liked = %v, %v", liked, err)
	}
	// 第一次未命中后回填了完整集合
	if !env.mr.Exists(key) {
		t.Fatal("like set should exist after a miss")
	}
	for _, u := range []*model.User{fan, other} {
		if ok, _ := env.mr.IsMember(key, itoa(u.ID)); !ok {
			t.Fatalf("user %d missing from like set", u.ID)
		}
	}

	// 绕过服务删库，命中缓存时结果不变
	env.db.Where("user_id = ? AND pin_id = ?", fan.ID, p.ID).Delete(&model.PinLike{})
	if liked, _ := svc.IsLiked(ctx, fan.ID, p.ID); !liked {
		t.Fatal("is liked should be answered by the cached set")
	}
	if liked, _ := svc.IsLiked(ctx, author.ID, p.ID); liked {
		t.Fatal("author never liked the pin")
	}

	if _, err := svc.Unlike(ctx, other.ID, p.ID); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if ok, _ := env.mr.IsMember(key, itoa(other.ID)); ok {
		t.Fatal("unlike should update the warm set")
	}
}

func TestLikeRequiresVisiblePin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author", false)
	stranger := env.user(t, "stranger", false)
	p := env.pin(t, author, "hidden", false, 0, 0)

	if _, err := env.reg.Like.Like(ctx, stranger.ID, p.ID); !errors.Is(err, ErrPinNotFound) {
		t.Fatalf("like hidden err = %v", err)
	}
	if _, err := env.reg.Like.Count(ctx, Anonymous(), p.ID); !errors.Is(err, ErrPinNotFound) {
		t.Fatalf("count hidden err = %v", err)
	}
}

func TestCommentPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author", false)
	fan := env.user(t, "fan", false)
	other := env.user(t, "other", false)
	p := env.pin(t, author, "pin", true, 0, 0)
	svc := env.reg.Comment

	if _, err := svc.Create(ctx, fan.ID, p.ID, "   "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty comment err = %v", err)
	}
	c1, err := svc.Create(ctx, fan.ID, p.ID, "nice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c2, _ := svc.Create(ctx, other.ID, p.ID, "meh")

	list, _, err := svc.List(ctx, Anonymous(), p.ID, 0, 10)
	if err != nil || len(list) != 2 || list[0].ID != c1.ID {
		t.Fatalf("list = %+v, err = %v", list, err)
	}
	if err := svc.Delete(ctx, other.ID, c1.ID); !errors.Is(err, ErrNotCommentOwner) {
		t.Fatalf("delete by other err = %v", err)
	}
	if err := svc.Delete(ctx, fan.ID, c1.ID); err != nil {
		t.Fatalf("delete own: %v", err)
	}
	// pin 作者可以删别人的评论
	if err := svc.Delete(ctx, author.ID, c2.ID); err != nil {
		t.Fatalf("delete by pin author: %v", err)
	}
	if err := svc.Delete(ctx, author.ID, c2.ID); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("delete twice err = %v", err)
	}
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
