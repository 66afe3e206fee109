package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"PinSocial/internal/config"
	"PinSocial/internal/model"
	"PinSocial/internal/pkg"
	"PinSocial/internal/repository/sqlstore"
)

type testEnv struct {
	db  *gorm.DB
	mr  *miniredis.Miniredis
	reg *Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sqlstore.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	jwt, err := pkg.NewTokenManager(config.JWTConfig{
		AccessSecret:  "test-access",
		RefreshSecret: "test-refresh",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}
	reg := NewRegistry(Deps{DB: db, Redis: rdb, JWT: jwt, Log: zap.NewNop()})
	return &testEnv{db: db, mr: mr, reg: reg}
}

// user 直接落库，跳过 bcrypt
func (e *testEnv) user(t *testing.T, name string, private bool) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Password: "-", IsPrivate: private}
	if err := e.db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (e *testEnv) pin(t *testing.T, author *model.User, title string, public bool, lat, lng float64) *model.Pin {
	t.Helper()
	p, err := e.reg.Pin.Create(context.Background(), author.ID, PinInput{
		Title:     title,
		Latitude:  lat,
		Longitude: lng,
		IsPublic:  &public,
	})
	if err != nil {
		t.Fatalf("create pin %s: %v", title, err)
	}
	return p
}

func (e *testEnv) count(t *testing.T, m any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(m).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
