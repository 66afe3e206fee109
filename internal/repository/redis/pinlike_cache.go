package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LikeSetTTL       = 24 * time.Hour
	LikeCntTTL       = 24 * time.Hour
	LockTTL          = 300 * time.Millisecond
	LikeSetKeyPrefix = "like:set:pin" // 已点赞用户集合
	LikeCntKeyPrefix = "like:cnt:pin" // 点赞计数
	LikeVerKeyPrefix = "like:ver:pin" // 点赞写入版本，回填前后比对
	LockKeyPrefix    = "lock:like:pin"

	// 占位成员，保证没人点赞时集合也存在；用户 id 从 1 开始
	likeSetPlaceholder = 0
)

type LikeCache struct {
	rdb        *redis.Client
	likeSetTTL time.Duration
	likeCntTTL time.Duration
}

type DistLock struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewLikeCache(rdb *redis.Client) *LikeCache {
	return &LikeCache{rdb: rdb, likeSetTTL: LikeSetTTL, likeCntTTL: LikeCntTTL}
}

func NewDistLock(rdb *redis.Client) *DistLock {
	return &DistLock{RDB: rdb, TTL: LockTTL}
}

func (c *LikeCache) likeSetKey(pinID uint64) string {
	return fmt.Sprintf("%s:%d", LikeSetKeyPrefix, pinID)
}

func (c *LikeCache) likeCntKey(pinID uint64) string {
	return fmt.Sprintf("%s:%d", LikeCntKeyPrefix, pinID)
}

func (c *LikeCache) likeVerKey(pinID uint64) string {
	return fmt.Sprintf("%s:%d", LikeVerKeyPrefix, pinID)
}

// AddLike 写库成功后调用；先推进版本让进行中的回填作废，集合和计数只在已缓存时修改
func (c *LikeCache) AddLike(ctx context.Context, userID, pinID uint64) error {
	if err := c.bumpVersion(ctx, pinID); err != nil {
		return err
	}
	c.WarmIsLiked(ctx, userID, pinID, true)
	return c.bumpCount(ctx, pinID, +1)
}

func (c *LikeCache) RemoveLike(ctx context.Context, userID, pinID uint64) error {
	if err := c.bumpVersion(ctx, pinID); err != nil {
		return err
	}
	c.WarmIsLiked(ctx, userID, pinID, false)
	return c.bumpCount(ctx, pinID, -1)
}

func (c *LikeCache) bumpVersion(ctx context.Context, pinID uint64) error {
	vk := c.likeVerKey(pinID)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, vk)
		p.Expire(ctx, vk, c.likeSetTTL)
		return nil
	})
	return err
}

// LikeSetVersion 回源前读取，交给 FillLikeSet 比对
func (c *LikeCache) LikeSetVersion(ctx context.Context, pinID uint64) (int64, error) {
	v, err := c.rdb.Get(ctx, c.likeVerKey(pinID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// FillLikeSet 用库里的完整点赞列表建集合；期间有点赞写入（版本变化）则放弃，返回是否写入
func (c *LikeCache) FillLikeSet(ctx context.Context, pinID uint64, version int64, userIDs []uint64) (bool, error) {
	vk, sk := c.likeVerKey(pinID), c.likeSetKey(pinID)
	members := make([]any, 0, len(userIDs)+1)
	members = append(members, likeSetPlaceholder)
	for _, id := range userIDs {
		members = append(members, id)
	}
	filled := false
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, sk)
			p.SAdd(ctx, sk, members...)
			p.Expire(ctx, sk, c.likeSetTTL)
			return nil
		})
		if err == nil {
			filled = true
		}
		return err
	}, vk)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return filled, err
}

// bumpCount WATCH 计数 key，只在已缓存且结果不为负时修改
func (c *LikeCache) bumpCount(ctx context.Context, pinID uint64, delta int64) error {
	ck := c.likeCntKey(pinID)
	return c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, ck).Int64()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if val+delta < 0 {
			// 交给对账兜底
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Del(ctx, ck)
				return nil
			})
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.IncrBy(ctx, ck, delta)
			p.Expire(ctx, ck, c.likeCntTTL)
			return nil
		})
		return err
	}, ck)
}

// IsLikedCached 第二个返回值表示缓存是否命中
func (c *LikeCache) IsLikedCached(ctx context.Context, userID, pinID uint64) (bool, bool, error) {
	k := c.likeSetKey(pinID)
	exists, err := c.rdb.Exists(ctx, k).Result()
	if err != nil {
		return false, false, err
	}
	if exists == 0 {
		return false, false, nil
	}
	b, err := c.rdb.SIsMember(ctx, k, userID).Result()
	return b, true, err
}

func (c *LikeCache) GetLikeCountCached(ctx context.Context, pinID uint64) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, c.likeCntKey(pinID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	return val, err == nil, err
}

// SetLikeCount 回填点赞数
func (c *LikeCache) SetLikeCount(ctx context.Context, pinID uint64, cnt int64) error {
	return c.rdb.Set(ctx, c.likeCntKey(pinID), cnt, c.likeCntTTL).Err()
}

// WarmIsLiked 惰性回填：只在集合已存在时写，避免无界扩张
func (c *LikeCache) WarmIsLiked(ctx context.Context, userID, pinID uint64, liked bool) {
	k := c.likeSetKey(pinID)
	if ok, _ := c.rdb.Exists(ctx, k).Result(); ok > 0 {
		if liked {
			_ = c.rdb.SAdd(ctx, k, userID).Err()
		} else {
			_ = c.rdb.SRem(ctx, k, userID).Err()
		}
		_ = c.rdb.Expire(ctx, k, c.likeSetTTL).Err()
	}
}

// DeleteCount 删除计数缓存
func (c *LikeCache) DeleteCount(ctx context.Context, pinID uint64) error {
	if err := c.rdb.Del(ctx, c.likeCntKey(pinID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Forget pin 删除后清掉所有缓存
func (c *LikeCache) Forget(ctx context.Context, pinID uint64) error {
	return c.rdb.Del(ctx, c.likeSetKey(pinID), c.likeCntKey(pinID), c.likeVerKey(pinID)).Err()
}

// Acquire 请求加分布式锁
func (l *DistLock) Acquire(ctx context.Context, pinID uint64, token string) (bool, error) {
	key := fmt.Sprintf("%s:%d", LockKeyPrefix, pinID)
	return l.RDB.SetNX(ctx, key, token, l.TTL).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Release 只释放自己持有的锁
func (l *DistLock) Release(ctx context.Context, pinID uint64, token string) error {
	key := fmt.Sprintf("%s:%d", LockKeyPrefix, pinID)
	return releaseScript.Run(ctx, l.RDB, []string{key}, token).Err()
}
