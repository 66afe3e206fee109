package sqlstore

import (
	"context"

	"gorm.io/gorm"

	"PinSocial/internal/model"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// Create 用户名或邮箱重复时返回 ErrDuplicate
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return translate(r.DB.WithContext(ctx).Create(user).Error)
}

// FindByLogin 用户名或邮箱登录
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("username = ? OR email = ?", login, login).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByIDs 批量取用户，列表接口补全资料用
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uint64) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []model.User
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID uint64, hash string) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Update("password", hash).Error
}

// UpdateSettings 只更新传入的字段
func (r *UserRepository) UpdateSettings(ctx context.Context, userID uint64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 注销用户，级联删除关系、申请、pin、点赞、评论，并修正其他用户和 pin 上的计数
// DeletedFootprint 删除账号影响到的 pin，提交后用来清缓存
type DeletedFootprint struct {
	LikedPinIDs []uint64 // 点赞数被减过的
	OwnedPinIDs []uint64 // 随账号一起删除的
}

func (r *UserRepository) Delete(ctx context.Context, userID uint64) (*DeletedFootprint, error) {
	fp := &DeletedFootprint{}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.User{}, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		// 被该用户关注的人粉丝数 -1
		followings := tx.Model(&model.Follow{}).Select("following_id").Where("follower_id = ?", userID)
		if err := tx.Model(&model.User{}).Where("id IN (?)", followings).
			UpdateColumn("follower_count", clampedAdd("follower_count", -1)).Error; err != nil {
			return err
		}
		// 该用户的粉丝关注数 -1
		followers := tx.Model(&model.Follow{}).Select("follower_id").Where("following_id = ?", userID)
		if err := tx.Model(&model.User{}).Where("id IN (?)", followers).
			UpdateColumn("following_count", clampedAdd("following_count", -1)).Error; err != nil {
			return err
		}
		if err := tx.Where("follower_id = ? OR following_id = ?", userID, userID).
			Delete(&model.Follow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sender_id = ? OR receiver_id = ?", userID, userID).
			Delete(&model.FollowRequest{}).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.PinLike{}).Where("user_id = ?", userID).
			Pluck("pin_id", &fp.LikedPinIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Pin{}).Where("author_id = ?", userID).
			Pluck("id", &fp.OwnedPinIDs).Error; err != nil {
			return err
		}
		// 该用户点过赞的 pin 计数 -1
		if len(fp.LikedPinIDs) > 0 {
			if err := tx.Model(&model.Pin{}).Where("id IN ?", fp.LikedPinIDs).
				UpdateColumn("like_count", clampedAdd("like_count", -1)).Error; err != nil {
				return err
			}
		}
		owned := tx.Model(&model.Pin{}).Select("id").Where("author_id = ?", userID)
		if err := tx.Where("user_id = ? OR pin_id IN (?)", userID, owned).
			Delete(&model.PinLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ? OR pin_id IN (?)", userID, owned).
			Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		return tx.Where("author_id = ?", userID).Delete(&model.Pin{}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return fp, nil
}
