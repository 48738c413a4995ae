package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/instrument-market/internal/model"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	FindOrCreateByFirebaseUID(ctx context.Context, uid, email, displayName string) (*model.User, error)
	Exists(ctx context.Context, column, value string) (bool, error)
	Update(ctx context.Context, id uint64, fields map[string]interface{}) error
	Count(ctx context.Context, since *time.Time) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	return conn(ctx, r.db).Create(u).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	if err := conn(ctx, r.db).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) findBy(ctx context.Context, column, value string) (*model.User, error) {
	var u model.User
	if err := conn(ctx, r.db).Where(column+" = ?", value).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findBy(ctx, "username", username)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findBy(ctx, "email", email)
}

func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.findBy(ctx, "phone", phone)
}

// FindOrCreateByFirebaseUID provisions a local account the first time a
// Firebase identity is seen.
func (r *userRepository) FindOrCreateByFirebaseUID(ctx context.Context, uid, email, displayName string) (*model.User, error) {
	u, err := r.findBy(ctx, "firebase_uid", uid)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	username := "fb_" + uid
	if len(username) > 50 {
		username = username[:50]
	}
	if email == "" {
		email = uid + "@firebase.local"
	}
	fbUID := uid
	u = &model.User{
		Username:    username,
		Email:       email,
		RealName:    displayName,
		Role:        model.UserRoleUser,
		CreditScore: 100,
		IsVerified:  true,
		FirebaseUID: &fbUID,
	}
	if err := conn(ctx, r.db).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepository) Exists(ctx context.Context, column, value string) (bool, error) {
	var cnt int64
	if err := conn(ctx, r.db).Model(&model.User{}).Where(column+" = ?", value).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *userRepository) Update(ctx context.Context, id uint64, fields map[string]interface{}) error {
	res := conn(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) Count(ctx context.Context, since *time.Time) (int64, error) {
	var cnt int64
	q := conn(ctx, r.db).Model(&model.User{})
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	if err := q.Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}
