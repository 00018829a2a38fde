package repository

import (
	"context"
	"errors"

	"github.com/sifan077/PowerQR/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSessionNotFound signals that a shop has no stored offline session.
var ErrSessionNotFound = errors.New("shop session not found")

// SessionRepository stores offline Admin API sessions per shop.
type SessionRepository interface {
	Get(ctx context.Context, shop string) (*model.ShopSession, error)
	Save(ctx context.Context, session *model.ShopSession) error
	Delete(ctx context.Context, shop string) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository returns a GORM-backed SessionRepository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Get(ctx context.Context, shop string) (*model.ShopSession, error) {
	var session model.ShopSession
	if err := r.db.WithContext(ctx).Where("shop = ?", shop).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *model.ShopSession) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop"}},
			DoUpdates: clause.AssignmentColumns([]string{"access_token", "scope", "updated_at"}),
		}).
		Create(session).Error
}

func (r *sessionRepository) Delete(ctx context.Context, shop string) error {
	result := r.db.WithContext(ctx).Where("shop = ?", shop).Delete(&model.ShopSession{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
