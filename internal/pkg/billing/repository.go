package billing

import (
	"errors"
	"time"

	"github.com/sellora/sellora/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing services. Writes to a
// seller's subscription are serialized per seller via row-level locking.
type Repository interface {
	GetSellerByID(id uint) (*models.Seller, error)
	GetSellerByPublicID(publicID string) (*models.Seller, error)
	GetSubscriptionBySeller(sellerID uint) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	UpdateSubscriptionLocked(sellerID uint, fn func(sub *models.Subscription) error) (*models.Subscription, error)
	CreateBillingEventIfNotExists(event *models.BillingEvent) (bool, *models.BillingEvent, error)
	AppendBillingEvent(event *models.BillingEvent) error
	MarkBillingEventProcessed(id uint, processingError string) error
	CreatePlanChangeRequest(req *models.PlanChangeRequest) error
	ListExpiredGraceSellerIDs(now time.Time) ([]uint, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetSellerByID(id uint) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.First(&seller, id).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *gormRepository) GetSellerByPublicID(publicID string) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.Where("public_id = ?", publicID).First(&seller).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *gormRepository) GetSubscriptionBySeller(sellerID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("seller_id = ?", sellerID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// UpdateSubscriptionLocked loads the seller's subscription FOR UPDATE inside
// a transaction, applies fn and saves. Concurrent webhook reconciliation and
// user-initiated changes for the same seller serialize on the row lock.
func (r *gormRepository) UpdateSubscriptionLocked(sellerID uint, fn func(sub *models.Subscription) error) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("seller_id = ?", sellerID).
			First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriptionNotFound
		}
		if err != nil {
			return err
		}
		if err := fn(&sub); err != nil {
			return err
		}
		return tx.Save(&sub).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateBillingEventIfNotExists(event *models.BillingEvent) (bool, *models.BillingEvent, error) {
	if event.ExternalEventID == nil {
		if err := r.db.Create(event).Error; err != nil {
			return false, nil, err
		}
		return true, event, nil
	}

	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingEvent
	if err := r.db.Where("external_event_id = ?", *event.ExternalEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) AppendBillingEvent(event *models.BillingEvent) error {
	return r.db.Create(event).Error
}

func (r *gormRepository) MarkBillingEventProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) CreatePlanChangeRequest(req *models.PlanChangeRequest) error {
	return r.db.Create(req).Error
}

func (r *gormRepository) ListExpiredGraceSellerIDs(now time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Subscription{}).
		Where("grace_period_end IS NOT NULL AND grace_period_end <= ? AND status = ?", now, models.SubscriptionStatusPastDue).
		Pluck("seller_id", &ids).Error
	return ids, err
}
