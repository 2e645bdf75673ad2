package usage

import (
	"errors"
	"time"

	"github.com/sellora/sellora/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the counts and upserts the meter needs.
type Repository interface {
	GetSellerPlan(sellerID uint) (string, error)
	CountActiveProducts(sellerID uint) (int64, error)
	CountOrdersInPeriod(sellerID uint, start, end time.Time) (int64, error)
	SumProductStorageMB(sellerID uint) (int64, error)
	UpsertUsageRecord(rec *models.UsageRecord) error
	GetUsageRecord(sellerID uint, periodStart time.Time) (*models.UsageRecord, error)
	ListActiveSellerIDs() ([]uint, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a usage repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// GetSellerPlan resolves the seller's effective plan from the live
// subscription. Sellers without a subscription row meter against free.
func (r *gormRepository) GetSellerPlan(sellerID uint) (string, error) {
	var sub models.Subscription
	err := r.db.Where("seller_id = ?", sellerID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "free", nil
	}
	if err != nil {
		return "", err
	}
	if !sub.IsLive() {
		return "free", nil
	}
	return sub.PlanID, nil
}

func (r *gormRepository) CountActiveProducts(sellerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Product{}).
		Where("seller_id = ? AND status = ?", sellerID, models.ProductStatusActive).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) CountOrdersInPeriod(sellerID uint, start, end time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Order{}).
		Where("seller_id = ? AND created_at >= ? AND created_at < ?", sellerID, start, end).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) SumProductStorageMB(sellerID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.Product{}).
		Where("seller_id = ? AND status = ?", sellerID, models.ProductStatusActive).
		Select("COALESCE(SUM(storage_mb), 0)").
		Scan(&total).Error
	return total, err
}

func (r *gormRepository) UpsertUsageRecord(rec *models.UsageRecord) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "seller_id"},
			{Name: "period_start"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"period_end",
			"products_used",
			"orders_processed",
			"storage_used_mb",
			"limit_exceeded",
			"warnings_sent",
			"updated_at",
		}),
	}).Create(rec).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("seller_id = ? AND period_start = ?", rec.SellerID, rec.PeriodStart).
		First(rec).Error
}

func (r *gormRepository) GetUsageRecord(sellerID uint, periodStart time.Time) (*models.UsageRecord, error) {
	var rec models.UsageRecord
	err := r.db.Where("seller_id = ? AND period_start = ?", sellerID, periodStart).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) ListActiveSellerIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Seller{}).
		Where("status = ?", models.SellerStatusActive).
		Pluck("id", &ids).Error
	return ids, err
}
