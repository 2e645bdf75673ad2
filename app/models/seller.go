package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SellerStatusActive   = "active"
	SellerStatusInactive = "inactive"
	SellerStatusDisabled = "disabled"
)

// Seller is the tenant entity. Every seller owns exactly one store and
// exactly one live Subscription.
type Seller struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	PublicID    string         `gorm:"type:varchar(36);uniqueIndex" json:"public_id"`
	Name        string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email       string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	StoreName   string         `gorm:"type:varchar(150)" json:"store_name" validate:"max=150"`
	Status      string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *Seller) Validate() error {
	v := validator.New()

	return v.Struct(s)
}

// CreateSeller persists a new seller with a generated public ID.
func CreateSeller(db *gorm.DB, name, email, storeName string) (*Seller, error) {
	s := &Seller{
		PublicID:  uuid.New().String(),
		Name:      name,
		Email:     email,
		StoreName: storeName,
		Status:    SellerStatusActive,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := db.Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}
