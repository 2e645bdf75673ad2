package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sellora/sellora/app/models"
	"github.com/sellora/sellora/internal/pkg/database"
	"github.com/sellora/sellora/internal/pkg/notification"
	"github.com/sellora/sellora/internal/pkg/usage"
)

type createProductRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=5000"`
	PriceCents  int64  `json:"price_cents" validate:"gte=0"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	StorageMB   int64  `json:"storage_mb" validate:"gte=0"`
}

// HandleCreateProduct creates a product after the plan-limit check passes.
// The limit check runs before the row is committed.
func HandleCreateProduct(c *fiber.Ctx) error {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return nil
	}

	var req createProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := requestValidator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	db := database.GetDB()
	meter := usage.NewMeterFromDB(db, notification.NewSink(db))
	if decision := meter.CanPerformAction(sellerID, "create_product"); !decision.Allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "limit_exceeded", "message": decision.Reason})
	}

	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}
	product := &models.Product{
		SellerID:    sellerID,
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    currency,
		StorageMB:   req.StorageMB,
		Status:      models.ProductStatusActive,
	}
	if err := db.Create(product).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create product"})
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}
