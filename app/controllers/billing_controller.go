package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sellora/sellora/internal/pkg/billing"
	"github.com/sellora/sellora/internal/pkg/database"
)

var requestValidator = validator.New()

type subscribeRequest struct {
	PlanID           string `json:"plan_id" validate:"required,oneof=free pro business"`
	PaymentMethodRef string `json:"payment_method_ref"`
}

type changePlanRequest struct {
	PlanID               string `json:"plan_id" validate:"required,oneof=free pro business"`
	EffectiveImmediately bool   `json:"effective_immediately"`
}

type cancelRequest struct {
	Immediate bool `json:"immediate"`
}

// HandleGetSubscription returns the seller's subscription state.
func HandleGetSubscription(c *fiber.Ctx) error {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return nil
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.GetSubscription(sellerID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Seller has no subscription"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}
	return c.JSON(sub)
}

// HandleSubscribe opens a subscription for a seller. Paid plans may return a
// pending_auth_token when the provider requires additional authentication.
func HandleSubscribe(c *fiber.Ctx) error {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return nil
	}

	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := requestValidator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, pendingAuthToken, err := svc.CreateSubscription(c.UserContext(), sellerID, req.PlanID, req.PaymentMethodRef)
	if err != nil {
		return subscriptionError(c, err)
	}

	resp := fiber.Map{"subscription": sub}
	if pendingAuthToken != "" {
		resp["pending_auth_token"] = pendingAuthToken
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// HandleChangePlan moves a seller to another plan.
func HandleChangePlan(c *fiber.Ctx) error {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return nil
	}

	var req changePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := requestValidator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.ChangeSubscription(c.UserContext(), sellerID, req.PlanID, req.EffectiveImmediately)
	if err != nil {
		return subscriptionError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": sub})
}

// HandleCancelSubscription cancels immediately or at period end.
func HandleCancelSubscription(c *fiber.Ctx) error {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return nil
	}

	var req cancelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.CancelSubscription(c.UserContext(), sellerID, req.Immediate)
	if err != nil {
		return subscriptionError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": sub})
}

func sellerIDParam(c *fiber.Ctx) (uint, bool) {
	id, err := c.ParamsInt("sellerID")
	if err != nil || id <= 0 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid seller id"})
		return 0, false
	}
	return uint(id), true
}

func subscriptionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, billing.ErrSubscriptionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Seller or subscription not found"})
	case errors.Is(err, billing.ErrAlreadySubscribed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Seller already has a live subscription"})
	case errors.Is(err, billing.ErrSubscriptionCanceled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Subscription is canceled"})
	case billing.IsProviderError(err):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "The payment provider rejected the request. No changes were made; please retry."})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update subscription"})
	}
}
