package notification

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sellora/sellora/app/models"
	"github.com/sellora/sellora/internal/pkg/mail"
	"gorm.io/gorm"
)

// Sink delivers seller-facing notifications. Send is fire-and-forget; a
// failed delivery is logged and never propagated to the calling path.
type Sink interface {
	Send(sellerID uint, kind string, payload map[string]interface{})
}

type dbSink struct {
	db *gorm.DB
}

// NewSink returns a sink that persists notifications for in-app display.
func NewSink(db *gorm.DB) Sink {
	return &dbSink{db: db}
}

func (s *dbSink) Send(sellerID uint, kind string, payload map[string]interface{}) {
	buf, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("[Notification] failed to encode %s payload for seller %d: %v", kind, sellerID, err)
		return
	}
	if err := models.CreateNotification(s.db, sellerID, kind, string(buf)); err != nil {
		log.Errorf("[Notification] failed to deliver %s to seller %d: %v", kind, sellerID, err)
		return
	}
	log.Debugf("[Notification] delivered %s to seller %d", kind, sellerID)

	s.sendEmail(sellerID, kind, string(buf))
}

// sendEmail mirrors the notification to the seller's inbox when SMTP is
// configured. Failures stay best-effort.
func (s *dbSink) sendEmail(sellerID uint, kind string, payload string) {
	if !mail.IsConfigured() {
		return
	}

	var seller models.Seller
	if err := s.db.First(&seller, sellerID).Error; err != nil {
		log.Errorf("[Notification] failed to load seller %d for email: %v", sellerID, err)
		return
	}

	subject, body := renderEmail(kind, payload)
	if err := mail.SendMail(seller.Email, subject, body); err != nil {
		log.Errorf("[Notification] failed to email %s to seller %d: %v", kind, sellerID, err)
	}
}

func renderEmail(kind, payload string) (string, string) {
	switch kind {
	case models.NotificationKindUsageWarning:
		return "You are approaching your plan limits", "<p>Your store is close to one or more limits of your current plan.</p>"
	case models.NotificationKindLimitExceeded:
		return "Plan limit exceeded", "<p>Your store has exceeded a limit of your current plan. Please upgrade to continue growing.</p>"
	case models.NotificationKindGraceStarted:
		return "Payment failed", "<p>Your last payment failed. Your plan benefits continue for a limited time while we retry.</p>"
	case models.NotificationKindGraceEnded:
		return "Subscription downgraded", "<p>We could not collect your payment and your store was moved to the free plan.</p>"
	default:
		return fmt.Sprintf("Account notice: %s", kind), fmt.Sprintf("<pre>%s</pre>", payload)
	}
}

// NopSink discards all notifications. Used in tests and tools that do not
// deliver to sellers.
type NopSink struct{}

func (NopSink) Send(sellerID uint, kind string, payload map[string]interface{}) {}
