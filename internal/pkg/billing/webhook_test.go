package billing

import (
	"testing"
	"time"
)

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		in   string
		want EventKind
		ok   bool
	}{
		{in: "subscription.created", want: EventSubscriptionCreated, ok: true},
		{in: "subscription.updated", want: EventSubscriptionUpdated, ok: true},
		{in: "SUBSCRIPTION.DELETED", want: EventSubscriptionDeleted, ok: true},
		{in: " invoice.payment_succeeded ", want: EventPaymentSucceeded, ok: true},
		{in: "invoice.payment_failed", want: EventPaymentFailed, ok: true},
		{in: "customer.created", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseEventKind(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseEventKind(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDecodeWebhookEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_abc",
		"type": "subscription.updated",
		"data": {
			"subscription": {
				"id": "sub_9",
				"status": "Active",
				"price": "price_pro_monthly",
				"current_period_start": 1735689600,
				"current_period_end": 1738368000,
				"cancel_at_period_end": true
			}
		},
		"metadata": {"seller_ref": "pub-42"}
	}`)

	ev, err := DecodeWebhookEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ID != "evt_abc" || ev.Kind != EventSubscriptionUpdated {
		t.Fatalf("unexpected envelope: id=%s kind=%s", ev.ID, ev.Kind)
	}
	if ev.SellerRef != "pub-42" || ev.SubscriptionRef != "sub_9" {
		t.Fatalf("refs not extracted: seller=%s sub=%s", ev.SellerRef, ev.SubscriptionRef)
	}
	if ev.Status != "active" || ev.PriceRef != "price_pro_monthly" {
		t.Fatalf("subscription fields not extracted: %+v", ev)
	}
	if ev.CancelAtPeriodEnd == nil || !*ev.CancelAtPeriodEnd {
		t.Fatalf("cancel_at_period_end not extracted: %+v", ev.CancelAtPeriodEnd)
	}
	wantStart := time.Unix(1735689600, 0).UTC()
	if ev.CurrentPeriodStart == nil || !ev.CurrentPeriodStart.Equal(wantStart) {
		t.Fatalf("period start = %v, want %v", ev.CurrentPeriodStart, wantStart)
	}
}

func TestDecodeWebhookEvent_InvoiceFallsBackToInvoiceSubscription(t *testing.T) {
	payload := []byte(`{
		"id": "evt_inv",
		"type": "invoice.payment_failed",
		"data": {
			"invoice": {"id": "inv_1", "subscription": "sub_77"}
		},
		"metadata": {"seller_ref": "pub-42"}
	}`)

	ev, err := DecodeWebhookEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.SubscriptionRef != "sub_77" {
		t.Fatalf("expected invoice subscription ref, got %q", ev.SubscriptionRef)
	}
	if ev.CancelAtPeriodEnd != nil {
		t.Fatalf("omitted cancel_at_period_end must decode as absent, got %v", *ev.CancelAtPeriodEnd)
	}
}

func TestDecodeWebhookEvent_MissingSellerRefIsDecodable(t *testing.T) {
	payload := []byte(`{"id": "evt_1", "type": "subscription.deleted", "data": {}}`)

	ev, err := DecodeWebhookEvent(payload)
	if err != nil {
		t.Fatalf("missing seller ref must decode, policy lives in the reconciler: %v", err)
	}
	if ev.SellerRef != "" {
		t.Fatalf("expected empty seller ref, got %q", ev.SellerRef)
	}
}

func TestDecodeWebhookEvent_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "malformed json", payload: `{"id": "evt`},
		{name: "unknown type", payload: `{"id": "evt_1", "type": "customer.created"}`},
		{name: "missing id", payload: `{"type": "subscription.updated"}`},
	}

	for _, tt := range tests {
		if _, err := DecodeWebhookEvent([]byte(tt.payload)); err == nil {
			t.Fatalf("%s: expected a decode error", tt.name)
		}
	}
}
