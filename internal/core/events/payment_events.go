package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentSubmitted     = "payment.submitted"
	EventTypePaymentStatusChanged = "payment.status_changed"
	EventTypePaymentResolved      = "payment.resolved"
	EventTypePaymentPollFailing   = "payment.poll_failing"
)

type PaymentSubmittedEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	Name      string `json:"name"`
	CPF       string `json:"cpf"`
	Amount    int64  `json:"amount"`
}

func NewPaymentSubmittedEvent(paymentID, name, cpf string, amount int64) *PaymentSubmittedEvent {
	return &PaymentSubmittedEvent{
		BaseEvent: newBase(EventTypePaymentSubmitted, map[string]interface{}{
			"payment_id": paymentID,
			"amount":     amount,
		}),
		PaymentID: paymentID,
		Name:      name,
		CPF:       cpf,
		Amount:    amount,
	}
}

type PaymentStatusChangedEvent struct {
	BaseEvent
	PaymentID      string `json:"payment_id"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
}

func NewPaymentStatusChangedEvent(paymentID, previous, status string) *PaymentStatusChangedEvent {
	return &PaymentStatusChangedEvent{
		BaseEvent: newBase(EventTypePaymentStatusChanged, map[string]interface{}{
			"payment_id":      paymentID,
			"previous_status": previous,
			"status":          status,
		}),
		PaymentID:      paymentID,
		PreviousStatus: previous,
		Status:         status,
	}
}

type PaymentResolvedEvent struct {
	BaseEvent
	PaymentID  string    `json:"payment_id"`
	Status     string    `json:"status"`
	Amount     int64     `json:"amount"`
	Attempts   int       `json:"attempts"`
	ResolvedAt time.Time `json:"resolved_at"`
}

func NewPaymentResolvedEvent(paymentID, status string, amount int64, attempts int, resolvedAt time.Time) *PaymentResolvedEvent {
	return &PaymentResolvedEvent{
		BaseEvent: newBase(EventTypePaymentResolved, map[string]interface{}{
			"payment_id":  paymentID,
			"status":      status,
			"amount":      amount,
			"attempts":    attempts,
			"resolved_at": resolvedAt,
		}),
		PaymentID:  paymentID,
		Status:     status,
		Amount:     amount,
		Attempts:   attempts,
		ResolvedAt: resolvedAt,
	}
}

type PaymentPollFailingEvent struct {
	BaseEvent
	PaymentID         string `json:"payment_id"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
	LastError         string `json:"last_error"`
}

func NewPaymentPollFailingEvent(paymentID string, consecutiveErrors int, lastError string) *PaymentPollFailingEvent {
	return &PaymentPollFailingEvent{
		BaseEvent: newBase(EventTypePaymentPollFailing, map[string]interface{}{
			"payment_id":         paymentID,
			"consecutive_errors": consecutiveErrors,
			"last_error":         lastError,
		}),
		PaymentID:         paymentID,
		ConsecutiveErrors: consecutiveErrors,
		LastError:         lastError,
	}
}

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}
