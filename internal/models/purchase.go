package models

import "github.com/shopspring/decimal"

type PurchaseRequest struct {
	TicketClassID int64  `json:"ticket_class_id"`
	DiscountCode  string `json:"discount_code,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

type PurchaseResponse struct {
	OrderID    string          `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
	PaymentURL string          `json:"payment_url"`
}

type CheckInRequest struct {
	TicketCode string `json:"ticket_code"`
}

type CheckInResponse struct {
	TicketCode    string `json:"ticket_code"`
	UserName      string `json:"user"`
	EventName     string `json:"event"`
	TicketClass   string `json:"ticket_class"`
	CheckedInTime string `json:"check_in_time"`
}

type SessionStatusResponse struct {
	OrderID  string        `json:"order_id"`
	Status   PaymentStatus `json:"status"`
	TicketID string        `json:"ticket_id,omitempty"`
}
