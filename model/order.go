package model

import "time"

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "CASH"
	PaymentCard    PaymentMethod = "CARD"
	PaymentMomo    PaymentMethod = "MOMO"
	PaymentVNPay   PaymentMethod = "VNPAY"
	PaymentZaloPay PaymentMethod = "ZALOPAY"
)

var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentMomo, PaymentVNPay, PaymentZaloPay}

type PayerInfo struct {
	Name  string `json:"customer_name" validate:"required"`
	Phone string `json:"phone" validate:"required,phone"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type Order struct {
	Code          string        `json:"orderCode"`
	SeatIDs       []SeatID      `json:"seatIds"`
	Amount        float64       `json:"totalAmount"`
	Payer         PayerInfo     `json:"payer"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`
	Tickets       []Ticket      `json:"tickets"`
}

type Ticket struct {
	Code      string `json:"ticketCode"`
	SeatLabel string `json:"seatLabel"`
	QRPayload string `json:"qrPayload"`
}
