package credit

import (
	"time"
)

type EntryType string

const (
	TypePurchase EntryType = "purchase"
	TypeDebit    EntryType = "debit"
	TypeRefund   EntryType = "refund"
)

// Entry is one signed row in the append-only credit ledger. Purchases are
// positive, debits negative; the balance is the sum of all amounts.
type Entry struct {
	ID          string    `db:"id"           json:"id"`
	UserID      string    `db:"user_id"      json:"user_id"`
	Amount      int       `db:"amount"       json:"amount"`
	Price       float64   `db:"price"        json:"price"`
	Type        EntryType `db:"entry_type"   json:"type"`
	ExternalRef *string   `db:"external_ref" json:"external_ref,omitempty"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

// Pack is a purchasable bundle of credits bound to a payment provider price.
type Pack struct {
	PriceID string  `json:"price_id"`
	Credits int     `json:"credits"`
	Price   float64 `json:"price"`
}

type BalanceResponse struct {
	Balance int `json:"balance"`
}

type CheckoutRequest struct {
	PriceID string `json:"price_id"`
}

type CheckoutResponse struct {
	TransactionID string `json:"transaction_id"`
	CheckoutURL   string `json:"checkout_url"`
}

// Grant is the credit purchase a paid transaction entitles its buyer to.
type Grant struct {
	UserID        string
	Credits       int
	Price         float64
	TransactionID string
}
