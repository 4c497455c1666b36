package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/PaddleHQ/paddle-go-sdk"
	"go.uber.org/zap"

	"venuePresenceAPI/internal/types/credit"
)

// PaddleTransactions is the slice of the Paddle SDK used for checkout.
type PaddleTransactions interface {
	CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)
}

type CreditGranter interface {
	RecordPaidPurchase(ctx context.Context, userID string, amount int, price float64, externalRef string) (bool, error)
}

type PaddleService struct {
	client  PaddleTransactions
	packs   map[string]credit.Pack
	credits CreditGranter
	sandbox bool
	logger  *zap.Logger
}

func NewPaddleService(client PaddleTransactions, packs map[string]credit.Pack, credits CreditGranter, sandbox bool, logger *zap.Logger) *PaddleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaddleService{client: client, packs: packs, credits: credits, sandbox: sandbox, logger: logger}
}

// Packs lists the purchasable credit packs, smallest first.
func (s *PaddleService) Packs() []credit.Pack {
	out := make([]credit.Pack, 0, len(s.packs))
	for _, p := range s.packs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Credits < out[j].Credits })
	return out
}

// CreateCheckout opens a Paddle transaction for the pack. The buyer travels
// in custom data and comes back on the paid webhook.
func (s *PaddleService) CreateCheckout(ctx context.Context, userID, priceID string) (*credit.CheckoutResponse, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	pack, ok := s.packs[priceID]
	if !ok {
		return nil, ErrUnknownPack
	}

	createReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{
			*paddle.NewCreateTransactionItemsCatalogItem(&paddle.CatalogItem{
				Quantity: 1,
				PriceID:  pack.PriceID,
			}),
		},
		CustomData:     paddle.CustomData{"userId": userID},
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
	}

	tx, err := s.client.CreateTransaction(ctx, createReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	s.logger.Info("Created credit checkout",
		zap.String("user_id", userID),
		zap.String("transaction_id", tx.ID),
		zap.Int("credits", pack.Credits),
	)

	return &credit.CheckoutResponse{TransactionID: tx.ID, CheckoutURL: s.checkoutURL(tx.ID)}, nil
}

func (s *PaddleService) checkoutURL(transactionID string) string {
	host := "checkout"
	if s.sandbox {
		host = "sandbox-checkout"
	}
	return fmt.Sprintf("https://%s.paddle.com/checkout/custom?_ptxn=%s", host, transactionID)
}

// GrantFromTransaction prices a paid transaction from the configured packs.
// Only the buyer is taken from custom data; amounts follow the catalog items
// actually charged.
func (s *PaddleService) GrantFromTransaction(tx *paddle.Transaction) (*credit.Grant, error) {
	if tx == nil || tx.CustomData == nil {
		return nil, ErrUnattributed
	}
	userID, _ := tx.CustomData["userId"].(string)
	if userID == "" || len(tx.Items) == 0 {
		return nil, ErrUnattributed
	}

	grant := &credit.Grant{UserID: userID, TransactionID: tx.ID}
	for _, item := range tx.Items {
		priceID := item.Price.ID
		if priceID == "" {
			priceID = item.PriceID
		}
		pack, ok := s.packs[priceID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown price %q", ErrUnattributed, priceID)
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		grant.Credits += pack.Credits * qty
		grant.Price += pack.Price * float64(qty)
	}
	return grant, nil
}

// ApplyPaidTransaction credits the buyer once per transaction. Replays of
// the same webhook report false.
func (s *PaddleService) ApplyPaidTransaction(ctx context.Context, tx *paddle.Transaction) (bool, error) {
	grant, err := s.GrantFromTransaction(tx)
	if err != nil {
		return false, err
	}

	inserted, err := s.credits.RecordPaidPurchase(ctx, grant.UserID, grant.Credits, grant.Price, grant.TransactionID)
	if err != nil {
		return false, err
	}

	if inserted {
		s.logger.Info("Credits granted",
			zap.String("user_id", grant.UserID),
			zap.Int("credits", grant.Credits),
			zap.String("transaction_id", grant.TransactionID),
		)
	} else {
		s.logger.Info("Ignoring replayed payment", zap.String("transaction_id", grant.TransactionID))
	}
	return inserted, nil
}
