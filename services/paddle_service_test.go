package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/PaddleHQ/paddle-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"venuePresenceAPI/internal/types/credit"
)

type fakeTransactions struct {
	last *paddle.CreateTransactionRequest
	err  error
}

func (f *fakeTransactions) CreateTransaction(_ context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &paddle.Transaction{ID: "txn_01"}, nil
}

type mockGranter struct {
	mock.Mock
}

func (m *mockGranter) RecordPaidPurchase(ctx context.Context, userID string, amount int, price float64, ref string) (bool, error) {
	args := m.Called(ctx, userID, amount, price, ref)
	return args.Bool(0), args.Error(1)
}

var testPacks = map[string]credit.Pack{
	"pri_big":   {PriceID: "pri_big", Credits: 50, Price: 19.99},
	"pri_small": {PriceID: "pri_small", Credits: 10, Price: 4.99},
}

func TestPaddleService_CreateCheckout(t *testing.T) {
	tx := &fakeTransactions{}
	svc := NewPaddleService(tx, testPacks, &mockGranter{}, true, nil)

	resp, err := svc.CreateCheckout(context.Background(), "user_1", "pri_small")
	require.NoError(t, err)
	assert.Equal(t, "txn_01", resp.TransactionID)
	assert.Equal(t, "https://sandbox-checkout.paddle.com/checkout/custom?_ptxn=txn_01", resp.CheckoutURL)

	require.NotNil(t, tx.last)
	assert.Equal(t, "user_1", tx.last.CustomData["userId"])
	assert.NotContains(t, tx.last.CustomData, "credits")
	assert.Len(t, tx.last.Items, 1)
}

func TestPaddleService_CreateCheckoutRejections(t *testing.T) {
	tx := &fakeTransactions{}
	svc := NewPaddleService(tx, testPacks, &mockGranter{}, false, nil)

	_, err := svc.CreateCheckout(context.Background(), "user_1", "pri_unknown")
	assert.ErrorIs(t, err, ErrUnknownPack)
	_, err = svc.CreateCheckout(context.Background(), "", "pri_small")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, tx.last)

	tx.err = errors.New("paddle unavailable")
	_, err = svc.CreateCheckout(context.Background(), "user_1", "pri_small")
	assert.Error(t, err)
}

func TestPaddleService_PacksSortedByCredits(t *testing.T) {
	svc := NewPaddleService(&fakeTransactions{}, testPacks, &mockGranter{}, false, nil)

	packs := svc.Packs()
	require.Len(t, packs, 2)
	assert.Equal(t, "pri_small", packs[0].PriceID)
}

func TestPaddleService_GrantFromTransactionReadsWebhookPayload(t *testing.T) {
	svc := NewPaddleService(&fakeTransactions{}, testPacks, &mockGranter{}, false, nil)
	var tx paddle.Transaction
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "txn_01",
		"items": [{"price": {"id": "pri_big"}, "quantity": 1}],
		"custom_data": {"userId": "user_1"}
	}`), &tx))

	grant, err := svc.GrantFromTransaction(&tx)
	require.NoError(t, err)
	assert.Equal(t, &credit.Grant{UserID: "user_1", Credits: 50, Price: 19.99, TransactionID: "txn_01"}, grant)
}

func TestPaddleService_GrantFromTransactionIgnoresClientAmounts(t *testing.T) {
	svc := NewPaddleService(&fakeTransactions{}, testPacks, &mockGranter{}, false, nil)
	tx := &paddle.Transaction{
		ID:         "txn_02",
		Items:      []paddle.TransactionItem{{PriceID: "pri_small", Quantity: 2}},
		CustomData: paddle.CustomData{"userId": "user_1", "credits": 5000.0, "price": 0.01},
	}

	grant, err := svc.GrantFromTransaction(tx)
	require.NoError(t, err)
	assert.Equal(t, 20, grant.Credits)
	assert.InDelta(t, 9.98, grant.Price, 0.0001)
}

func TestPaddleService_GrantFromTransactionUnattributed(t *testing.T) {
	svc := NewPaddleService(&fakeTransactions{}, testPacks, &mockGranter{}, false, nil)
	small := []paddle.TransactionItem{{Price: paddle.Price{ID: "pri_small"}, Quantity: 1}}

	cases := map[string]*paddle.Transaction{
		"nil":           nil,
		"no data":       {ID: "txn", Items: small},
		"no user":       {ID: "txn", Items: small, CustomData: paddle.CustomData{"credits": 10.0}},
		"no items":      {ID: "txn", CustomData: paddle.CustomData{"userId": "user_1"}},
		"unknown price": {ID: "txn", Items: []paddle.TransactionItem{{PriceID: "pri_free", Quantity: 1}}, CustomData: paddle.CustomData{"userId": "user_1"}},
	}
	for name, tx := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.GrantFromTransaction(tx)
			assert.ErrorIs(t, err, ErrUnattributed)
		})
	}
}

func TestPaddleService_ApplyPaidTransaction(t *testing.T) {
	granter := &mockGranter{}
	granter.On("RecordPaidPurchase", mock.Anything, "user_1", 10, 4.99, "txn_01").Return(true, nil).Once()
	granter.On("RecordPaidPurchase", mock.Anything, "user_1", 10, 4.99, "txn_01").Return(false, nil).Once()
	svc := NewPaddleService(&fakeTransactions{}, testPacks, granter, false, nil)
	tx := &paddle.Transaction{
		ID:         "txn_01",
		Items:      []paddle.TransactionItem{{Price: paddle.Price{ID: "pri_small"}, Quantity: 1}},
		CustomData: paddle.CustomData{"userId": "user_1"},
	}

	first, err := svc.ApplyPaidTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.True(t, first)

	replay, err := svc.ApplyPaidTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.False(t, replay)
	granter.AssertExpectations(t)
}
