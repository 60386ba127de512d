package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig configures the direct Paddle provider used by self-hosted
// installs that run without the remote billing function.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider over the Paddle SDK: transactions for
// hosted checkout links, customer-portal sessions for management links.
type PaddleProvider struct {
	client *paddle.SDK
}

// NewPaddleProvider builds the provider for the configured environment.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("billing: paddle api key is required")
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("billing: invalid paddle environment %q", cfg.Environment)
	}
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	return &PaddleProvider{client: client}, nil
}

// CheckoutURL creates a transaction for the plan's price and returns its
// hosted checkout URL.
func (p *PaddleProvider) CheckoutURL(ctx context.Context, req CheckoutRequest) (string, error) {
	if req.PlanID == "" {
		return "", ErrUnknownPlan
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PlanID,
		Quantity: 1,
	})

	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"account_id": req.AccountID.String(),
		},
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return "", errors.Join(ErrProviderError, err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return "", ErrEmptyURL
	}
	return *tx.Checkout.URL, nil
}

// PortalURL opens a customer-portal session. The account id doubles as the
// Paddle customer id; installs mapping accounts to ctm_ ids should front
// this with their own Provider.
func (p *PaddleProvider) PortalURL(ctx context.Context, req PortalRequest) (string, error) {
	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: req.AccountID.String(),
	})
	if err != nil {
		return "", errors.Join(ErrProviderError, err)
	}
	if session.URLs.General.Overview == "" {
		return "", ErrEmptyURL
	}
	return session.URLs.General.Overview, nil
}
