package services

import (
	"context"
	"github.com/shopspring/decimal"
	"paygate/entity"
)

// Provider is the Express Checkout API. Errors distinguish transport failures from
// negative acknowledgements; neither is retried.
type Provider interface {
	// Initiate opens a checkout for one item and returns the token identifying it.
	Initiate(ctx context.Context, amount decimal.Decimal, name, returnUrl, cancelUrl string) (string, error)
	// FetchStatus reports the provider-side state of a checkout.
	FetchStatus(ctx context.Context, token string) (*entity.CheckoutDetails, error)
	// Capture completes the payment approved by payerId and returns the transaction id.
	Capture(ctx context.Context, token, payerId string, amount decimal.Decimal, name string) (string, error)
}

type Catalog interface {
	Lookup(name string) (entity.Resource, error)
}
