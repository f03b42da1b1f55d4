package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/atelierzen/booking-backend/internal/domain"
)

// Session price is fixed: 60.00 EUR per slot.
const sessionAmountCents = 6000

// CheckoutClient starts a provider checkout flow for a booking and returns
// the redirect URL plus the session id the webhook will later match on.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, b domain.Booking) (url, sessionID string, err error)
}

type StripeCheckout struct {
	api    *client.API
	appURL string
}

func NewStripeCheckout(secretKey, appURL string) *StripeCheckout {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeCheckout{api: api, appURL: appURL}
}

func (c *StripeCheckout) CreateCheckoutSession(ctx context.Context, b domain.Booking) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyEUR)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Séance %s %s", b.Date, b.Time)),
					},
					UnitAmount: stripe.Int64(sessionAmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(c.appURL + "/success.html"),
		CancelURL:         stripe.String(c.appURL + "/cancel.html"),
		CustomerEmail:     stripe.String(b.Email),
		ClientReferenceID: stripe.String(b.ID.String()),
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", "", err
	}
	return session.URL, session.ID, nil
}
