package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
)

type Card struct {
	Number   string `json:"number" validate:"required,credit_card"`
	ExpMonth int    `json:"expMonth" validate:"required,min=1,max=12"`
	ExpYear  int    `json:"expYear" validate:"required,gte=2000,lte=2100"`
	CVC      string `json:"cvc" validate:"required,numeric,min=3,max=4"`
}

// Expired reports whether the card's expiry month lies before now.
func (c Card) Expired(now time.Time) bool {
	y, m := now.Year(), int(now.Month())
	return c.ExpYear < y || (c.ExpYear == y && c.ExpMonth < m)
}

type Billing struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
}

type PaymentMethod struct {
	ID string `json:"id"`
}

// Tokenizer turns raw card data into a provider handle. Card numbers never
// reach the hostel API.
type Tokenizer interface {
	CreatePaymentMethod(ctx context.Context, card Card, billing Billing) (PaymentMethod, error)
}

// ProviderTokenizer posts card data to the payment provider with the
// publishable key.
type ProviderTokenizer struct {
	api *apiclient.Client
}

func NewProviderTokenizer(baseURL, publishableKey string) (*ProviderTokenizer, error) {
	if publishableKey == "" {
		return nil, errors.New("payment: publishable key is required")
	}
	api, err := apiclient.New(apiclient.Config{
		BaseURL: baseURL,
		Header:  http.Header{"Authorization": {"Bearer " + publishableKey}},
	})
	if err != nil {
		return nil, fmt.Errorf("payment: %w", err)
	}
	return &ProviderTokenizer{api: api}, nil
}

func (t *ProviderTokenizer) CreatePaymentMethod(ctx context.Context, card Card, billing Billing) (PaymentMethod, error) {
	form := url.Values{
		"type":                   {"card"},
		"card[number]":           {card.Number},
		"card[exp_month]":        {strconv.Itoa(card.ExpMonth)},
		"card[exp_year]":         {strconv.Itoa(card.ExpYear)},
		"card[cvc]":              {card.CVC},
		"billing_details[email]": {billing.Email},
		"billing_details[name]":  {billing.Name},
	}
	var pm PaymentMethod
	if err := t.api.Do(ctx, http.MethodPost, "/v1/payment_methods", nil, form, &pm); err != nil {
		return pm, fmt.Errorf("create payment method: %w", err)
	}
	if pm.ID == "" {
		return pm, errors.New("create payment method: empty id")
	}
	return pm, nil
}
