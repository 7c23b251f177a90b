package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
)

type Payments struct {
	API API
}

func (r *Payments) Resource() string { return ResPayments }

func (r *Payments) List(ctx context.Context, p collection.Params) ([]models.PaymentRecord, error) {
	return list[models.PaymentRecord](ctx, r.API, "/payments", p)
}

func (r *Payments) Count(ctx context.Context, p collection.Params) (int, error) {
	return count(ctx, r.API, "/payments", p)
}

// CreateIntent opens a payment intent for price and returns its client secret.
func (r *Payments) CreateIntent(ctx context.Context, price float64) (string, error) {
	if price <= 0 {
		return "", fmt.Errorf("%w: price must be positive", models.ErrInvalid)
	}
	var out struct {
		ClientSecret string `json:"clientSecret"`
	}
	if err := r.API.Do(ctx, http.MethodPost, "/create-payment-intent", nil, map[string]float64{"price": price}, &out); err != nil {
		return "", wrap("create payment intent", err)
	}
	if out.ClientSecret == "" {
		return "", errors.New("create payment intent: empty client secret")
	}
	return out.ClientSecret, nil
}

type Confirmation struct {
	TransactionID string `json:"id"`
	Status        string `json:"status"`
}

// Confirm settles the intent with a tokenized payment method.
func (r *Payments) Confirm(ctx context.Context, clientSecret, paymentMethodID string) (Confirmation, error) {
	body := map[string]string{"clientSecret": clientSecret, "paymentMethodId": paymentMethodID}
	var out Confirmation
	if err := r.API.Do(ctx, http.MethodPost, "/payments/confirm", nil, body, &out); err != nil {
		return out, wrap("confirm payment", err)
	}
	if out.Status != "succeeded" {
		return out, fmt.Errorf("confirm payment: status %q", out.Status)
	}
	if out.TransactionID == "" {
		return out, errors.New("confirm payment: missing transaction id")
	}
	return out, nil
}

func (r *Payments) Record(ctx context.Context, rec models.PaymentRecord) error {
	if err := models.Validate(&rec); err != nil {
		return err
	}
	_, err := write(ctx, r.API, http.MethodPost, "/payments", rec)
	return err
}
