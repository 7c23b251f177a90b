// Package payment runs the membership checkout: intent, card tokenization,
// confirmation, payment record and tier upgrade.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/internal/session"
	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

// ErrUpgradePending means the card was charged but the tier upgrade failed.
var ErrUpgradePending = errors.New("payment received, upgrade pending")

type TierSetter interface {
	SetTier(ctx context.Context, sess *session.Session, tier models.Tier) error
}

type Receipt struct {
	TransactionID string      `json:"transactionId"`
	Tier          models.Tier `json:"badge"`
	Price         float64     `json:"price"`
}

type Checkout struct {
	Packages  *repo.Packages
	Payments  *repo.Payments
	Users     *repo.Users
	Tokenizer Tokenizer
	Cache     *query.Cache
	Sessions  TierSetter
	Now       func() time.Time
}

func (c *Checkout) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// charge runs the provider steps up to a confirmed payment.
func (c *Checkout) charge(ctx context.Context, sess *session.Session, price float64, card Card) (repo.Confirmation, error) {
	secret, err := c.Payments.CreateIntent(ctx, price)
	if err != nil {
		return repo.Confirmation{}, err
	}
	pm, err := c.Tokenizer.CreatePaymentMethod(ctx, card, Billing{Name: sess.Name, Email: sess.Email})
	if err != nil {
		return repo.Confirmation{}, err
	}
	return c.Payments.Confirm(ctx, secret, pm.ID)
}

func notify(ctx context.Context, n collection.Notifier, x collection.Notice) {
	if n != nil {
		n.Notify(ctx, x)
	}
}

// Run buys tier for the session's user. Validation failures make no remote
// call and a failed charge leaves tier, payments and caches untouched. Once
// the charge is confirmed the payments and users views are always
// invalidated; if the tier could not be set the receipt comes back with
// ErrUpgradePending.
func (c *Checkout) Run(ctx context.Context, sess *session.Session, tier models.Tier, card Card, n collection.Notifier) (Receipt, error) {
	l := logging.FromContext(ctx).With("component", "checkout", "tier", string(tier))

	if !tier.Premium() {
		return Receipt{}, fmt.Errorf("%w: package %q cannot be bought", models.ErrInvalid, tier)
	}
	if err := models.Validate(&card); err != nil {
		return Receipt{}, err
	}
	if card.Expired(c.now()) {
		return Receipt{}, fmt.Errorf("%w: card expired", models.ErrInvalid)
	}

	ctx = apiclient.WithToken(ctx, sess.IDToken)
	pkg, err := collection.Item(ctx, c.Cache, repo.ResPackages, string(tier), func(ctx context.Context) (models.Package, error) {
		return c.Packages.Get(ctx, tier)
	})
	if err != nil {
		return Receipt{}, err
	}

	conf, err := c.charge(ctx, sess, pkg.Price, card)
	if err != nil {
		l.Warn("checkout_charge_failed", "error", err)
		notify(ctx, n, collection.Notice{Level: collection.LevelError, Title: "Could not complete payment", Message: err.Error()})
		return Receipt{}, err
	}
	receipt := Receipt{TransactionID: conf.TransactionID, Tier: tier, Price: pkg.Price}

	// The card is charged from here on: both follow-up writes are attempted
	// and the views refetch whatever made it upstream.
	rec := models.PaymentRecord{
		Email:         sess.Email,
		Tier:          tier,
		Price:         pkg.Price,
		TransactionID: conf.TransactionID,
		Date:          c.now(),
	}
	recErr := c.Payments.Record(ctx, rec)
	tierErr := c.Users.SetTier(ctx, sess.Email, tier)
	c.Cache.Invalidate(repo.ResPayments, repo.ResUsers)

	if recErr != nil {
		l.Error("payment_record_failed", "transaction_id", conf.TransactionID, "error", recErr)
	}
	if tierErr != nil {
		l.Error("checkout_upgrade_pending", "transaction_id", conf.TransactionID, "error", tierErr)
		notify(ctx, n, collection.Notice{
			Level:   collection.LevelInfo,
			Title:   "Payment received",
			Message: fmt.Sprintf("Your %s upgrade is pending. Keep transaction %s for support.", pkg.Name, conf.TransactionID),
		})
		return receipt, fmt.Errorf("%w: %w", ErrUpgradePending, errors.Join(tierErr, recErr))
	}
	notify(ctx, n, collection.Notice{Level: collection.LevelSuccess, Title: "Done", Message: fmt.Sprintf("Welcome to %s", pkg.Name)})

	if err := c.Sessions.SetTier(ctx, sess, tier); err != nil {
		l.Warn("session_tier_update_failed", "error", err)
	}
	l.Info("checkout_completed", "transaction_id", receipt.TransactionID)
	return receipt, nil
}
