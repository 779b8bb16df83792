package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgstripe "github.com/hauslist/hauslist-backend/pkg/stripe"
)

const defaultRequestTimeout = 15 * time.Second

// ProviderClient exposes the subset of Stripe operations the billing engine
// needs. Consumers declare their own narrow views of it so they stay testable
// with stubs.
type ProviderClient interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string, expand ...string) (*stripe.CheckoutSession, error)
	ListRecentCheckoutSessions(ctx context.Context, limit int64) ([]*stripe.CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	ListSubscriptionsByCustomer(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error)
	SearchCustomersByEmail(ctx context.Context, email string, limit int64) ([]*stripe.Customer, error)
}

type providerClient struct {
	timeout time.Duration
}

// NewProviderClient wraps the initialized Stripe client. Every call is bound
// by the configured request timeout.
func NewProviderClient(api *pkgstripe.Client, timeout time.Duration) ProviderClient {
	if api == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &providerClient{timeout: timeout}
}

func (c *providerClient) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *providerClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	if params == nil {
		params = &stripe.CheckoutSessionParams{}
	}
	params.Context = ctx
	return session.New(params)
}

func (c *providerClient) GetCheckoutSession(ctx context.Context, id string, expand ...string) (*stripe.CheckoutSession, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	for _, field := range expand {
		params.AddExpand(field)
	}
	return session.Get(id, params)
}

func (c *providerClient) ListRecentCheckoutSessions(ctx context.Context, limit int64) ([]*stripe.CheckoutSession, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	params := &stripe.CheckoutSessionListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)
	params.AddExpand("data.subscription")

	var sessions []*stripe.CheckoutSession
	it := session.List(params)
	for it.Next() {
		sessions = append(sessions, it.CheckoutSession())
		if int64(len(sessions)) >= limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *providerClient) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscription.Get(id, params)
}

func (c *providerClient) UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	if params == nil {
		params = &stripe.SubscriptionParams{}
	}
	params.Context = ctx
	return subscription.Update(id, params)
}

func (c *providerClient) ListSubscriptionsByCustomer(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	params := &stripe.SubscriptionListParams{}
	params.Context = ctx
	params.Customer = stripe.String(customerID)
	params.Status = stripe.String("all")
	params.Limit = stripe.Int64(limit)

	var subs []*stripe.Subscription
	it := subscription.List(params)
	for it.Next() {
		subs = append(subs, it.Subscription())
		if int64(len(subs)) >= limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *providerClient) SearchCustomersByEmail(ctx context.Context, email string, limit int64) ([]*stripe.Customer, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	params := &stripe.CustomerSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("email:%q", email)
	params.Limit = stripe.Int64(limit)

	var customers []*stripe.Customer
	it := customer.Search(params)
	for it.Next() {
		customers = append(customers, it.Customer())
		if int64(len(customers)) >= limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}
