// Package stripe fetches payment metrics from the Stripe API.
package stripe

import (
	"context"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/talkdataco/financial-assistant/internal/config"
	"github.com/talkdataco/financial-assistant/internal/connector"
)

const sourceName = "stripe"

const pageLimit = 100

type Connector struct {
	cfg config.StripeConfig
	api *client.API
}

// New builds a connector with its own API client so the process-global
// Stripe key is never touched.
func New(cfg config.StripeConfig) *Connector {
	api := &client.API{}
	api.Init(cfg.APIKey, nil)
	return &Connector{cfg: cfg, api: api}
}

// NewWithBackends builds a connector against custom backends. Used in tests
// to point at a stub server.
func NewWithBackends(cfg config.StripeConfig, backends *stripeapi.Backends) *Connector {
	api := &client.API{}
	api.Init(cfg.APIKey, backends)
	return &Connector{cfg: cfg, api: api}
}

func (c *Connector) Name() string { return sourceName }

func (c *Connector) Fetch(ctx context.Context, req connector.Request) (*connector.Result, error) {
	result := &connector.Result{
		Source:  sourceName,
		Range:   req.Range,
		Metrics: make(map[string]connector.MetricValue),
	}

	wanted := make(map[string]bool, len(req.Metrics))
	for _, m := range req.Metrics {
		wanted[m] = true
	}

	if wanted["revenue"] || wanted["average_order_value"] || wanted["refunds"] {
		if err := c.chargeMetrics(ctx, req, wanted, result); err != nil {
			return nil, err
		}
	}

	if wanted["new_customers"] {
		count, err := c.newCustomers(ctx, req.Range)
		if err != nil {
			return nil, err
		}
		result.Metrics["new_customers"] = connector.MetricValue{Current: count}
	}

	if wanted["churn_rate"] {
		rate, err := c.churnRate(ctx, req.Range)
		if err != nil {
			return nil, err
		}
		result.Metrics["churn_rate"] = connector.MetricValue{Current: rate}
	}

	for _, m := range req.Metrics {
		if _, ok := result.Metrics[m]; !ok {
			result.Metrics[m] = connector.MetricValue{Err: fmt.Sprintf("metric %q not available from stripe", m)}
		}
	}

	return result, nil
}

// chargeMetrics derives revenue, average order value and refunds from a
// single pass over the charges in the range. Amounts are reported in major
// currency units.
func (c *Connector) chargeMetrics(ctx context.Context, req connector.Request, wanted map[string]bool, result *connector.Result) error {
	params := &stripeapi.ChargeListParams{
		CreatedRange: &stripeapi.RangeQueryParams{
			GreaterThanOrEqual: req.Range.Start.Unix(),
			LesserThan:         req.Range.End.AddDate(0, 0, 1).Unix(),
		},
	}
	params.Context = ctx
	params.Limit = stripeapi.Int64(pageLimit)

	var (
		revenue    float64
		refunded   float64
		count      int64
		byCategory = make(map[string]float64)
	)

	wantCategory := false
	for _, d := range req.Dimensions {
		if d == "product_category" {
			wantCategory = true
		}
	}

	iter := c.api.Charges.List(params)
	for iter.Next() {
		ch := iter.Charge()
		if ch.Status != stripeapi.ChargeStatusSucceeded {
			continue
		}
		amount := float64(ch.Amount) / 100
		revenue += amount
		refunded += float64(ch.AmountRefunded) / 100
		count++

		if wantCategory {
			category := ch.Metadata["product_category"]
			if category == "" {
				category = "uncategorized"
			}
			byCategory[category] += amount
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("listing charges: %w", err)
	}

	if wanted["revenue"] {
		value := connector.MetricValue{Current: revenue}
		if wantCategory && len(byCategory) > 0 {
			value.Dimensions = map[string]map[string]float64{"product_category": byCategory}
		}
		result.Metrics["revenue"] = value
	}
	if wanted["average_order_value"] {
		var aov float64
		if count > 0 {
			aov = revenue / float64(count)
		}
		result.Metrics["average_order_value"] = connector.MetricValue{Current: aov}
	}
	if wanted["refunds"] {
		result.Metrics["refunds"] = connector.MetricValue{Current: refunded}
	}

	return nil
}

func (c *Connector) newCustomers(ctx context.Context, r connector.Range) (float64, error) {
	params := &stripeapi.CustomerListParams{
		CreatedRange: &stripeapi.RangeQueryParams{
			GreaterThanOrEqual: r.Start.Unix(),
			LesserThan:         r.End.AddDate(0, 0, 1).Unix(),
		},
	}
	params.Context = ctx
	params.Limit = stripeapi.Int64(pageLimit)

	var count float64
	iter := c.api.Customers.List(params)
	for iter.Next() {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("listing customers: %w", err)
	}
	return count, nil
}

// churnRate approximates churn as subscriptions canceled during the range
// over the subscriptions that existed during it (still active plus canceled).
func (c *Connector) churnRate(ctx context.Context, r connector.Range) (float64, error) {
	canceled, err := c.countSubscriptions(ctx, "canceled", func(sub *stripeapi.Subscription) bool {
		return sub.CanceledAt >= r.Start.Unix() && sub.CanceledAt < r.End.AddDate(0, 0, 1).Unix()
	})
	if err != nil {
		return 0, err
	}

	active, err := c.countSubscriptions(ctx, "active", nil)
	if err != nil {
		return 0, err
	}

	total := active + canceled
	if total == 0 {
		return 0, nil
	}
	return canceled / total, nil
}

func (c *Connector) countSubscriptions(ctx context.Context, status string, keep func(*stripeapi.Subscription) bool) (float64, error) {
	params := &stripeapi.SubscriptionListParams{
		Status: stripeapi.String(status),
	}
	params.Context = ctx
	params.Limit = stripeapi.Int64(pageLimit)

	var count float64
	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		if keep == nil || keep(iter.Subscription()) {
			count++
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("listing %s subscriptions: %w", status, err)
	}
	return count, nil
}
