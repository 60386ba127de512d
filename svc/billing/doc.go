// Package billing exposes the customer-facing billing surface: the plan
// catalog, the account's subscription and usage summary, and the hosted
// checkout/portal URL actions. All payment-provider interaction is
// delegated, either to the remote billing function (the default) or to
// Paddle directly for self-hosted installs. Subscription state is read from
// the billing_subscriptions view and never mutated here.
package billing
