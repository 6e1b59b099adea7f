// Package metrics exposes Prometheus metrics for the gateway: HTTP traffic,
// auth session manager outcomes, Fenergo forwarding results, and gauges for
// the session cache and pending logins. Metric names are prefixed with
// nebula_gateway_. Token values never appear in labels.
package metrics
