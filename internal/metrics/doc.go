// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Tick generation, target fallbacks, rollovers and the last price
//   - Claims by outcome, granted amount and remaining supply
//   - Referral commission dispatch results
//   - HTTP request rates, latencies and in-flight requests
//   - Live feed subscribers
package metrics
