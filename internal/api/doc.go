// Package api defines the engine's HTTP wire types and a typed client for
// them.
//
// Endpoints:
//   - GET  /api/price/tick       generate one tick (unauthenticated)
//   - GET  /api/price/latest     latest tick
//   - GET  /api/price/history    recent ticks, newest first
//   - GET  /api/mining/supply    global supply counters
//   - POST /api/mining/claim     claim (bearer token)
//   - GET  /api/mining/status    eligibility (bearer token)
//
// Decimal quantities are encoded as JSON strings.
package api
