// Package server exposes the engine over HTTP.
//
// Routes:
//
//	GET  /api/price/tick                   Generate one tick (trigger, public)
//	GET  /api/price/latest                 Newest tick
//	GET  /api/price/history?limit=N        Newest N ticks
//	GET  /api/price/stream                 WebSocket tick feed
//	POST /api/mining/claim                 Claim (bearer token)
//	GET  /api/mining/status                Eligibility (bearer token)
//	GET  /api/mining/supply                Global supply counters
//	POST /api/trades/{tradeID}/{action}    Trade state transition (bearer token)
//	GET  /health                           Liveness and store reachability
//	GET  /version                          Build information
//
// Every failure is answered with api.ErrorResponse.
package server
