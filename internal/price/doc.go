// Package price generates the synthetic price series.
//
// Each tick is derived from the previous one: the price drifts toward the
// day's expected value (opening + increment × progress) and is then shocked by
// a uniform random volatility term. Trading days begin at a configurable UTC
// hour; the first tick of a new day rolls the schedule over, closing the
// previous day at its last price and opening the new one at the previous
// day's target.
//
// Ticks are serialized by the Store, so concurrent triggers never read the
// same "latest" tick.
package price
