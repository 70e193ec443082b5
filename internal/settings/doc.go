// Package settings holds the runtime-tunable engine knobs.
//
// The file configuration is the baseline. Registry periodically reads the
// engine_settings key/value table and overlays recognised keys on top of
// it. Unknown keys and values that fail to parse or validate are skipped
// with a warning. When the table cannot be read the last good snapshot
// stays in effect.
//
// Recognised keys:
//
//	price.base_price       price.volatility_band  price.daily_increment
//	price.drift_strength   price.min_price        price.reset_hour
//	mining.base_reward     mining.interval
package settings
