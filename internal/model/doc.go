// Package model defines shared data types used across the emission engine.
//
// All types mirror the database schema in internal/database/schema.
//
// Conventions:
//   - Prices and token amounts: decimal.Decimal, never float64
//   - Prices are rounded to PricePlaces, amounts to AmountPlaces
//   - Timestamps: time.Time in UTC
//   - Reference dates: UTC midnight of the trading day
//   - IDs: string for users, uuid.UUID for coins and transactions
package model
