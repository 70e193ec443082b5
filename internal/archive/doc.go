// Package archive exports closed trading days to object storage.
//
// Each archived day becomes one Parquet object:
//
//	<prefix>/date=YYYY-MM-DD/<uuid>.parquet
//
// Prices are written as DOUBLE columns; the ledger stays the source of
// truth for exact decimal values.
package archive
