// Package models contains GORM persistence models that map to database tables.
// They are kept apart from the domain so the Stock aggregate stays free of ORM
// tags; mappers convert between the two.
//
// Tables:
//   - stocks: one row per product/location, carries the optimistic-lock version
//   - stock_batches: keyed by (stock_id, batch_number), upserted on save
//   - stock_movements: the append-only ledger, insert only
package models
