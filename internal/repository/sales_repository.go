package repository

import (
	"context"
	"time"

	"github.com/storeops/o2o-insight/internal/domain"
)

// SalesRepository provides the raw item-level sale records the analytics
// core runs over. All blocking I/O lives behind this interface; the core
// itself never touches the network.
type SalesRepository interface {
	// FetchRecords returns the records for a store between from and to
	// (inclusive, day granularity). Store may be empty for all stores.
	FetchRecords(ctx context.Context, store string, from, to time.Time) (domain.RecordBatch, error)

	// AvailableDates returns the most recent distinct sale dates, newest
	// first.
	AvailableDates(ctx context.Context, store string, limit int) ([]time.Time, error)

	// Stores lists the known store names.
	Stores(ctx context.Context) ([]string, error)
}
