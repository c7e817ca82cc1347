package reader

import (
	"context"
	"time"

	"fundingwatch/internal/model"
)

// Adapter fetches the current funding snapshot of one exchange.
//
// Fetch returns an error only when the exchange as a whole could not be
// read. Individual records that cannot be parsed are skipped and logged.
type Adapter interface {
	Exchange() model.Exchange
	Fetch(ctx context.Context, now time.Time) ([]model.FundingRecord, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc struct {
	Name model.Exchange
	Fn   func(ctx context.Context, now time.Time) ([]model.FundingRecord, error)
}

func (f AdapterFunc) Exchange() model.Exchange { return f.Name }

func (f AdapterFunc) Fetch(ctx context.Context, now time.Time) ([]model.FundingRecord, error) {
	return f.Fn(ctx, now)
}
