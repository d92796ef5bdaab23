package common

import (
	"context"

	"github.com/shopspring/decimal"
)

type ctxKey string

const viewerKey ctxKey = "auth/viewer"

// Viewer describes the acting user as resolved by the authentication
// middleware. Percentage is the per-user price divisor; zero means no
// scaling. An anonymous request carries no Viewer at all.
type Viewer struct {
	ID         string
	Approved   bool
	Percentage decimal.Decimal
}

// WithViewer stores the authenticated viewer on the provided context.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey, v)
}

// ViewerFrom extracts the authenticated viewer from the context if present.
func ViewerFrom(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerKey).(Viewer)
	return v, ok
}
