package appctx

import (
	"context"

	"github.com/hirelink/intercall/internal/domain"
)

type ctxKey string

const identityKey ctxKey = "identity"

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func Identity(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}
