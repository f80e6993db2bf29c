package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB returns the transaction when set, otherwise fallback.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	if c.Tx != nil {
		return c.Tx
	}
	return fallback
}

// Context returns Ctx, defaulting to context.Background.
func (c Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}
