package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

// orderEq matches the reserved "order" column regardless of dialect quoting
func orderEq(value int) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "order"}, Value: value}
}

// orderAsc sorts by the reserved "order" column
func orderAsc() clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Name: "order"}}
}

// forUpdate adds a row lock. Dialects without row locks drop the clause.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// notFoundOr maps gorm.ErrRecordNotFound to repositories.ErrNotFound and wraps anything else
func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// commitHooks holds work a transaction-bound repository defers until commit.
// A nil *commitHooks runs work immediately.
type commitHooks struct {
	fns []func(context.Context)
}

func (h *commitHooks) afterCommit(ctx context.Context, fn func(context.Context)) {
	if h == nil {
		fn(ctx)
		return
	}
	h.fns = append(h.fns, fn)
}

func (h *commitHooks) run(ctx context.Context) {
	for _, fn := range h.fns {
		fn(ctx)
	}
	h.fns = nil
}
