package models

import (
	"context"

	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
// sqlite (tests) has no row locks; its single-writer model covers the same
// race the lock prevents on MySQL.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if id, ok := utils.GetCorrelationIdFromContext(ctx); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Ledger quantities are stored as decimals but the domain only allows whole,
// positive unit counts.
func isPositiveWholeQty(qty decimal.Decimal) bool {
	return qty.IsPositive() && qty.IsInteger()
}

func decimalMin(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
