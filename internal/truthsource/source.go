// Package truthsource talks to the order-management system that is treated
// as ground truth for order existence, party names and shipment activity.
package truthsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

// ErrNotConfigured is returned when a lookup is attempted without a truth source.
var ErrNotConfigured = errors.New("truth source is not configured")

// Source is the truth source query contract. A nil record or an empty
// package list means "not found"; a non-nil error means the lookup itself
// failed and must not be read as "not found".
type Source interface {
	GetOrder(ctx context.Context, mode models.SourceMode, orderNumber string) (*models.OrderRecord, error)
	GetActivity(ctx context.Context, mode models.SourceMode, orderNumber string) ([]models.ActivityPackage, error)
	FindByTracking(ctx context.Context, mode models.SourceMode, trackingNumber string, hint models.Date) ([]models.ActivityPackage, error)
}

// recordType maps an interpretation to the order-management record type.
func recordType(mode models.SourceMode) (string, error) {
	switch mode {
	case models.ModePO:
		return "purchaseorder", nil
	case models.ModeSO, models.ModeShipDocs:
		return "salesorder", nil
	default:
		return "", fmt.Errorf("no order record type for mode %q", mode)
	}
}
