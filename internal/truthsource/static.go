package truthsource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

// StaticOrder is one order in a fixture file.
type StaticOrder struct {
	OrderNumber string                   `json:"orderNumber"`
	PartyName   string                   `json:"partyName"`
	Packages    []models.ActivityPackage `json:"packages"`
}

// Fixture is the on-disk layout read by LoadStatic:
//
//	{"PO": [{"orderNumber": "PO-1", "partyName": "Acme", "packages": [...]}], "SO": [...]}
type Fixture map[models.SourceMode][]StaticOrder

// Static is an in-memory truth source, used for offline runs and tests.
type Static struct {
	orders map[models.SourceMode]map[string]StaticOrder
}

// NewStatic indexes fixture by interpretation and order number.
// ShipDocs orders are folded into SO, matching the record type lookup.
func NewStatic(fixture Fixture) *Static {
	s := &Static{orders: make(map[models.SourceMode]map[string]StaticOrder)}
	for mode, orders := range fixture {
		if mode == models.ModeShipDocs {
			mode = models.ModeSO
		}
		if s.orders[mode] == nil {
			s.orders[mode] = make(map[string]StaticOrder)
		}
		for _, o := range orders {
			for i := range o.Packages {
				o.Packages[i].TrackingNumber = normalizeTracking(o.Packages[i].TrackingNumber)
			}
			s.orders[mode][orderKey(o.OrderNumber)] = o
		}
	}
	return s
}

// LoadStatic reads a JSON fixture file.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", path, err)
	}
	return NewStatic(fixture), nil
}

func (s *Static) GetOrder(ctx context.Context, mode models.SourceMode, orderNumber string) (*models.OrderRecord, error) {
	o, ok, err := s.lookup(ctx, mode, orderNumber)
	if err != nil || !ok {
		return nil, err
	}
	return &models.OrderRecord{OrderNumber: o.OrderNumber, PartyName: o.PartyName, Exists: true}, nil
}

func (s *Static) GetActivity(ctx context.Context, mode models.SourceMode, orderNumber string) ([]models.ActivityPackage, error) {
	o, ok, err := s.lookup(ctx, mode, orderNumber)
	if err != nil || !ok {
		return nil, err
	}
	return append([]models.ActivityPackage(nil), o.Packages...), nil
}

// FindByTracking ignores the date hint; the index is small enough to scan.
func (s *Static) FindByTracking(ctx context.Context, mode models.SourceMode, trackingNumber string, _ models.Date) ([]models.ActivityPackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mode, err := indexMode(mode)
	if err != nil {
		return nil, err
	}

	want := normalizeTracking(trackingNumber)
	var out []models.ActivityPackage
	for _, o := range s.orders[mode] {
		for _, p := range o.Packages {
			if p.TrackingNumber == want {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *Static) lookup(ctx context.Context, mode models.SourceMode, orderNumber string) (StaticOrder, bool, error) {
	if err := ctx.Err(); err != nil {
		return StaticOrder{}, false, err
	}
	mode, err := indexMode(mode)
	if err != nil {
		return StaticOrder{}, false, err
	}
	o, ok := s.orders[mode][orderKey(orderNumber)]
	return o, ok, nil
}

func indexMode(mode models.SourceMode) (models.SourceMode, error) {
	if _, err := recordType(mode); err != nil {
		return "", err
	}
	if mode == models.ModeShipDocs {
		return models.ModeSO, nil
	}
	return mode, nil
}

func orderKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
