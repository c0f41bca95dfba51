// Package parser maps decoded spreadsheet rows with arbitrary header
// spellings onto canonical UploadRow records.
package parser

import (
	"fmt"
	"strings"

	"github.com/insightdelivered/order-reconciler/internal/extractor"
	"github.com/insightdelivered/order-reconciler/internal/models"
)

// Parser defines the interface for per-role row normalizers.
type Parser interface {
	// Parse turns one decoded file into UploadRows. Rows without an order
	// number or tracking number are dropped.
	Parse(t *extractor.Table, sourceFile string) []models.UploadRow
	// Mapping reports which headers were mapped to each canonical field.
	Mapping(headers []string) map[Field][]string
	// Mode returns the role every parsed row is tagged with.
	Mode() models.SourceMode
}

// New returns the parser for the given file role.
func New(mode models.SourceMode) (Parser, error) {
	switch mode {
	case models.ModePO, models.ModeSO, models.ModeShipDocs, models.ModeUPS:
		return &rowParser{mode: mode, aliases: aliasesFor(mode)}, nil
	default:
		return nil, fmt.Errorf("unsupported source mode: %q", mode)
	}
}

type rowParser struct {
	mode    models.SourceMode
	aliases map[Field][]string
}

func (p *rowParser) Mode() models.SourceMode {
	return p.mode
}

func (p *rowParser) Mapping(headers []string) map[Field][]string {
	return planColumns(headers, p.aliases)
}

func (p *rowParser) Parse(t *extractor.Table, sourceFile string) []models.UploadRow {
	if t == nil {
		return nil
	}
	plan := planColumns(t.Headers, p.aliases)
	hasTrackingColumn := len(plan[FieldTracking]) > 0

	var out []models.UploadRow
	for i, cells := range t.Rows {
		row := models.UploadRow{
			SourceFile: sourceFile,
			SourceMode: p.mode,
			RowIndex:   i + 1,
		}

		row.OrderNumber = strings.TrimSpace(firstText(cells, plan[FieldOrder]))
		row.PartyName = strings.TrimSpace(firstText(cells, plan[FieldParty]))

		if hasTrackingColumn {
			row.TrackingNumber = trackingFromColumns(cells, plan[FieldTracking])
		} else {
			// Only accept a generic token when nothing else can key this row.
			row.TrackingNumber = scanRowForTracking(rowTexts(cells, t.Headers), row.OrderNumber == "")
		}

		for _, h := range plan[FieldDate] {
			if d, ok := ParseDate(cells[h]); ok {
				row.AssertedDate = d
				break
			}
		}

		if row.OrderNumber == "" && row.TrackingNumber == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}

// firstText returns the first non-empty cell among the given headers.
func firstText(cells extractor.Row, headers []string) string {
	for _, h := range headers {
		if s := strings.TrimSpace(extractor.CellString(cells[h])); s != "" {
			return s
		}
	}
	return ""
}

func trackingFromColumns(cells extractor.Row, headers []string) string {
	for _, h := range headers {
		raw := strings.TrimSpace(extractor.CellString(cells[h]))
		if raw == "" {
			continue
		}
		if tok := carrierToken(raw); tok != "" {
			return tok
		}
		if tok := NormalizeTracking(raw); tok != "" {
			return tok
		}
	}
	return ""
}

func rowTexts(cells extractor.Row, headers []string) []string {
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if s := extractor.CellString(cells[h]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// AutoDetect guesses a file's role from its headers. Upload forms always
// tag files explicitly; this only serves untagged CLI input.
func AutoDetect(headers []string) models.SourceMode {
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = headerKey(h)
	}
	combined := strings.Join(keys, " ")

	if containsAny(combined, []string{"shipdoc", "packingslip", "shippingdocument"}) {
		return models.ModeShipDocs
	}
	if containsAny(combined, []string{"ups", "manifestdate", "receivername", "billeddate"}) {
		return models.ModeUPS
	}
	if containsAny(combined, []string{"sono", "salesorder", "customer"}) {
		return models.ModeSO
	}
	if !containsAny(combined, []string{"pono", "purchaseorder", "vendor", "supplier", "order", "invoice"}) &&
		containsAny(combined, []string{"tracking", "waybill"}) {
		return models.ModeUPS
	}
	return models.ModePO
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
