package parser

import (
	"strings"
	"unicode"

	"github.com/insightdelivered/order-reconciler/internal/extractor"
	"github.com/insightdelivered/order-reconciler/internal/models"
)

// Field is a canonical UploadRow field that spreadsheet headers map onto.
type Field string

const (
	FieldOrder    Field = "order"
	FieldTracking Field = "tracking"
	FieldParty    Field = "party"
	FieldDate     Field = "date"
)

var fields = []Field{FieldOrder, FieldTracking, FieldParty, FieldDate}

// sharedAliases apply to every file role. Order matters: when a row has
// values under several aliases of one field, the earliest alias wins.
var sharedAliases = map[Field][]string{
	FieldOrder: {
		"po number", "po#", "po no", "po", "purchase order", "purchase order number",
		"so number", "so#", "so no", "so", "sales order", "sales order number",
		"order number", "order#", "order no", "order id", "order",
		"invoice number", "invoice#", "invoice no", "invoice",
		"document number", "document#", "doc number", "doc#",
	},
	FieldTracking: {
		"tracking number", "tracking#", "tracking no", "tracking id", "tracking",
		"package tracking number", "lead tracking number", "shipment tracking number",
		"waybill", "waybill number", "airbill", "pro number",
	},
	FieldParty: {
		"vendor", "vendor name", "supplier", "supplier name",
		"customer", "customer name", "ship to name", "ship to company", "ship to",
		"consignee", "company", "party", "name",
	},
	FieldDate: {
		"ship date", "shipped date", "date shipped", "shipment date", "pickup date",
		"transaction date", "invoice date", "receipt date", "received date",
		"order date", "po date", "so date", "date",
	},
}

// roleAliases extend the shared table for one role. They are tried before
// the shared aliases of the same field.
var roleAliases = map[models.SourceMode]map[Field][]string{
	models.ModeShipDocs: {
		FieldOrder: {"ship doc", "ship doc#", "ship doc number", "shipping document", "packing slip", "packing slip number"},
		FieldDate:  {"ship doc date"},
	},
	models.ModeUPS: {
		FieldTracking: {"ups tracking number", "1z number"},
		FieldParty:    {"receiver name", "receiver company"},
		FieldDate:     {"manifest date", "billed date", "delivery date"},
	},
}

// aliasesFor returns the ordered alias list of every field for one role.
func aliasesFor(mode models.SourceMode) map[Field][]string {
	out := make(map[Field][]string, len(fields))
	for _, f := range fields {
		var list []string
		list = append(list, roleAliases[mode][f]...)
		list = append(list, sharedAliases[f]...)
		out[f] = list
	}
	return out
}

// HeaderScore counts the canonical fields a candidate header row names under
// the aliases of mode. An empty mode tries every role.
func HeaderScore(mode models.SourceMode) extractor.HeaderFunc {
	tables := []map[Field][]string{aliasesFor(mode)}
	if mode == "" {
		for m := range roleAliases {
			tables = append(tables, aliasesFor(m))
		}
	}
	return func(cells []string) int {
		best := 0
		for _, aliases := range tables {
			if n := len(planColumns(cells, aliases)); n > best {
				best = n
			}
		}
		return best
	}
}

// headerKey folds a header for comparison: case-insensitive, "#" read as
// "no", everything except letters and digits dropped.
func headerKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '#':
			b.WriteString("no")
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	key := b.String()
	// "PO Number", "PO #" and "PO No" all name the same column.
	if strings.HasSuffix(key, "number") {
		key = strings.TrimSuffix(key, "number") + "no"
	}
	return key
}

// columnPlan lists, per field, the table headers to read in alias order.
type columnPlan map[Field][]string

func planColumns(headers []string, aliases map[Field][]string) columnPlan {
	byKey := make(map[string][]string)
	for _, h := range headers {
		k := headerKey(h)
		if k == "" {
			continue
		}
		byKey[k] = append(byKey[k], h)
	}

	plan := make(columnPlan, len(fields))
	claimed := make(map[string]bool)
	for _, f := range fields {
		seen := make(map[string]bool)
		for _, alias := range aliases[f] {
			for _, h := range byKey[headerKey(alias)] {
				if seen[h] || claimed[h] {
					continue
				}
				seen[h] = true
				plan[f] = append(plan[f], h)
			}
		}
		for h := range seen {
			claimed[h] = true
		}
	}
	return plan
}
