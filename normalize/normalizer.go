// Package normalize converts heterogeneous provider report rows into
// CanonicalRecord values, per §4.2: strip/lowercase, coerce decimals, parse
// dates to UTC with a degraded-date fallback, default currency only for
// USD-scoped sources, and drop rows already present in the ledger window.
package normalize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/internal/platformerr"
	"github.com/clarioclaims/engine/provider"
)

// ExistsChecker reports whether (seller, report_type, external_id) already
// exists in the ledger window, used for the dedup pass.
type ExistsChecker func(seller domain.SellerID, reportType domain.ReportType, externalID string) bool

// Normalizer converts RawRecords into CanonicalRecords for one report type.
type Normalizer struct {
	// USDScopedSources lists provider names whose reports are always in
	// USD, so a missing currency field defaults rather than fails (§4.2).
	USDScopedSources map[string]bool
}

func New(usdScopedSources ...string) *Normalizer {
	m := make(map[string]bool, len(usdScopedSources))
	for _, s := range usdScopedSources {
		m[strings.ToLower(s)] = true
	}
	return &Normalizer{USDScopedSources: m}
}

// Normalize converts raw into canonical records, deduplicating against
// exists, and returns them stable-ordered by (record_date, external_id) as
// §4.2 requires for deterministic downstream matching. Rows that fail
// validation are returned as errs alongside the successfully normalized
// records; the caller decides whether a row-level failure aborts the batch.
func (n *Normalizer) Normalize(seller domain.SellerID, source string, reportType domain.ReportType, window domain.Window, raw []provider.RawRecord, exists ExistsChecker, now time.Time) ([]domain.CanonicalRecord, []error) {
	var out []domain.CanonicalRecord
	var errs []error

	for i, row := range raw {
		rec, err := n.normalizeRow(seller, source, reportType, window, row, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i, err))
			continue
		}
		if rec.ExternalID != "" && exists != nil && exists(seller, reportType, rec.ExternalID) {
			continue
		}
		out = append(out, rec)
	}

	sortStable(out)
	return out, errs
}

func (n *Normalizer) normalizeRow(seller domain.SellerID, source string, reportType domain.ReportType, window domain.Window, row provider.RawRecord, now time.Time) (domain.CanonicalRecord, error) {
	clean := cleanKeys(row)

	rec := domain.CanonicalRecord{
		SellerID:   seller,
		ReportType: reportType,
		Source:     source,
		SyncWindow: window,
		Metadata:   map[string]interface{}{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	rec.RecordType = recordTypeFor(reportType)
	rec.ExternalID = strOf(clean["external_id"])
	rec.SKU = strOf(clean["sku"])
	rec.OrderID = strOf(clean["order_id"])
	rec.Description = strOf(clean["description"])

	amount, err := parseDecimal(clean["amount"])
	if err != nil {
		return domain.CanonicalRecord{}, platformerr.New("normalize.Row", platformerr.Validation, "InvalidField: amount: "+err.Error())
	}
	rec.Amount = amount

	if v, ok := clean["total_fees"]; ok {
		d, err := parseDecimal(v)
		if err != nil {
			return domain.CanonicalRecord{}, platformerr.New("normalize.Row", platformerr.Validation, "InvalidField: total_fees: "+err.Error())
		}
		rec.TotalFees = d
	}
	if v, ok := clean["fees"]; ok && rec.TotalFees.IsZero() {
		d, err := parseDecimal(v)
		if err != nil {
			return domain.CanonicalRecord{}, platformerr.New("normalize.Row", platformerr.Validation, "InvalidField: fees: "+err.Error())
		}
		rec.TotalFees = d
	}
	if v, ok := clean["refund_amount"]; ok {
		d, err := parseDecimal(v)
		if err != nil {
			return domain.CanonicalRecord{}, platformerr.New("normalize.Row", platformerr.Validation, "InvalidField: refund_amount: "+err.Error())
		}
		rec.RefundAmount = d
	}
	if v, ok := clean["unit_price"]; ok {
		d, err := parseDecimal(v)
		if err != nil {
			return domain.CanonicalRecord{}, platformerr.New("normalize.Row", platformerr.Validation, "InvalidField: unit_price: "+err.Error())
		}
		rec.UnitPrice = d
	}
	if v, ok := clean["missing_quantity"]; ok {
		n, err := parseInt(v)
		if err != nil {
			return domain.CanonicalRecord{}, platformerr.New("normalize.Row", platformerr.Validation, "InvalidField: missing_quantity: "+err.Error())
		}
		rec.MissingQuantity = n
	}
	if rec.RecordType == domain.RecordShipment && rec.MissingQuantity > 0 && rec.UnitPrice.IsZero() {
		rec.Metadata["price_estimated"] = true
	}
	if v := strOf(clean["shipment_status"]); v != "" {
		rec.ShipmentStatus = domain.ShipmentStatus(strings.ToLower(v))
	}

	rec.Currency = strings.ToUpper(strOf(clean["currency"]))
	if rec.Currency == "" {
		if n.USDScopedSources[strings.ToLower(source)] {
			rec.Currency = "USD"
		} else {
			return domain.CanonicalRecord{}, platformerr.New("normalize.Row", platformerr.Validation, "MissingCurrency")
		}
	}

	rec.RecordDate = now
	if rawDate := strOf(clean["record_date"]); rawDate != "" {
		if t, err := parseDate(rawDate); err == nil {
			rec.RecordDate = t.UTC()
		} else {
			rec.Metadata["degraded_date"] = true
		}
	} else {
		rec.Metadata["degraded_date"] = true
	}

	rec.Identifiers = identifiersFrom(clean)

	return rec, nil
}

func recordTypeFor(rt domain.ReportType) domain.RecordType {
	switch rt {
	case domain.ReportOrders:
		return domain.RecordOrder
	case domain.ReportFees:
		return domain.RecordOrder
	case domain.ReportShipments, domain.ReportInventoryAdjust, domain.ReportRemovals:
		return domain.RecordShipment
	case domain.ReportReturns:
		return domain.RecordReturn
	case domain.ReportSettlements:
		return domain.RecordSettlement
	default:
		return domain.RecordOrder
	}
}

// cleanKeys strips whitespace from string values and lowercases every key,
// per §4.2.
func cleanKeys(row provider.RawRecord) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		key := strings.ToLower(strings.TrimSpace(k))
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		out[key] = v
	}
	return out
}

func strOf(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// parseDecimal coerces a numeric field, rejecting non-numeric input with
// InvalidField per §4.2.
func parseDecimal(v interface{}) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(t)
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

func parseInt(v interface{}) (int, error) {
	d, err := parseDecimal(v)
	if err != nil {
		return 0, err
	}
	return int(d.IntPart()), nil
}

// parseDate accepts UTC ISO-8601 and a couple of common report date shapes.
func parseDate(s string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02", "2006-01-02 15:04:05"}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

func identifiersFrom(clean map[string]interface{}) domain.ClaimIdentifiers {
	return domain.ClaimIdentifiers{
		OrderID:           strOf(clean["order_id"]),
		ASIN:              strOf(clean["asin"]),
		SKU:               strOf(clean["sku"]),
		FNSKU:             strOf(clean["fnsku"]),
		ShipmentID:        strOf(clean["shipment_id"]),
		TrackingNumber:    strOf(clean["tracking_number"]),
		LPN:               strOf(clean["lpn"]),
		InvoiceNumber:     strOf(clean["invoice_number"]),
		PONumber:          strOf(clean["po_number"]),
		AmazonReferenceID: strOf(clean["amazon_reference_id"]),
		RemovalOrderID:    strOf(clean["removal_order_id"]),
		RMANumber:         strOf(clean["rma_number"]),
		CaseID:            strOf(clean["case_id"]),
		ReimbursementID:   strOf(clean["reimbursement_id"]),
		TransactionID:     strOf(clean["transaction_id"]),
		UPC:               strOf(clean["upc"]),
		BOLNumber:         strOf(clean["bol_number"]),
	}
}

func sortStable(recs []domain.CanonicalRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.RecordDate.Equal(b.RecordDate) {
			return a.RecordDate.Before(b.RecordDate)
		}
		return a.ExternalID < b.ExternalID
	})
}
