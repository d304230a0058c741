package domain

// IdentifierFamily names one of the 17 strong match keys the matcher and
// document index operate over. Declared as a typed enum (rather than a
// bare string key in a map[string]any) per the teacher-generalized design
// note that dynamic "metadata: any" objects become typed variants.
type IdentifierFamily string

const (
	FamilyOrderID           IdentifierFamily = "order_id"
	FamilyTransactionID     IdentifierFamily = "transaction_id"
	FamilyReimbursementID   IdentifierFamily = "reimbursement_id"
	FamilyCaseID            IdentifierFamily = "case_id"
	FamilyTrackingNumber    IdentifierFamily = "tracking_number"
	FamilyShipmentID        IdentifierFamily = "shipment_id"
	FamilyRemovalOrderID    IdentifierFamily = "removal_order_id"
	FamilyAmazonReferenceID IdentifierFamily = "amazon_reference_id"
	FamilyRMANumber         IdentifierFamily = "rma_number"
	FamilyLPN               IdentifierFamily = "lpn"
	FamilyFNSKU             IdentifierFamily = "fnsku"
	FamilyASIN              IdentifierFamily = "asin"
	FamilySKU               IdentifierFamily = "sku"
	FamilyUPC               IdentifierFamily = "upc"
	FamilyBOLNumber         IdentifierFamily = "bol_number"
	FamilyInvoiceNumber     IdentifierFamily = "invoice_number"
	FamilyPONumber          IdentifierFamily = "po_number"
)

// AllIdentifierFamilies lists the 17 families in the matcher's priority
// order (§4.6), highest baseline confidence first. The Document Index and
// Matcher both iterate this slice so their notion of "priority" never
// drifts out of sync.
var AllIdentifierFamilies = []IdentifierFamily{
	FamilyOrderID,
	FamilyTransactionID,
	FamilyReimbursementID,
	FamilyCaseID,
	FamilyTrackingNumber,
	FamilyShipmentID,
	FamilyRemovalOrderID,
	FamilyAmazonReferenceID,
	FamilyRMANumber,
	FamilyLPN,
	FamilyFNSKU,
	FamilyASIN,
	FamilySKU,
	FamilyUPC,
	FamilyBOLNumber,
	FamilyInvoiceNumber,
	FamilyPONumber,
}

// BaselineConfidence is the per-family confidence assigned before the
// parser-confidence factor is applied (§4.6's ranked table).
var BaselineConfidence = map[IdentifierFamily]float64{
	FamilyOrderID:           0.95,
	FamilyTransactionID:     0.92,
	FamilyReimbursementID:   0.92,
	FamilyCaseID:            0.90,
	FamilyTrackingNumber:    0.90,
	FamilyShipmentID:        0.90,
	FamilyRemovalOrderID:    0.90,
	FamilyAmazonReferenceID: 0.88,
	FamilyRMANumber:         0.88,
	FamilyLPN:               0.85,
	FamilyFNSKU:             0.85,
	FamilyASIN:              0.85,
	FamilySKU:               0.85,
	FamilyUPC:               0.85,
	FamilyBOLNumber:         0.82,
	FamilyInvoiceNumber:     0.80,
	FamilyPONumber:          0.80,
}

// ClaimIdentifiers carries every identifier a claim candidate or canonical
// record may present, one optional field per family — the tagged-union
// equivalent for a language whose structs don't have sum types.
type ClaimIdentifiers struct {
	OrderID           string
	ASIN              string
	SKU               string
	FNSKU             string
	ShipmentID        string
	TrackingNumber    string
	LPN               string
	InvoiceNumber     string
	PONumber          string
	AmazonReferenceID string
	RemovalOrderID    string
	RMANumber         string
	CaseID            string
	ReimbursementID   string
	TransactionID     string
	UPC               string
	BOLNumber         string

	// RelatedEventIDs augments OrderID matching: §4.6 rank 1 matches
	// "order_id (direct or via related_event_ids)".
	RelatedEventIDs []string
}

// Get returns the identifier value for family, or "" if absent.
func (c ClaimIdentifiers) Get(family IdentifierFamily) string {
	switch family {
	case FamilyOrderID:
		return c.OrderID
	case FamilyASIN:
		return c.ASIN
	case FamilySKU:
		return c.SKU
	case FamilyFNSKU:
		return c.FNSKU
	case FamilyShipmentID:
		return c.ShipmentID
	case FamilyTrackingNumber:
		return c.TrackingNumber
	case FamilyLPN:
		return c.LPN
	case FamilyInvoiceNumber:
		return c.InvoiceNumber
	case FamilyPONumber:
		return c.PONumber
	case FamilyAmazonReferenceID:
		return c.AmazonReferenceID
	case FamilyRemovalOrderID:
		return c.RemovalOrderID
	case FamilyRMANumber:
		return c.RMANumber
	case FamilyCaseID:
		return c.CaseID
	case FamilyReimbursementID:
		return c.ReimbursementID
	case FamilyTransactionID:
		return c.TransactionID
	case FamilyUPC:
		return c.UPC
	case FamilyBOLNumber:
		return c.BOLNumber
	default:
		return ""
	}
}

// NonEmpty returns the families with a non-empty value set, in canonical
// priority order.
func (c ClaimIdentifiers) NonEmpty() []IdentifierFamily {
	var out []IdentifierFamily
	for _, f := range AllIdentifierFamilies {
		if c.Get(f) != "" {
			out = append(out, f)
		}
	}
	return out
}
