package domain

import "time"

// ParserStatus tracks the async document parsing lifecycle.
type ParserStatus string

const (
	ParserPending    ParserStatus = "pending"
	ParserProcessing ParserStatus = "processing"
	ParserCompleted  ParserStatus = "completed"
	ParserFailed     ParserStatus = "failed"
)

// ExtractedIdentifiers mirrors the parser service's structured output: each
// family may appear as a plural list (the parser found several candidate
// values) which the Document Index combines with any singular form.
type ExtractedIdentifiers struct {
	OrderIDs           []string
	TransactionIDs     []string
	ReimbursementIDs   []string
	CaseIDs            []string
	TrackingNumbers    []string
	ShipmentIDs        []string
	RemovalOrderIDs    []string
	AmazonReferenceIDs []string
	RMANumbers         []string
	LPNs               []string
	FNSKUs             []string
	ASINs              []string
	SKUs               []string
	UPCs               []string
	BOLNumbers         []string
	InvoiceNumbers     []string
	PONumbers          []string
}

// ByFamily returns the extracted values for family, or nil.
func (e ExtractedIdentifiers) ByFamily(family IdentifierFamily) []string {
	switch family {
	case FamilyOrderID:
		return e.OrderIDs
	case FamilyTransactionID:
		return e.TransactionIDs
	case FamilyReimbursementID:
		return e.ReimbursementIDs
	case FamilyCaseID:
		return e.CaseIDs
	case FamilyTrackingNumber:
		return e.TrackingNumbers
	case FamilyShipmentID:
		return e.ShipmentIDs
	case FamilyRemovalOrderID:
		return e.RemovalOrderIDs
	case FamilyAmazonReferenceID:
		return e.AmazonReferenceIDs
	case FamilyRMANumber:
		return e.RMANumbers
	case FamilyLPN:
		return e.LPNs
	case FamilyFNSKU:
		return e.FNSKUs
	case FamilyASIN:
		return e.ASINs
	case FamilySKU:
		return e.SKUs
	case FamilyUPC:
		return e.UPCs
	case FamilyBOLNumber:
		return e.BOLNumbers
	case FamilyInvoiceNumber:
		return e.InvoiceNumbers
	case FamilyPONumber:
		return e.PONumbers
	default:
		return nil
	}
}

// EvidenceDocument is a parsed (or parsing) piece of supporting evidence.
type EvidenceDocument struct {
	DocumentID string
	SellerID   SellerID
	Provider   string
	Filename   string
	DocType    string

	ParserStatus     ParserStatus
	ParserConfidence *float64 // nil means "undefined" per §4.6's clip() rule

	Extracted ExtractedIdentifiers
	RawText   string

	IngestedAt time.Time
}

// ConfidenceFactor returns clip(parser_confidence, 0.5, 1.0), defaulting to
// 1.0 when undefined, exactly as §4.6 specifies.
func (d EvidenceDocument) ConfidenceFactor() float64 {
	if d.ParserConfidence == nil {
		return 1.0
	}
	v := *d.ParserConfidence
	if v < 0.5 {
		return 0.5
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
