// Package matchindex builds the per-seller Document Index (§4.5): 17
// identifier_value -> []document maps over every parsed EvidenceDocument,
// combining structured extracted fields with regex-salvaged values from raw
// text. Built once per matching run by a single builder and shared
// read-only with every matcher batch (§5), the way the teacher's
// core.SchemaCache is a stats-tracked, build-once cache.
package matchindex

import (
	"regexp"
	"sort"
	"strings"

	"github.com/clarioclaims/engine/domain"
)

// rawTextPatterns are the regexes §4.5 names as "highly specific" enough to
// salvage an identifier from unstructured raw_text. Per the spec's Open
// Question, case_id and reimbursement_id are deliberately NOT included here
// — their source-language patterns are loose numeric matches that need
// tightening against real provider docs before raw-text extraction is safe
// for those two families in production.
var rawTextPatterns = map[domain.IdentifierFamily]*regexp.Regexp{
	domain.FamilyOrderID:      regexp.MustCompile(`\d{3}-\d{7}-\d{7}`),
	domain.FamilyTrackingNumber: regexp.MustCompile(`1Z[A-Z0-9]{16}|\d{20,22}|[A-Z]{2}\d{9}[A-Z]{2}`),
	domain.FamilyShipmentID:   regexp.MustCompile(`FBA[A-Z0-9]{6,12}`),
	domain.FamilyFNSKU:        regexp.MustCompile(`X[0-9A-Z]{9}`),
	domain.FamilyLPN:          regexp.MustCompile(`LPN[A-Z0-9]{6,12}`),
}

// Index is the immutable, per-seller multi-key index over parsed documents.
// Once Build returns, an Index is read-only and safe to share across
// concurrent matcher batches without synchronization.
type Index struct {
	seller domain.SellerID
	maps   map[domain.IdentifierFamily]map[string][]domain.EvidenceDocument
}

// Build constructs an Index from every document belonging to seller whose
// ParserStatus is Completed, or whose identifiers can be salvaged from
// RawText. Documents that are neither are skipped (§4.5).
func Build(seller domain.SellerID, documents []domain.EvidenceDocument) *Index {
	idx := &Index{
		seller: seller,
		maps:   make(map[domain.IdentifierFamily]map[string][]domain.EvidenceDocument, len(domain.AllIdentifierFamilies)),
	}
	for _, f := range domain.AllIdentifierFamilies {
		idx.maps[f] = make(map[string][]domain.EvidenceDocument)
	}

	for _, doc := range documents {
		if doc.SellerID != seller {
			continue // defensive: never let a foreign-seller document into this index
		}
		if doc.ParserStatus != domain.ParserCompleted && strings.TrimSpace(doc.RawText) == "" {
			continue
		}
		idx.index(doc)
	}

	return idx
}

func (idx *Index) index(doc domain.EvidenceDocument) {
	for _, family := range domain.AllIdentifierFamilies {
		values := extractValues(doc, family)
		for _, v := range values {
			idx.maps[family][v] = append(idx.maps[family][v], doc)
		}
	}
}

// extractValues combines structured extracted values with any raw-text
// regex matches for family, normalized to upper-case/trimmed and
// deduplicated per document, per §4.5.
func extractValues(doc domain.EvidenceDocument, family domain.IdentifierFamily) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(v string) {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	for _, v := range doc.Extracted.ByFamily(family) {
		add(v)
	}

	if pattern, ok := rawTextPatterns[family]; ok && doc.RawText != "" {
		for _, m := range pattern.FindAllString(doc.RawText, -1) {
			add(m)
		}
	}

	return out
}

// Lookup returns the documents indexed under value for family, ordered by
// the matcher's tie-break rule (§4.6): higher parser_confidence first, then
// more recently ingested, then lexicographically smaller document_id.
func (idx *Index) Lookup(family domain.IdentifierFamily, value string) []domain.EvidenceDocument {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return nil
	}
	docs := idx.maps[family][value]
	if len(docs) == 0 {
		return nil
	}
	out := make([]domain.EvidenceDocument, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ca, cb := rawConfidence(a), rawConfidence(b)
		if ca != cb {
			return ca > cb
		}
		if !a.IngestedAt.Equal(b.IngestedAt) {
			return a.IngestedAt.After(b.IngestedAt)
		}
		return a.DocumentID < b.DocumentID
	})
	return out
}

// Seller returns the seller this index was built for.
func (idx *Index) Seller() domain.SellerID { return idx.seller }

// rawConfidence returns the document's literal parser_confidence for
// tie-breaking, defaulting to 1.0 when undefined (§4.6 tie-break rule 1 —
// distinct from ConfidenceFactor's clipped multiplier used in scoring).
func rawConfidence(d domain.EvidenceDocument) float64 {
	if d.ParserConfidence == nil {
		return 1.0
	}
	return *d.ParserConfidence
}
