package fhir

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Bundle types used by this service.
const (
	BundleTypeCollection    = "collection"
	BundleTypeSearchset     = "searchset"
	BundleTypeBatchResponse = "batch-response"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Meta         *Meta         `json:"meta,omitempty"`
	Type         string        `json:"type"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
	Response *BundleResponse `json:"response,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

type BundleResponse struct {
	Status  string      `json:"status"`
	Outcome interface{} `json:"outcome,omitempty"`
}

func newBundle(bundleType string) *Bundle {
	now := time.Now().UTC()
	return &Bundle{
		ResourceType: "Bundle",
		ID:           uuid.NewString(),
		Type:         bundleType,
		Timestamp:    &now,
	}
}

// NewCollectionBundle wraps resources in a collection Bundle. Each entry gets
// a urn:uuid fullUrl.
func NewCollectionBundle(resources []interface{}) (*Bundle, error) {
	b := newBundle(BundleTypeCollection)
	b.Entry = make([]BundleEntry, 0, len(resources))
	for i, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal entry %d: %w", i, err)
		}
		b.Entry = append(b.Entry, BundleEntry{
			FullURL:  "urn:uuid:" + uuid.NewString(),
			Resource: raw,
		})
	}
	total := len(b.Entry)
	b.Total = &total
	return b, nil
}

// NewSearchBundle creates a searchset Bundle with a self link.
func NewSearchBundle(resources []interface{}, total int, selfURL string) *Bundle {
	b := newBundle(BundleTypeSearchset)
	b.Total = &total
	b.Link = []BundleLink{{Relation: "self", URL: selfURL}}
	b.Entry = make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		raw, _ := json.Marshal(r)
		b.Entry = append(b.Entry, BundleEntry{
			Resource: raw,
			Search:   &BundleSearch{Mode: "match"},
		})
	}
	return b
}

// BatchResult is one outcome of a batch operation.
type BatchResult struct {
	Resource interface{}
	Outcome  *OperationOutcome
	Status   int
}

// NewBatchResponse creates a batch-response Bundle preserving input order.
func NewBatchResponse(results []BatchResult) *Bundle {
	b := newBundle(BundleTypeBatchResponse)
	b.Entry = make([]BundleEntry, 0, len(results))
	for _, r := range results {
		entry := BundleEntry{
			Response: &BundleResponse{
				Status: fmt.Sprintf("%d %s", r.Status, http.StatusText(r.Status)),
			},
		}
		if r.Resource != nil {
			raw, _ := json.Marshal(r.Resource)
			entry.Resource = raw
		}
		if r.Outcome != nil {
			entry.Response.Outcome = r.Outcome
		}
		b.Entry = append(b.Entry, entry)
	}
	return b
}
