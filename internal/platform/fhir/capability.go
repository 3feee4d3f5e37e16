package fhir

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// OperationCapability describes an operation (resource-level or system-level).
type OperationCapability struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

type resourceEntry struct {
	resourceType string
	interactions []string
	operations   []OperationCapability
}

// CapabilityBuilder accumulates resource registrations from domain modules and
// builds the CapabilityStatement served at /fhir/metadata.
type CapabilityBuilder struct {
	mu        sync.RWMutex
	resources map[string]*resourceEntry
	systemOps []OperationCapability

	ServerName    string
	ServerVersion string
	BaseURL       string
}

func NewCapabilityBuilder(name, version, baseURL string) *CapabilityBuilder {
	return &CapabilityBuilder{
		resources:     make(map[string]*resourceEntry),
		ServerName:    name,
		ServerVersion: version,
		BaseURL:       baseURL,
	}
}

// AddResource registers interactions and operations for a resource type.
// Calling it twice for the same type merges the lists.
func (b *CapabilityBuilder) AddResource(resourceType string, interactions []string, ops ...OperationCapability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.resources[resourceType]
	if !ok {
		e = &resourceEntry{resourceType: resourceType}
		b.resources[resourceType] = e
	}
	e.interactions = append(e.interactions, interactions...)
	e.operations = append(e.operations, ops...)
}

// AddOperation registers a system-level operation such as $validate.
func (b *CapabilityBuilder) AddOperation(ops ...OperationCapability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.systemOps = append(b.systemOps, ops...)
}

// Build returns the CapabilityStatement as a JSON-ready map.
func (b *CapabilityBuilder) Build() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.resources))
	for t := range b.resources {
		types = append(types, t)
	}
	sort.Strings(types)

	resources := make([]map[string]interface{}, 0, len(types))
	for _, t := range types {
		e := b.resources[t]
		interactions := make([]map[string]string, 0, len(e.interactions))
		for _, i := range e.interactions {
			interactions = append(interactions, map[string]string{"code": i})
		}
		r := map[string]interface{}{
			"type":        t,
			"interaction": interactions,
		}
		if len(e.operations) > 0 {
			r["operation"] = e.operations
		}
		resources = append(resources, r)
	}

	rest := map[string]interface{}{
		"mode":     "server",
		"resource": resources,
	}
	if len(b.systemOps) > 0 {
		rest["operation"] = b.systemOps
	}

	return map[string]interface{}{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"date":         time.Now().UTC().Format("2006-01-02"),
		"kind":         "instance",
		"software": map[string]string{
			"name":    b.ServerName,
			"version": b.ServerVersion,
		},
		"implementation": map[string]string{
			"description": b.ServerName,
			"url":         b.BaseURL,
		},
		"fhirVersion": "4.0.1",
		"format":      []string{"json"},
		"rest":        []map[string]interface{}{rest},
	}
}

// Handler serves the CapabilityStatement.
func (b *CapabilityBuilder) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, b.Build())
	}
}
