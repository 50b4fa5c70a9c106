package documents

import (
	"sort"
	"strings"
)

// Catalog maps a vehicle type to the ordered document types it must supply.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	entries map[string][]string
}

// NewCatalog builds a catalog with keys and document types normalized to
// lowercase. Duplicate document types within an entry are dropped.
func NewCatalog(entries map[string][]string) *Catalog {
	c := &Catalog{entries: make(map[string][]string, len(entries))}
	for vehicleType, types := range entries {
		key := normalizeTag(vehicleType)
		if key == "" {
			continue
		}
		seen := make(map[string]bool, len(types))
		ordered := make([]string, 0, len(types))
		for _, t := range types {
			t = normalizeTag(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			ordered = append(ordered, t)
		}
		c.entries[key] = ordered
	}
	return c
}

var bikeDocuments = []string{"license", "rc", "pan", "aadhaar"}

// DefaultCatalog returns the production requirement table.
func DefaultCatalog() *Catalog {
	fourWheel := append(append([]string{}, bikeDocuments...), "insurance", "permit", "fitnesscertificate")
	return NewCatalog(map[string][]string{
		"bike": bikeDocuments,
		"auto": fourWheel,
		"car":  fourWheel,
	})
}

// RequiredTypes returns the required document types for vehicleType, or an
// empty slice for an unknown type. An empty result means aggregation does
// not apply; it never means all requirements are met.
func (c *Catalog) RequiredTypes(vehicleType string) []string {
	types := c.entries[normalizeTag(vehicleType)]
	out := make([]string, len(types))
	copy(out, types)
	return out
}

// Allows reports whether docType is accepted for vehicleType. Unknown vehicle
// types accept any document type.
func (c *Catalog) Allows(vehicleType, docType string) bool {
	types, ok := c.entries[normalizeTag(vehicleType)]
	if !ok || len(types) == 0 {
		return true
	}
	docType = normalizeTag(docType)
	for _, t := range types {
		if t == docType {
			return true
		}
	}
	return false
}

// VehicleTypes lists known vehicle types in sorted order.
func (c *Catalog) VehicleTypes() []string {
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
