/*
catalog.go - Vehicle catalog with fixed-coupling reference data

The catalog is external, relatively static reference data: per company it maps
vehicle numbers to their type code and, for permanently coupled units, the
canonical ordered list of vehicles in the coupling. The coupling resolver
consults it when expanding a partial vehicle specification.

A fixed-coupling group lists ALL its members including the keyed vehicle, in
canonical order; every member carries the same group.
*/
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
)

// VehicleInfo is one catalog entry.
type VehicleInfo struct {
	Number   string `json:"number"`
	TypeCode string `json:"type_code,omitempty"`

	// FixedCoupling is the ordered member list of the vehicle's permanent
	// coupling, empty for free-standing vehicles.
	FixedCoupling []string `json:"fixed_coupling,omitempty"`
}

// VehicleCatalog looks up vehicle reference data per company.
type VehicleCatalog interface {
	// Vehicle returns the catalog entry for a company's vehicle number.
	Vehicle(company, number string) (VehicleInfo, bool)
}

// =============================================================================
// STATIC CATALOG - In-memory map, loadable from JSON
// =============================================================================

// StaticCatalog maps company -> vehicle number -> info.
type StaticCatalog map[string]map[string]VehicleInfo

func (c StaticCatalog) Vehicle(company, number string) (VehicleInfo, bool) {
	info, ok := c[company][number]
	return info, ok
}

// EmptyCatalog has no entries; expansion then passes explicit vehicles
// through unchanged.
var EmptyCatalog = StaticCatalog{}

// LoadCatalogFile reads a JSON catalog of the shape
// {"company": [{"number": "...", "type_code": "...", "fixed_coupling": [...]}, ...]}.
func LoadCatalogFile(path string) (StaticCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vehicle catalog: %w", err)
	}

	var perCompany map[string][]VehicleInfo
	if err := json.Unmarshal(raw, &perCompany); err != nil {
		return nil, fmt.Errorf("failed to parse vehicle catalog: %w", err)
	}

	catalog := make(StaticCatalog, len(perCompany))
	for company, vehicles := range perCompany {
		byNumber := make(map[string]VehicleInfo, len(vehicles))
		for _, v := range vehicles {
			byNumber[v.Number] = v
		}
		catalog[company] = byNumber
	}
	return catalog, nil
}
