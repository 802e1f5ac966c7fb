package models

// CatalogRecord is a read-only snapshot of one catalog item joined with its
// cabinet, project, nomenclature type and stage.
// Stored across the items, cabinets, projects, nomenclature_types and stages tables.
type CatalogRecord struct {
	ID               int64  `json:"id"`
	Article          string `json:"article"` // Globally unique; the unit of deduplication
	Name             string `json:"name"`
	NameNorm         string `json:"name_norm"`
	CabinetCode      string `json:"cabinet_code"`
	ProjectCode      string `json:"project_code"`
	NomenclatureType string `json:"nomenclature_type"`
	Stage            string `json:"stage"`
	TimePerUnit      int    `json:"time_per_unit"` // Assembly time in minutes
	QuantityPerUnit  int    `json:"quantity_per_unit"`
}

// CatalogFilters restricts catalog lookups. Empty fields mean "no filter".
type CatalogFilters struct {
	CabinetCode string `json:"cabinet_code,omitempty"`
	ProjectCode string `json:"project_code,omitempty"`
}

// IsEmpty returns true if no filter is set.
func (f CatalogFilters) IsEmpty() bool {
	return f.CabinetCode == "" && f.ProjectCode == ""
}

// CatalogItemInput is a single row to be upserted into the catalog by the importer.
type CatalogItemInput struct {
	ProjectCode      string
	CabinetCode      string
	Article          string
	Name             string
	NameNorm         string
	NomenclatureType string
	Stage            string
	TimePerUnit      int
	QuantityPerUnit  int
}
