package fulfillment

import (
	"fmt"
)

// Tier is the outcome class of a fulfillment request.
type Tier int

const (
	Tier1WarehouseSufficient Tier = iota + 1
	Tier2Manufacturable
	Tier3Unfulfillable
)

var tierNames = map[Tier]string{
	Tier1WarehouseSufficient: "TIER_1_WAREHOUSE_SUFFICIENT",
	Tier2Manufacturable:      "TIER_2_MANUFACTURABLE",
	Tier3Unfulfillable:       "TIER_3_UNFULFILLABLE",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ReasonNoProducer marks a Tier 3 outcome where no facility makes the product.
const ReasonNoProducer = "no_producer"

// ReasonMaterialShortage marks a Tier 3 outcome caused by understocked parts.
const ReasonMaterialShortage = "material_shortage"

// WarehouseStock is one warehouse's on-hand quantity of the product.
type WarehouseStock struct {
	ID        string         `json:"id"`
	Available int            `json:"available"`
	Attrs     map[string]any `json:"attributes"`
}

// Material is one raw material requirement, pooled across facilities and
// scaled by the shortfall.
type Material struct {
	PartID          string  `json:"part_id"`
	PartType        string  `json:"part_type"`
	PerUnitQuantity float64 `json:"per_unit_quantity"`
	PerUnitCost     float64 `json:"per_unit_cost"`
	PerUnitLeadTime float64 `json:"per_unit_lead_time"`
	Required        int     `json:"required"`
	Cost            float64 `json:"cost"`
	LeadTime        float64 `json:"lead_time"`
	Stock           int     `json:"stock"`
	Remaining       int     `json:"remaining"`
}

// Supplier is a candidate source for an understocked material. Known is
// false when the capability table names a supplier absent from the graph.
type Supplier struct {
	ID          string  `json:"id"`
	Known       bool    `json:"known"`
	Location    string  `json:"location,omitempty"`
	Reliability float64 `json:"reliability"`
	Capacity    float64 `json:"capacity"`
	SizeBucket  string  `json:"size_bucket,omitempty"`
}

// Shortage is a material whose stock cannot cover its requirement.
type Shortage struct {
	PartID    string     `json:"part_id"`
	PartType  string     `json:"part_type"`
	Required  int        `json:"required"`
	Stock     int        `json:"stock"`
	Missing   int        `json:"missing"`
	Suppliers []Supplier `json:"suppliers"`
}

// Outcome is the terminal answer for one request. Fields beyond Tier are
// filled as far as the resolution progressed.
type Outcome struct {
	Tier      Tier   `json:"tier"`
	ProductID string `json:"product_id"`
	Units     int    `json:"units"`
	Reason    string `json:"reason,omitempty"`

	Available  int              `json:"available"`
	Warehouses []WarehouseStock `json:"warehouses"`

	Shortfall  int        `json:"shortfall,omitempty"`
	Facilities []string   `json:"facilities,omitempty"`
	Materials  []Material `json:"materials,omitempty"`
	TotalCost  float64    `json:"total_cost,omitempty"`
	TotalTime  float64    `json:"total_time,omitempty"`

	Shortages []Shortage `json:"shortages,omitempty"`
}
