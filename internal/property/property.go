// Package property holds the listing data model shared by the listing
// source and the analysis crew.
package property

import "github.com/spf13/cast"

// Listing is a simplified commercial property record. It is immutable once
// constructed; Raw keeps the untouched source fields for auditing and for
// fallback lookups when the normalized fields are empty.
type Listing struct {
	ListingID    string         `json:"listing_id"`
	Address      string         `json:"address,omitempty"`
	City         string         `json:"city,omitempty"`
	State        string         `json:"state,omitempty"`
	ZipCode      string         `json:"zip_code,omitempty"`
	AskPrice     float64        `json:"ask_price,omitempty"`
	BuildingSize float64        `json:"building_size,omitempty"`
	PropertyType string         `json:"property_type,omitempty"`
	CapRate      float64        `json:"cap_rate,omitempty"`
	YearBuilt    int            `json:"year_built,omitempty"`
	Units        int            `json:"units,omitempty"`
	Raw          map[string]any `json:"raw,omitempty"`
}

// BestAddress returns the normalized address, falling back to common raw
// source fields.
func (l Listing) BestAddress() string {
	if l.Address != "" {
		return l.Address
	}
	return l.rawString("address", "primary_address", "street")
}

// BestZip returns the normalized zip, falling back to common raw source
// fields.
func (l Listing) BestZip() string {
	if l.ZipCode != "" {
		return l.ZipCode
	}
	return l.rawString("zip_code", "zip", "postal_code")
}

func (l Listing) rawString(keys ...string) string {
	for _, key := range keys {
		if v, ok := l.Raw[key]; ok {
			if s := cast.ToString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// SearchParams are the LoopNet advanced-search filters. Zero-valued fields
// are omitted from the request payload.
type SearchParams struct {
	LocationID   string   `json:"locationId,omitempty"`
	LocationType string   `json:"locationType,omitempty"`
	Page         int      `json:"page,omitempty"`
	Size         int      `json:"size,omitempty"`
	PriceMin     *float64 `json:"priceMin,omitempty"`
	PriceMax     *float64 `json:"priceMax,omitempty"`
	SizeMin      *float64 `json:"buildingSizeMin,omitempty"`
	SizeMax      *float64 `json:"buildingSizeMax,omitempty"`
	PropertyType string   `json:"propertyType,omitempty"`
	CapRateMin   *float64 `json:"capRateMin,omitempty"`
	CapRateMax   *float64 `json:"capRateMax,omitempty"`
	YearBuiltMin *int     `json:"yearBuiltMin,omitempty"`
	YearBuiltMax *int     `json:"yearBuiltMax,omitempty"`
}
