package loopnet

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/nivhenn/property-agency/internal/property"
)

// parseListings flattens the advanced-search response. The API shape is
// loose: the address lives in a two-element "title" array, prices arrive as
// strings like "$1.699M", and unit/size/cap-rate facts hide inside nested
// "shortPropertyFacts" arrays.
func parseListings(data map[string]any) []property.Listing {
	results, _ := data["data"].([]any)
	listings := make([]property.Listing, 0, len(results))

	for _, raw := range results {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		listing := property.Listing{
			ListingID: listingID(item),
			AskPrice:  parsePrice(firstNonNil(item["price"], item["fullPrice"])),
			Raw:       item,
		}
		listing.Address, listing.City, listing.State, listing.ZipCode = parseTitle(item["title"])
		applyPropertyFacts(&listing, item["shortPropertyFacts"])

		if loc, ok := item["location"].(map[string]any); ok {
			space := cast.ToString(loc["availableSpace"])
			if strings.Contains(space, "Multi-Family") || strings.Contains(space, "Apartments") {
				listing.PropertyType = "multifamily"
			}
		}

		listings = append(listings, listing)
	}
	return listings
}

func listingID(item map[string]any) string {
	if id := cast.ToString(item["listingId"]); id != "" {
		return id
	}
	return "unknown"
}

// parseTitle splits ["123 Main St", "Los Angeles, CA 90047"] into its
// address components.
func parseTitle(v any) (address, city, state, zip string) {
	title, ok := v.([]any)
	if !ok || len(title) < 2 {
		return
	}
	address = cast.ToString(title[0])

	parts := strings.SplitN(cast.ToString(title[1]), ", ", 2)
	if len(parts) < 2 {
		return
	}
	city = parts[0]
	stateZip := strings.Fields(parts[1])
	if len(stateZip) > 0 {
		state = stateZip[0]
	}
	if len(stateZip) > 1 {
		zip = stateZip[1]
	}
	return
}

// applyPropertyFacts scans the nested fact arrays for cap rate, unit count,
// building size, and year built.
func applyPropertyFacts(listing *property.Listing, v any) {
	factGroups, ok := v.([]any)
	if !ok {
		return
	}
	for _, groupRaw := range factGroups {
		group, ok := groupRaw.([]any)
		if !ok {
			continue
		}
		for _, factRaw := range group {
			switch fact := factRaw.(type) {
			case string:
				if strings.Contains(fact, "%") && !strings.Contains(fact, "Cap") {
					listing.CapRate = parsePercentage(fact)
				} else if strings.Contains(fact, "Built in ") {
					listing.YearBuilt = safeInt(strings.Replace(fact, "Built in ", "", 1))
				}
			case []any:
				for i, fieldRaw := range fact {
					field, ok := fieldRaw.(string)
					if !ok || i == 0 {
						continue
					}
					value := cast.ToString(fact[i-1])
					switch {
					case strings.Contains(field, "Cap Rate"):
						listing.CapRate = parsePercentage(value)
					case strings.Contains(field, "Units"):
						listing.Units = safeInt(value)
					case strings.Contains(field, "SF Bldg"):
						listing.BuildingSize = safeFloat(strings.ReplaceAll(value, ",", ""))
					}
				}
			}
		}
	}
}

// parsePrice handles numeric prices and strings like "$1.699M" or "$850K".
func parsePrice(v any) float64 {
	if v == nil {
		return 0
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		return f
	}

	s := strings.ToUpper(strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(cast.ToString(v))))
	multiplier := 1.0
	switch {
	case strings.Contains(s, "M"):
		multiplier = 1_000_000
		s = strings.ReplaceAll(s, "M", "")
	case strings.Contains(s, "K"):
		multiplier = 1_000
		s = strings.ReplaceAll(s, "K", "")
	}
	f, err := cast.ToFloat64E(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return f * multiplier
}

func parsePercentage(s string) float64 {
	return safeFloat(strings.TrimSpace(strings.ReplaceAll(s, "%", "")))
}

func safeFloat(v any) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0
	}
	return f
}

func safeInt(v any) int {
	switch t := v.(type) {
	case string:
		n, err := cast.ToIntE(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	default:
		n, err := cast.ToIntE(v)
		if err != nil {
			return 0
		}
		return n
	}
}

func firstNonNil(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
