package crew

import (
	"strings"
	"testing"

	"github.com/nivhenn/property-agency/internal/property"
	"github.com/nivhenn/property-agency/internal/serper"
)

func TestFormatListingDetails(t *testing.T) {
	l := property.Listing{
		Address:      "14225 Calvert St",
		City:         "Van Nuys",
		State:        "CA",
		AskPrice:     1699000,
		BuildingSize: 6200,
		PropertyType: "multifamily",
		CapRate:      5.72,
		YearBuilt:    1962,
		Units:        8,
	}

	got := formatListingDetails(l)
	for _, want := range []string{
		"Address: 14225 Calvert St",
		"City: Van Nuys, State: CA",
		"Asking Price: $1,699,000",
		"Building Size: 6,200 SF",
		"Property Type: multifamily",
		"Cap Rate: 5.72%",
		"Year Built: 1962",
		"Units: 8",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("details missing %q:\n%s", want, got)
		}
	}
}

func TestFormatListingDetailsMissingFields(t *testing.T) {
	got := formatListingDetails(property.Listing{City: "Los Angeles"})
	for _, want := range []string{
		"Address: N/A",
		"Asking Price: N/A",
		"Cap Rate: N/A",
		"Units: N/A",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("details missing %q:\n%s", want, got)
		}
	}
}

func TestFormatLocationDetails(t *testing.T) {
	tests := []struct {
		name    string
		listing property.Listing
		want    string
	}{
		{"city and state", property.Listing{City: "Van Nuys", State: "CA"}, "Van Nuys, CA"},
		{"city only", property.Listing{City: "Van Nuys"}, "Van Nuys"},
		{"nothing", property.Listing{}, "Unknown location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLocationDetails(tt.listing); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildNewsQuery(t *testing.T) {
	l := property.Listing{City: "Van Nuys", State: "CA", PropertyType: "multifamily"}
	got := buildNewsQuery(l)
	want := "Van Nuys CA multifamily commercial real estate"
	if got != want {
		t.Fatalf("query = %q, want %q", got, want)
	}

	if got := buildNewsQuery(property.Listing{}); got != "commercial real estate" {
		t.Fatalf("empty listing query = %q", got)
	}
}

func TestFormatNewsContext(t *testing.T) {
	resp := serper.NewsResponse{Items: []serper.NewsItem{
		{Title: "Zoning overhaul approved", Date: "2 days ago", Source: "LA Times", Snippet: "Council vote", Link: "https://example.com/a"},
		{},
	}}

	got := formatNewsContext(resp)
	if !strings.Contains(got, "- [2 days ago] LA Times: Zoning overhaul approved") {
		t.Fatalf("missing formatted item:\n%s", got)
	}
	if !strings.Contains(got, "Unknown source: Untitled") {
		t.Fatalf("missing placeholder fallbacks:\n%s", got)
	}
}

func TestFormatNewsContextEmpty(t *testing.T) {
	got := formatNewsContext(serper.NewsResponse{Note: "Serper error 500"})
	if got != "No Serper news items available.\nNote: Serper error 500" {
		t.Fatalf("got %q", got)
	}
	if got := formatNewsContext(serper.NewsResponse{}); got != "No Serper news items available." {
		t.Fatalf("got %q", got)
	}
}

func TestFormatNewsContextCapsAtEight(t *testing.T) {
	items := make([]serper.NewsItem, 12)
	for i := range items {
		items[i] = serper.NewsItem{Title: "story"}
	}
	got := formatNewsContext(serper.NewsResponse{Items: items})
	if n := strings.Count(got, "- ["); n != 8 {
		t.Fatalf("rendered %d items, want 8", n)
	}
}

func TestFillTemplateLeavesJSONBracesAlone(t *testing.T) {
	got := fillTemplate(investorTaskTemplate, map[string]string{"listing_details": "Address: X"})
	if !strings.Contains(got, "Address: X") {
		t.Fatalf("placeholder not substituted")
	}
	if strings.Contains(got, "{listing_details}") {
		t.Fatalf("placeholder left behind")
	}
	if !strings.Contains(got, `"score_1_to_100"`) {
		t.Fatalf("JSON contract stripped from template")
	}
}

func TestGroupDigits(t *testing.T) {
	tests := []struct{ in, want string }{
		{"5", "5"},
		{"999", "999"},
		{"1000", "1,000"},
		{"1699000", "1,699,000"},
		{"123456789", "123,456,789"},
	}
	for _, tt := range tests {
		if got := groupDigits(tt.in); got != tt.want {
			t.Errorf("groupDigits(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
