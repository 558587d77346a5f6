package leboncoin

import (
	"net/url"
	"strings"
	"testing"

	"car-scraper/models"
)

func peugeotSpec() models.FilterSpec {
	return models.FilterSpec{
		Brand: "Peugeot", Model: "208", MinPrice: 5000, MaxPrice: 15000,
		MinYear: 2015, MaxMileage: 150000, Region: "21", City: "Lyon", RadiusKm: 50,
	}
}

func parseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u.Query()
}

func TestBuildSearchURLEncodesFilters(t *testing.T) {
	raw := BuildSearchURL(DefaultBaseURL, DefaultCategory, peugeotSpec())
	if !strings.HasPrefix(raw, DefaultBaseURL+"?") {
		t.Fatalf("unexpected base: %s", raw)
	}

	q := parseQuery(t, raw)
	want := map[string]string{
		"category":    "2",
		"text":        "Peugeot 208",
		"price":       "5000-15000",
		"mileage":     "0-150000",
		"year":        "2015-",
		"reg":         "21",
		"sort":        "date",
		"locations":   "Lyon__50000",
		"search_mode": "around",
	}
	for key, val := range want {
		if got := q.Get(key); got != val {
			t.Errorf("%s: got %q, want %q", key, got, val)
		}
	}
}

func TestBuildSearchURLWithoutCity(t *testing.T) {
	spec := peugeotSpec()
	spec.City = "   "

	q := parseQuery(t, BuildSearchURL("", "", spec))
	if q.Has("locations") || q.Has("search_mode") {
		t.Errorf("no geo clause expected without a city, got %v", q)
	}
	if q.Get("reg") != "21" {
		t.Errorf("reg: got %q, want 21", q.Get("reg"))
	}
}

func TestBuildSearchURLTrimsText(t *testing.T) {
	spec := peugeotSpec()
	spec.Model = ""

	q := parseQuery(t, BuildSearchURL("", "", spec))
	if got := q.Get("text"); got != "Peugeot" {
		t.Errorf("text: got %q, want %q", got, "Peugeot")
	}
}

func TestBuildSearchURLDeterministic(t *testing.T) {
	a := BuildSearchURL(DefaultBaseURL, DefaultCategory, peugeotSpec())
	for i := 0; i < 20; i++ {
		if b := BuildSearchURL(DefaultBaseURL, DefaultCategory, peugeotSpec()); b != a {
			t.Fatalf("non-deterministic output:\n%s\n%s", a, b)
		}
	}
}

func TestRadiusClampedBeforeConversion(t *testing.T) {
	tests := []struct {
		radiusKm int
		want     string
	}{
		{-100, "Lyon__5000"},
		{0, "Lyon__5000"},
		{4, "Lyon__5000"},
		{5, "Lyon__5000"},
		{30, "Lyon__30000"},
		{500, "Lyon__500000"},
		{501, "Lyon__500000"},
		{1 << 30, "Lyon__500000"},
	}

	for _, tt := range tests {
		spec := peugeotSpec()
		spec.RadiusKm = tt.radiusKm
		q := parseQuery(t, BuildSearchURL("", "", spec))
		if got := q.Get("locations"); got != tt.want {
			t.Errorf("radius %d: got %q, want %q", tt.radiusKm, got, tt.want)
		}
	}
}
