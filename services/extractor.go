package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"car-scraper/models"
	"car-scraper/scraper/leboncoin"
	"car-scraper/utils"
)

const (
	fallbackTitle    = "Annonce"
	fallbackLocation = "Inconnue"
)

var (
	// yearRegexp matches a feature token that is exactly a four-digit year
	yearRegexp = regexp.MustCompile(`^\d{4}$`)
	// nonDigitRegexp strips everything but digits from prices and mileages
	nonDigitRegexp = regexp.MustCompile(`\D`)
)

// Selectors locates the parts of a result card.
type Selectors struct {
	Card     string
	Title    string
	Price    string
	Features string
	Location string
	Image    string
	Link     string
}

// DefaultSelectors matches the marketplace's result-card markup.
var DefaultSelectors = Selectors{
	Card:     leboncoin.CardSelector,
	Title:    `[data-qa-id="aditem_title"]`,
	Price:    `[data-qa-id="aditem_price"]`,
	Features: `[data-qa-id="aditem_features"] li`,
	Location: `[data-qa-id="aditem_location"]`,
	Image:    `picture img`,
	Link:     `a[href]`,
}

// Extractor turns result cards into Listings.
type Extractor struct {
	logger    *utils.Logger
	selectors Selectors
}

// NewExtractor creates an Extractor using DefaultSelectors.
func NewExtractor(logger *utils.Logger) *Extractor {
	return &Extractor{logger: logger, selectors: DefaultSelectors}
}

// Extract reads every result card under root and keeps the listings with a
// price and a year of at least minYear. Relative links are resolved against
// pageURL. Extraction never fails: unreadable fields fall back to defaults.
func (e *Extractor) Extract(root Node, pageURL string, minYear int) []models.Listing {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	cards := root.Find(e.selectors.Card)
	seen := make(map[string]struct{}, len(cards))
	result := make([]models.Listing, 0, len(cards))

	for _, card := range cards {
		l := e.extractCard(card, base)

		if l.Price <= 0 || l.Year < minYear {
			e.logger.Debug("[extractor] Dropping %q (price %d, year %d)", l.Title, l.Price, l.Year)
			continue
		}

		if _, dup := seen[l.ID]; dup {
			e.logger.Warn("[extractor] Duplicate listing id %q kept", l.ID)
		}
		seen[l.ID] = struct{}{}
		result = append(result, l)
	}

	e.logger.Info("[extractor] Extracted %d cards → %d listings (dropped %d)",
		len(cards), len(result), len(cards)-len(result))
	return result
}

func (e *Extractor) extractCard(card Node, base *url.URL) models.Listing {
	title := firstText(card, e.selectors.Title)
	if title == "" {
		title = fallbackTitle
	}

	price := parseDigits(firstText(card, e.selectors.Price))

	features := make([]string, 0, 4)
	for _, li := range card.Find(e.selectors.Features) {
		features = append(features, normaliseText(li.Text()))
	}

	location := firstText(card, e.selectors.Location)
	if location == "" {
		location = fallbackLocation
	}

	image := ""
	if imgs := card.Find(e.selectors.Image); len(imgs) > 0 {
		if src, ok := imgs[0].Attr("src"); ok {
			image = resolve(base, src)
		}
	}

	l := models.Listing{
		Title:    title,
		Price:    price,
		Year:     parseYear(features),
		Mileage:  parseMileage(features),
		Location: location,
		Image:    image,
		URL:      resolve(base, e.cardLink(card)),
	}
	l.ID = listingID(l)
	return l
}

// cardLink returns the card's own href when the card is the anchor,
// otherwise the first link inside it.
func (e *Extractor) cardLink(card Node) string {
	if href, ok := card.Attr("href"); ok && strings.TrimSpace(href) != "" {
		return href
	}
	if links := card.Find(e.selectors.Link); len(links) > 0 {
		href, _ := links[0].Attr("href")
		return href
	}
	return ""
}

// listingID keys a listing by its URL, or by title and price when the card
// has no link. The fallback is not guaranteed to be unique.
func listingID(l models.Listing) string {
	if l.URL != "" {
		return l.URL
	}
	return fmt.Sprintf("%s-%d", l.Title, l.Price)
}

func parseYear(features []string) int {
	for _, f := range features {
		if yearRegexp.MatchString(f) {
			year, err := strconv.Atoi(f)
			if err == nil {
				return year
			}
		}
	}
	return 0
}

func parseMileage(features []string) int {
	for _, f := range features {
		if strings.Contains(strings.ToLower(f), "km") {
			return parseDigits(f)
		}
	}
	return 0
}

// parseDigits keeps only the digits of raw and parses them; 0 when nothing
// usable remains.
func parseDigits(raw string) int {
	digits := nonDigitRegexp.ReplaceAllString(raw, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func firstText(n Node, selector string) string {
	found := n.Find(selector)
	if len(found) == 0 {
		return ""
	}
	return normaliseText(found[0].Text())
}

func resolve(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
