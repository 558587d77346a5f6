package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car-scraper/models"
	"car-scraper/scraper/leboncoin"
	"car-scraper/storage"
	"car-scraper/utils"
)

var peugeotSpec = models.FilterSpec{
	Brand: "Peugeot", Model: "208", MinPrice: 5000, MaxPrice: 15000,
	MinYear: 2015, MaxMileage: 150000, Region: "21", City: "Lyon", RadiusKm: 50,
}

type fakeFetcher struct {
	mu   sync.Mutex
	html string
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (*leboncoin.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, pageURL)
	if f.err != nil {
		return nil, f.err
	}
	return &leboncoin.Page{URL: pageURL, HTML: f.html}, nil
}

type staticFilters struct {
	spec models.FilterSpec
	err  error
}

func (s staticFilters) Default() (models.FilterSpec, error) { return s.spec, s.err }

type recordingSink struct {
	name  string
	err   error
	runID string
	got   []models.ScoredListing
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Write(_ context.Context, runID string, snapshot []models.ScoredListing) error {
	r.runID = runID
	r.got = snapshot
	return r.err
}

func (r *recordingSink) Close() error { return nil }

func adCard(id, title, price string, features ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<a data-qa-id="aditem_container" href="/ad/voitures/%s">`, id)
	fmt.Fprintf(&b, `<p data-qa-id="aditem_title">%s</p>`, title)
	fmt.Fprintf(&b, `<span data-qa-id="aditem_price">%s</span>`, price)
	b.WriteString(`<ul data-qa-id="aditem_features">`)
	for _, f := range features {
		fmt.Fprintf(&b, `<li>%s</li>`, f)
	}
	b.WriteString(`</ul><p data-qa-id="aditem_location">Lyon</p></a>`)
	return b.String()
}

// peugeotPage holds three usable cards, one without a price and one too old.
func peugeotPage() string {
	return `<html><body><div>` +
		adCard("1", "Peugeot 208 Active", "9 000 €", "2018", "80 000 km") +
		adCard("2", "Peugeot 208 sans prix", "", "2020", "10 000 km") +
		adCard("3", "Peugeot 208 Allure", "12 000 €", "2020", "40 000 km") +
		adCard("4", "Peugeot 208 ancienne", "5 500 €", "2010", "140 000 km") +
		adCard("5", "Peugeot 208 Like", "15 000 €", "2021", "20 000 km") +
		`</div></body></html>`
}

func newTestPipeline(t *testing.T, fetcher Fetcher, sinks ...storage.Sink) (*Pipeline, *storage.SnapshotStore) {
	t.Helper()
	logger := utils.NewDiscardLogger()
	store := storage.NewSnapshotStore(filepath.Join(t.TempDir(), "listings.json"), logger)
	p := New(Options{}, fetcher, staticFilters{spec: peugeotSpec}, store, logger, sinks...)
	p.newRunID = func() string { return "run-test" }
	return p, store
}

func TestRunEndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{html: peugeotPage()}
	p, store := newTestPipeline(t, fetcher)

	spec := peugeotSpec
	got, err := p.Run(context.Background(), &spec)
	require.NoError(t, err)

	require.Len(t, fetcher.urls, 1)
	u, err := url.Parse(fetcher.urls[0])
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "Peugeot 208", q.Get("text"))
	assert.Equal(t, "5000-15000", q.Get("price"))
	assert.Equal(t, "Lyon__50000", q.Get("locations"))

	require.Len(t, got, 3)
	for _, l := range got {
		assert.NotEqual(t, 0, l.Price)
		assert.GreaterOrEqual(t, l.Year, 2015)
	}

	// Average of the survivors only: (9000+12000+15000)/3 = 12000.
	byID := map[string]models.ScoredListing{}
	for _, l := range got {
		byID[strings.TrimPrefix(l.ID, "https://www.leboncoin.fr/ad/voitures/")] = l
	}
	assert.Equal(t, -3000, byID["1"].PriceDelta)
	assert.Equal(t, 0, byID["3"].PriceDelta)
	assert.Equal(t, 3000, byID["5"].PriceDelta)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}

	assert.Equal(t, got, store.Read())
}

func TestRunUsesDefaultFilters(t *testing.T) {
	fetcher := &fakeFetcher{html: peugeotPage()}
	p, _ := newTestPipeline(t, fetcher)

	_, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, fetcher.urls[0], "text=Peugeot+208")
}

func TestRunDefaultFiltersUnavailable(t *testing.T) {
	logger := utils.NewDiscardLogger()
	store := storage.NewSnapshotStore(filepath.Join(t.TempDir(), "listings.json"), logger)
	fetcher := &fakeFetcher{html: peugeotPage()}
	p := New(Options{}, fetcher, staticFilters{err: errors.New("no file")}, store, logger)

	_, err := p.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, fetcher.urls)
}

func TestRunPropagatesFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: page mentions %q", leboncoin.ErrAccessRestricted, "captcha")}
	p, store := newTestPipeline(t, fetcher)

	previous := []models.ScoredListing{{Listing: models.Listing{ID: "old", Price: 1}}}
	require.NoError(t, store.Write(previous))

	_, err := p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, leboncoin.ErrAccessRestricted)
	assert.Equal(t, previous, store.Read())
}

func TestRunEmptyPageWritesEmptySnapshot(t *testing.T) {
	fetcher := &fakeFetcher{html: `<html><body>Aucune annonce</body></html>`}
	p, store := newTestPipeline(t, fetcher)

	got, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, store.Read())
}

func TestRunSinksAreBestEffort(t *testing.T) {
	good := &recordingSink{name: "good"}
	bad := &recordingSink{name: "bad", err: errors.New("disk full")}
	p, _ := newTestPipeline(t, &fakeFetcher{html: peugeotPage()}, bad, good)

	got, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, got, good.got)
	assert.Equal(t, "run-test", good.runID)
	assert.Equal(t, got, bad.got)
}
