package leboncoin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	"car-scraper/utils"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestPickFingerprintDeterministic(t *testing.T) {
	for i, want := range fingerprints {
		idx := i
		s := NewSession(Options{}, utils.NewDiscardLogger(),
			WithRand(func(n int) int { return idx % n }),
			WithSleep(noSleep))

		if got := s.pickFingerprint(); got.Name != want.Name {
			t.Errorf("pick %d: got %q, want %q", i, got.Name, want.Name)
		}
	}
}

func TestFingerprintPoolIsDesktopFrench(t *testing.T) {
	for _, fp := range fingerprints {
		if fp.Width != 1366 || fp.Height != 768 {
			t.Errorf("%s: viewport %dx%d, want 1366x768", fp.Name, fp.Width, fp.Height)
		}
		if fp.Locale != "fr-FR" {
			t.Errorf("%s: locale %q, want fr-FR", fp.Name, fp.Locale)
		}
		if strings.Contains(fp.UserAgent, "Mobile") || strings.Contains(fp.UserAgent, "Headless") {
			t.Errorf("%s: user agent is not a desktop browser: %s", fp.Name, fp.UserAgent)
		}
	}
}

func TestJitterBounds(t *testing.T) {
	low := NewSession(Options{}, utils.NewDiscardLogger(), WithRand(func(int) int { return 0 }))
	if got := low.jitter(dwellMin, dwellMax); got != dwellMin {
		t.Errorf("lowest jitter: got %v, want %v", got, dwellMin)
	}

	high := NewSession(Options{}, utils.NewDiscardLogger(), WithRand(func(n int) int { return n - 1 }))
	if got := high.jitter(releaseMin, releaseMax); got != releaseMax {
		t.Errorf("highest jitter: got %v, want %v", got, releaseMax)
	}

	random := NewSession(Options{}, utils.NewDiscardLogger())
	for i := 0; i < 200; i++ {
		d := random.jitter(dwellMin, dwellMax)
		if d < dwellMin || d > dwellMax {
			t.Fatalf("jitter %v outside [%v, %v]", d, dwellMin, dwellMax)
		}
	}
}

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession(Options{}, utils.NewDiscardLogger())
	if s.opts.NavigationTimeout != 30*time.Second {
		t.Errorf("NavigationTimeout: got %v, want 30s", s.opts.NavigationTimeout)
	}
	if s.opts.SelectorTimeout != 12*time.Second {
		t.Errorf("SelectorTimeout: got %v, want 12s", s.opts.SelectorTimeout)
	}
}

func TestDetectSoftBlock(t *testing.T) {
	tests := []struct {
		text    string
		blocked bool
	}{
		{"Peugeot 208 - 9 500 €", false},
		{"Please complete the CAPTCHA to continue", true},
		{"429 Too Many Requests", true},
		{"Vous avez effectué trop de requêtes", true},
		{"", false},
	}

	for _, tt := range tests {
		_, got := DetectSoftBlock(tt.text)
		if got != tt.blocked {
			t.Errorf("DetectSoftBlock(%q) = %v; want %v", tt.text, got, tt.blocked)
		}
	}
}

func TestIsBlockedResource(t *testing.T) {
	tests := []struct {
		rt   network.ResourceType
		want bool
	}{
		{network.ResourceTypeImage, true},
		{network.ResourceTypeMedia, true},
		{network.ResourceTypeFont, true},
		{network.ResourceTypeDocument, false},
		{network.ResourceTypeScript, false},
		{network.ResourceTypeXHR, false},
	}

	for _, tt := range tests {
		if got := IsBlockedResource(tt.rt); got != tt.want {
			t.Errorf("IsBlockedResource(%s) = %v; want %v", tt.rt, got, tt.want)
		}
	}
}

func TestSleepCtxHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := sleepCtx(ctx, time.Minute); err == nil {
		t.Error("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("sleepCtx ignored cancellation")
	}
}

func TestFindChromeBinaryPrefersConfigured(t *testing.T) {
	if got := findChromeBinary("/opt/chrome/chrome"); got != "/opt/chrome/chrome" {
		t.Errorf("findChromeBinary: got %q", got)
	}
}

// A slow async script delays the load event but not DOMContentLoaded, and the
// cards sit in a hidden container: Fetch must return long before either
// timeout elapses.
func TestFetchReturnsOnDOMContentWithHiddenCards(t *testing.T) {
	if testing.Short() {
		t.Skip("needs a browser")
	}
	if findChromeBinary("") == "" {
		t.Skip("no Chrome/Chromium binary available")
	}

	unblock := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow.js", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-unblock:
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("/recherche", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><script async src="/slow.js"></script></head><body>
			<h1>Résultats</h1>
			<div style="display:none"><a data-qa-id="aditem_container" href="/ad/voitures/1">
			<p data-qa-id="aditem_title">Peugeot 208</p></a></div></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(unblock) })

	s := NewSession(Options{
		Headless:          true,
		NavigationTimeout: 20 * time.Second,
		SelectorTimeout:   15 * time.Second,
	}, utils.NewDiscardLogger(),
		WithRand(func(int) int { return 0 }),
		WithSleep(noSleep))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	p, err := s.Fetch(ctx, srv.URL+"/recherche")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 12*time.Second {
		t.Errorf("Fetch took %v; want it to stop waiting at DOMContentLoaded and card presence", elapsed)
	}
	if !strings.Contains(p.HTML, `data-qa-id="aditem_container"`) {
		t.Errorf("captured HTML is missing the result card")
	}
}
