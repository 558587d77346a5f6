package leboncoin

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"

	"car-scraper/utils"
)

// CardSelector matches one result card on a search page.
const CardSelector = `[data-qa-id="aditem_container"]`

var (
	// ErrAccessRestricted is returned when the page carries a captcha or
	// rate-limit notice instead of results.
	ErrAccessRestricted = errors.New("leboncoin: access restricted")

	// ErrNavigationTimeout and ErrSelectorTimeout are logged, never returned:
	// the session carries on with whatever DOM has loaded.
	ErrNavigationTimeout = errors.New("leboncoin: navigation timeout")
	ErrSelectorTimeout   = errors.New("leboncoin: result cards did not appear")
)

var softBlockMarkers = []string{
	"captcha",
	"too many requests",
	"trop de requêtes",
}

var blockedResourceTypes = []network.ResourceType{
	network.ResourceTypeImage,
	network.ResourceTypeMedia,
	network.ResourceTypeFont,
}

const (
	dwellMin   = 1200 * time.Millisecond
	dwellMax   = 2200 * time.Millisecond
	releaseMin = 500 * time.Millisecond
	releaseMax = 1300 * time.Millisecond
)

// Page is the rendered state of a result page.
type Page struct {
	URL  string
	HTML string
	Text string
}

// Options configures the browser used by a Session.
type Options struct {
	ChromeBin         string
	Headless          bool
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
}

// Session loads one result page per Fetch call in a fresh, isolated browser.
type Session struct {
	opts   Options
	logger *utils.Logger

	intn  func(n int) int
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customises a Session.
type Option func(*Session)

// WithRand replaces the source used for fingerprint and jitter choices.
func WithRand(intn func(n int) int) Option {
	return func(s *Session) { s.intn = intn }
}

// WithSleep replaces the function used for jitter pauses.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Session) { s.sleep = sleep }
}

// NewSession creates a Session.
func NewSession(opts Options, logger *utils.Logger, options ...Option) *Session {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = 12 * time.Second
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	var mu sync.Mutex

	s := &Session{
		opts:   opts,
		logger: logger,
		intn: func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return rnd.Intn(n)
		},
		sleep: sleepCtx,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Fetch opens pageURL and returns the rendered page. The browser is always
// shut down before Fetch returns.
func (s *Session) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	fp := s.pickFingerprint()
	s.logger.Debug("[leboncoin] Fingerprint: %s", fp.Name)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, s.allocatorOptions(fp)...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()

	// Runs before the cancels above.
	defer func() {
		_ = s.sleep(ctx, s.jitter(releaseMin, releaseMax))
	}()

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go s.handlePaused(tabCtx, paused)
	})

	if err := chromedp.Run(tabCtx, s.prepare(fp)); err != nil {
		return nil, fmt.Errorf("leboncoin: start browser: %w", err)
	}

	if err := s.navigate(ctx, tabCtx, pageURL); err != nil {
		return nil, err
	}

	if err := s.sleep(tabCtx, s.jitter(dwellMin, dwellMax)); err != nil {
		return nil, fmt.Errorf("leboncoin: dwell: %w", err)
	}

	if err := s.waitForCards(ctx, tabCtx); err != nil {
		return nil, err
	}

	p, err := s.capture(tabCtx)
	if err != nil {
		return nil, err
	}

	if marker, blocked := DetectSoftBlock(p.Text); blocked {
		return nil, fmt.Errorf("%w: page mentions %q", ErrAccessRestricted, marker)
	}

	return p, nil
}

func (s *Session) prepare(fp Fingerprint) chromedp.Tasks {
	patterns := make([]*fetch.RequestPattern, 0, len(blockedResourceTypes))
	for _, rt := range blockedResourceTypes {
		patterns = append(patterns, &fetch.RequestPattern{URLPattern: "*", ResourceType: rt})
	}

	return chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": fp.AcceptLanguage}),
		emulation.SetUserAgentOverride(fp.UserAgent).
			WithAcceptLanguage(fp.AcceptLanguage).
			WithPlatform(fp.Platform),
		emulation.SetLocaleOverride().WithLocale(fp.Locale),
		chromedp.EmulateViewport(int64(fp.Width), int64(fp.Height)),
		fetch.Enable().WithPatterns(patterns),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}),
	}
}

// handlePaused answers an intercepted request: blocked resource types are
// failed, anything else is let through.
func (s *Session) handlePaused(tabCtx context.Context, ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(tabCtx, c.Target)

	var err error
	if IsBlockedResource(ev.ResourceType) {
		err = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
	} else {
		err = fetch.ContinueRequest(ev.RequestID).Do(execCtx)
	}
	if err != nil && tabCtx.Err() == nil {
		s.logger.Debug("[leboncoin] Intercept %s: %v", ev.ResourceType, err)
	}
}

func (s *Session) navigate(ctx, tabCtx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(tabCtx, s.opts.NavigationTimeout)
	defer cancel()

	err := chromedp.Run(navCtx, navigateToDOMContent(pageURL))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("leboncoin: navigate: %w", ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("[leboncoin] %v after %v, continuing with partial page", ErrNavigationTimeout, s.opts.NavigationTimeout)
		return nil
	}
	return fmt.Errorf("leboncoin: navigate: %w", err)
}

// navigateToDOMContent loads pageURL and returns on DOMContentLoaded, without
// waiting for images, ads or trackers to finish.
func navigateToDOMContent(pageURL string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		loaded := make(chan struct{})
		var once sync.Once
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			if _, ok := ev.(*page.EventDomContentEventFired); ok {
				once.Do(func() { close(loaded) })
			}
		})

		_, _, errText, err := page.Navigate(pageURL).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("page load error %s", errText)
		}

		select {
		case <-loaded:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) waitForCards(ctx, tabCtx context.Context) error {
	waitCtx, cancel := context.WithTimeout(tabCtx, s.opts.SelectorTimeout)
	defer cancel()

	err := chromedp.Run(waitCtx, chromedp.WaitReady(CardSelector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("leboncoin: wait for cards: %w", ctx.Err())
	}
	s.logger.Warn("[leboncoin] %v within %v: %v", ErrSelectorTimeout, s.opts.SelectorTimeout, err)
	return nil
}

func (s *Session) capture(tabCtx context.Context) (*Page, error) {
	captureCtx, cancel := context.WithTimeout(tabCtx, s.opts.NavigationTimeout)
	defer cancel()

	p := &Page{}
	err := chromedp.Run(captureCtx,
		chromedp.Location(&p.URL),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &p.Text),
		chromedp.OuterHTML("html", &p.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("leboncoin: capture page: %w", err)
	}
	return p, nil
}

func (s *Session) allocatorOptions(fp Fingerprint) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", fp.Locale),
		chromedp.WindowSize(fp.Width, fp.Height),
		chromedp.UserAgent(fp.UserAgent),
	)
	if bin := findChromeBinary(s.opts.ChromeBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}
	return opts
}

func (s *Session) pickFingerprint() Fingerprint {
	return fingerprints[s.intn(len(fingerprints))]
}

// jitter returns a duration in [min, max].
func (s *Session) jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.intn(int(max-min)+1))
}

// DetectSoftBlock reports the first soft-block marker found in page text.
func DetectSoftBlock(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, m := range softBlockMarkers {
		if strings.Contains(lower, m) {
			return m, true
		}
	}
	return "", false
}

// IsBlockedResource reports whether requests of type rt are aborted.
func IsBlockedResource(rt network.ResourceType) bool {
	for _, b := range blockedResourceTypes {
		if rt == b {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
