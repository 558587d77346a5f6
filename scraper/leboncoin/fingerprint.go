package leboncoin

// Fingerprint is one realistic desktop browser profile.
type Fingerprint struct {
	Name           string
	UserAgent      string
	Platform       string
	Locale         string
	AcceptLanguage string
	Width          int
	Height         int
}

const (
	frLocale         = "fr-FR"
	frAcceptLanguage = "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7"
)

var fingerprints = []Fingerprint{
	{
		Name:           "chrome-windows",
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Platform:       "Win32",
		Locale:         frLocale,
		AcceptLanguage: frAcceptLanguage,
		Width:          1366,
		Height:         768,
	},
	{
		Name:           "chrome-macos",
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		Platform:       "MacIntel",
		Locale:         frLocale,
		AcceptLanguage: frAcceptLanguage,
		Width:          1366,
		Height:         768,
	},
	{
		Name:           "edge-windows",
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
		Platform:       "Win32",
		Locale:         frLocale,
		AcceptLanguage: frAcceptLanguage,
		Width:          1366,
		Height:         768,
	},
	{
		Name:           "chrome-linux",
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Platform:       "Linux x86_64",
		Locale:         frLocale,
		AcceptLanguage: frAcceptLanguage,
		Width:          1366,
		Height:         768,
	},
}
