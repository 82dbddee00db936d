package fetcher

import (
	"crypto/tls"
	"fmt"
	"math/rand"
	"net/http"
)

// StealthConfig configures browser launch fingerprinting.
type StealthConfig struct {
	ViewportWidth  int
	ViewportHeight int

	// WindowSize for browser launch ("w,h").
	WindowSize string

	// UserDataDir for a persistent browser profile.
	UserDataDir string
}

// DefaultStealthConfig returns a stealth configuration that mimics a typical desktop browser.
func DefaultStealthConfig() *StealthConfig {
	viewports := []struct{ w, h int }{
		{1920, 1080}, {1366, 768}, {1536, 864},
		{1440, 900}, {1280, 720},
	}
	vp := viewports[rand.Intn(len(viewports))]

	return &StealthConfig{
		ViewportWidth:  vp.w,
		ViewportHeight: vp.h,
		WindowSize:     fmt.Sprintf("%d,%d", vp.w, vp.h),
	}
}

// setBrowserHeaders adds navigation headers a desktop Chrome would send.
func setBrowserHeaders(h http.Header) {
	if h.Get("Sec-Fetch-Dest") == "" {
		h.Set("Sec-Fetch-Dest", "document")
		h.Set("Sec-Fetch-Mode", "navigate")
		h.Set("Sec-Fetch-Site", "none")
		h.Set("Sec-Fetch-User", "?1")
	}
	if h.Get("Upgrade-Insecure-Requests") == "" {
		h.Set("Upgrade-Insecure-Requests", "1")
	}
	if h.Get("Sec-Ch-Ua") == "" {
		h.Set("Sec-Ch-Ua", `"Chromium";v="120", "Not?A_Brand";v="8", "Google Chrome";v="120"`)
		h.Set("Sec-Ch-Ua-Mobile", "?0")
		h.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	}
}

// browserTLSConfig creates a TLS config that mimics browser cipher preferences.
func browserTLSConfig() *tls.Config {
	cipherSuites := [][]uint16{
		// Chrome-like
		{
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		},
		// Firefox-like
		{
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_CHACHA20_POLY1305_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
	}

	return &tls.Config{
		CipherSuites: cipherSuites[rand.Intn(len(cipherSuites))],
		MinVersion:   tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
			tls.CurveP384,
		},
	}
}
