// Package detect classifies fetched pages: logged-out pages, premium-only
// listings and bot-protection challenges.
package detect

import (
	"net/http"
	"regexp"
	"strings"
)

// Response is the part of a fetched page the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

var (
	// The site has spelled it both "logged" and "Logged".
	loggedOut   = regexp.MustCompile(`(?i)You are not logged in\.`)
	premiumOnly = regexp.MustCompile(`Sorry, the owner of this listing has made it viewable to subscribers only`)
)

// LoggedOut reports whether body is a page served to an anonymous visitor.
func LoggedOut(body string) bool {
	return loggedOut.MatchString(body)
}

// PremiumOnly reports whether body is a listing restricted to subscribers.
func PremiumOnly(body string) bool {
	return premiumOnly.MatchString(body)
}

// Detector examines a response for a bot protection challenge and names
// the vendor when it finds one.
type Detector func(res Response) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Challenge runs res through detectors and returns the first vendor that
// matched, or "" when none did.
func Challenge(res Response, detectors []Detector) string {
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return source
		}
	}
	return ""
}

func server(res Response) string {
	return strings.ToLower(res.Header.Get("Server"))
}

func detectCloudflare(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(server(res), "cloudflare") {
		return true, "Cloudflare"
	}
	for _, sig := range []string{"cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare"} {
		if strings.Contains(res.Body, sig) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

func detectAkamai(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(res), "akamai") {
		return true, "Akamai"
	}
	// Generic Akamai block page.
	if strings.Contains(res.Body, "Reference #") && strings.Contains(res.Body, "Access Denied") {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(res), "datadome") ||
		res.Header.Get("X-DataDome") != "" || res.Header.Get("X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if strings.Contains(res.Body, "geo.captcha-delivery.com") || strings.Contains(res.Body, "datadome") {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if res.Header.Get("X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	for _, sig := range []string{"client.perimeterx.net", "px-captcha", "_pxBlock"} {
		if strings.Contains(res.Body, sig) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}
