// noise.go — Pure URL/noise heuristics.
// Predicate functions over URLs, headers, and content types used by the hop
// classifier, the classification engine, and final-URL resolution. No state,
// no side effects; malformed input degrades to false or a substring fallback
// instead of returning an error.
package noise

import (
	"net/url"
	"path"
	"strings"
)

// noisyPathFragments are path substrings that identify CDN challenge and
// beacon traffic regardless of host.
var noisyPathFragments = []string{
	"/cdn-cgi/challenge-platform",
	"/cdn-cgi/rum",
	"/cdn-cgi/beacon",
	"/recaptcha/api",
	"/turnstile/",
}

// noisyHosts is a denylist of known analytics, ad, and CDN-challenge hosts.
// A URL matches when its hostname equals an entry or is a subdomain of one.
var noisyHosts = []string{
	"google-analytics.com",
	"analytics.google.com",
	"googletagmanager.com",
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"adservice.google.com",
	"connect.facebook.net",
	"graph.facebook.com",
	"scorecardresearch.com",
	"quantserve.com",
	"criteo.com",
	"criteo.net",
	"adnxs.com",
	"rubiconproject.com",
	"pubmatic.com",
	"casalemedia.com",
	"openx.net",
	"taboola.com",
	"outbrain.com",
	"hotjar.com",
	"mixpanel.com",
	"segment.io",
	"cdn.segment.com",
	"amplitude.com",
	"heapanalytics.com",
	"fullstory.com",
	"mouseflow.com",
	"clarity.ms",
	"branch.io",
	"appsflyer.com",
	"adjust.com",
	"sentry.io",
	"datadoghq.com",
	"nr-data.net",
	"newrelic.com",
	"cloudflareinsights.com",
	"challenges.cloudflare.com",
}

// challengeHosts are the subset of noisy hosts whose traffic is anti-bot
// challenge infrastructure rather than analytics.
var challengeHosts = []string{
	"challenges.cloudflare.com",
	"cloudflareinsights.com",
}

// trackingKeywords are case-insensitive substrings that mark a URL as likely
// tracking traffic.
var trackingKeywords = []string{
	"pixel",
	"track",
	"collect",
	"analytics",
	"impression",
	"beacon",
	"measure",
	"telemetry",
	"conversion",
	"retarget",
	"syndication",
}

// pixelExtensions are file extensions commonly used for tracking pixels.
var pixelExtensions = []string{".gif", ".png", ".webp", ".bmp", ".ico"}

// mediaExtensions are file extensions for audio/video resources.
var mediaExtensions = []string{
	".mp4", ".webm", ".mkv", ".mov", ".avi", ".m4v",
	".mp3", ".m4a", ".aac", ".ogg", ".opus", ".flac", ".wav",
	".m3u8", ".mpd", ".ts",
}

// streamingManifestTypes are MIME types for HLS/DASH streaming manifests.
var streamingManifestTypes = []string{
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/dash+xml",
	"audio/mpegurl",
}

// IsNoisyURL reports whether the URL is known challenge/tracking traffic:
// its path contains a known challenge-platform fragment, or its hostname
// exactly matches or is a subdomain of a denylisted host.
func IsNoisyURL(raw string) bool {
	noisy, _ := Classify(raw)
	return noisy
}

// Classify reports whether the URL is noise and, when it is, the reason code
// ("cloudflare-challenge" or "analytics"). Safe on malformed input.
func Classify(raw string) (bool, string) {
	if raw == "" {
		return false, ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Parse failure: fall back to raw substring matching on path fragments.
		lower := strings.ToLower(raw)
		for _, frag := range noisyPathFragments {
			if strings.Contains(lower, frag) {
				return true, reasonForFragment()
			}
		}
		return false, ""
	}
	lowerPath := strings.ToLower(u.EscapedPath())
	for _, frag := range noisyPathFragments {
		if strings.Contains(lowerPath, frag) {
			return true, reasonForFragment()
		}
	}
	host := strings.ToLower(u.Hostname())
	for _, ch := range challengeHosts {
		if hostMatches(host, ch) {
			return true, "cloudflare-challenge"
		}
	}
	for _, nh := range noisyHosts {
		if hostMatches(host, nh) {
			return true, "analytics"
		}
	}
	return false, ""
}

func reasonForFragment() string { return "cloudflare-challenge" }

// hostMatches reports whether host equals entry or is a subdomain of it.
func hostMatches(host, entry string) bool {
	return host == entry || strings.HasSuffix(host, "."+entry)
}

// HasTrackingKeyword reports whether the URL contains a known tracking
// keyword, case-insensitive, anywhere in the string.
func HasTrackingKeyword(raw string) bool {
	lower := strings.ToLower(raw)
	for _, kw := range trackingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HasPixelExtension reports whether the URL path ends in a tracking-pixel
// file extension. Falls back to substring matching when the URL fails to parse.
func HasPixelExtension(raw string) bool {
	return hasExtension(raw, pixelExtensions)
}

// HasMediaExtension reports whether the URL path ends in an audio/video file
// extension. Falls back to substring matching when the URL fails to parse.
func HasMediaExtension(raw string) bool {
	return hasExtension(raw, mediaExtensions)
}

func hasExtension(raw string, exts []string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		lower := strings.ToLower(raw)
		for _, ext := range exts {
			if strings.Contains(lower, ext) {
				return true
			}
		}
		return false
	}
	got := strings.ToLower(path.Ext(u.Path))
	for _, ext := range exts {
		if got == ext {
			return true
		}
	}
	return false
}

// IsMediaContentType reports whether the content type is audio/video or a
// streaming manifest (HLS, DASH).
func IsMediaContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if semi := strings.IndexByte(ct, ';'); semi >= 0 {
		ct = strings.TrimSpace(ct[:semi])
	}
	if strings.HasPrefix(ct, "video/") || strings.HasPrefix(ct, "audio/") {
		return true
	}
	for _, mt := range streamingManifestTypes {
		if ct == mt {
			return true
		}
	}
	return false
}

// IsLikelyBrowserURL reports whether the URL is something a user could be
// navigated to: http/https scheme and a path that does not end in a
// non-navigable script extension. Used to reject candidate final URLs that
// are actually resource loads.
func IsLikelyBrowserURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return ext != ".js" && ext != ".mjs"
}

// SameHost reports whether two URLs share a hostname. Malformed URLs never
// match anything.
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil || ua.Host == "" {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil || ub.Host == "" {
		return false
	}
	return strings.EqualFold(ua.Hostname(), ub.Hostname())
}

// Host extracts the lowercase hostname from a URL, or "" when unparseable.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
