package enrich

import (
	"fmt"
	"strings"
)

// Device holds the classification of a browser's user agent and display metrics
type Device struct {
	Type             string `json:"device_type"`
	Browser          string `json:"browser"`
	OperatingSystem  string `json:"operating_system"`
	ScreenResolution string `json:"screen_resolution"`
	IsMobile         bool   `json:"is_mobile"`
	Timezone         string `json:"timezone"`
}

// mobileTokens are user-agent substrings that indicate a mobile device
var mobileTokens = []string{
	"android", "iphone", "ipad", "ipod", "blackberry", "iemobile", "opera mini",
}

// windowsVersionNames maps Windows NT kernel versions to marketing names.
// NT 10.0 covers both Windows 10 and 11; the user agent cannot tell them apart.
var windowsVersionNames = map[string]string{
	"10.0": "10/11",
	"6.3":  "8.1",
	"6.2":  "8",
	"6.1":  "7",
}

// Classify derives device type, browser, operating system, and display facts
// from a user-agent string. Pure string matching, no I/O.
func Classify(userAgent string, screenWidth, screenHeight int, timezone string) Device {
	ua := strings.ToLower(userAgent)

	isMobile := false
	for _, token := range mobileTokens {
		if strings.Contains(ua, token) {
			isMobile = true
			break
		}
	}

	isTablet := strings.Contains(ua, "ipad") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")) ||
		strings.Contains(ua, "tablet")

	deviceType := "Desktop"
	if isTablet {
		deviceType = "Tablet"
	} else if isMobile {
		deviceType = "Mobile"
	}

	resolution := ""
	if screenWidth > 0 && screenHeight > 0 {
		resolution = fmt.Sprintf("%dx%d", screenWidth, screenHeight)
	}

	return Device{
		Type:             deviceType,
		Browser:          detectBrowser(userAgent),
		OperatingSystem:  detectOS(userAgent),
		ScreenResolution: resolution,
		IsMobile:         isMobile,
		Timezone:         timezone,
	}
}

// detectBrowser identifies the browser name and version. The Edge token is
// checked before Chrome because Edge user agents also contain "Chrome".
func detectBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"):
		return withVersion("Edge", ua, "Edg/")
	case strings.Contains(ua, "Chrome/"):
		return withVersion("Chrome", ua, "Chrome/")
	case strings.Contains(ua, "Firefox/"):
		return withVersion("Firefox", ua, "Firefox/")
	case strings.Contains(ua, "Safari") && !strings.Contains(ua, "Chrome"):
		return withVersion("Safari", ua, "Version/")
	case strings.Contains(ua, "OPR/"):
		return withVersion("Opera", ua, "OPR/")
	case strings.Contains(ua, "Opera"):
		return withVersion("Opera", ua, "Opera/")
	default:
		return ""
	}
}

// detectOS identifies the operating system, mapping Windows NT kernel
// versions to marketing names. iPad/iPhone are checked before Mac OS X
// because iOS user agents contain "like Mac OS X".
func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "Windows NT "):
		raw := versionToken(ua, "Windows NT ")
		if name, ok := windowsVersionNames[raw]; ok {
			return "Windows " + name
		}
		if raw != "" {
			return "Windows " + raw
		}
		return "Windows"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") || strings.Contains(ua, "iPod"):
		return "iOS"
	case strings.Contains(ua, "Mac OS X"):
		return "macOS"
	case strings.Contains(ua, "Android"):
		if v := versionToken(ua, "Android "); v != "" {
			return "Android " + v
		}
		return "Android"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return ""
	}
}

// withVersion reports "Name version", or just "Name" when the version token
// cannot be extracted.
func withVersion(name, ua, token string) string {
	if v := versionToken(ua, token); v != "" {
		return name + " " + v
	}
	return name
}

// versionToken extracts the substring immediately following a token, up to
// the next delimiter.
func versionToken(ua, token string) string {
	idx := strings.Index(ua, token)
	if idx == -1 {
		return ""
	}
	rest := ua[idx+len(token):]
	end := strings.IndexAny(rest, " ;)")
	if end == -1 {
		return rest
	}
	return rest[:end]
}
