package auth

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceLabel turns a User-Agent into a short label such as
// "Chrome on Windows 10" for the audit trail.
func DeviceLabel(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return ""
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	os := strings.TrimSpace(parsed.OS())
	browser = strings.TrimSpace(browser)

	var label string
	switch {
	case browser == "" && os == "":
		return "Unknown device"
	case browser == "":
		label = os
	case os == "":
		label = browser
	default:
		label = browser + " on " + os
	}
	if parsed.Mobile() {
		label += " (mobile)"
	}
	return label
}
