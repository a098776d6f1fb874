// Package rewrite transforms a rendered email body for engagement tracking:
// outbound links are routed through the click-redirect endpoint and a 1x1
// pixel referencing the open-tracking endpoint is appended. The transform is
// pure text manipulation and idempotent under re-application.
package rewrite

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const clickPath = "/track/click/"

var hrefPattern = regexp.MustCompile(`href="([^"]*)"`)

// Links rewrites every http(s) anchor in html to an internal click-redirect
// URL embedding the delivery record id and the original destination as a
// percent-encoded query parameter. Fragment links, javascript: pseudo-URLs,
// already-tracked URLs, and survey/landing-page links are left untouched so
// that re-applying the rewrite is a no-op.
func Links(html, baseURL string, deliveryID uuid.UUID) string {
	clickBase := strings.TrimRight(baseURL, "/") + clickPath + deliveryID.String()

	return hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		target := match[len(`href="`) : len(match)-1]
		if !rewritable(target) {
			return match
		}
		return fmt.Sprintf(`href="%s?url=%s"`, clickBase, url.QueryEscape(target))
	})
}

// Pixel appends an invisible open-tracking image referencing the delivery's
// tracking code, inserted immediately before </body> when present. A body
// that already carries the pixel is returned unchanged.
func Pixel(html, baseURL, trackingCode string) string {
	pixelURL := strings.TrimRight(baseURL, "/") + "/track/open/" + trackingCode
	if strings.Contains(html, pixelURL) {
		return html
	}

	img := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" />`, pixelURL)
	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", img+"</body>", 1)
	}
	return html + img
}

// Apply runs both transforms.
func Apply(html, baseURL string, deliveryID uuid.UUID, trackingCode string) string {
	return Pixel(Links(html, baseURL, deliveryID), baseURL, trackingCode)
}

// rewritable reports whether an href target should be click-tracked.
func rewritable(target string) bool {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		// covers "#..." fragments, javascript: and mailto: pseudo-URLs
		return false
	}
	if strings.Contains(target, clickPath) {
		return false
	}
	if isSurveyLink(target) {
		return false
	}
	return true
}

// isSurveyLink recognizes survey-form and landing-page URLs, which must stay
// direct so those flows are not entangled with click tracking.
func isSurveyLink(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	return strings.Contains(path, "/survey") || strings.Contains(path, "/forms/")
}
