// Package platform classifies video URLs by social platform using plain
// substring rules. Nothing here touches the network.
package platform

import (
	"strings"

	"github.com/iconidentify/reelgrabba/internal/domain"
)

// Detect classifies a URL into a platform tag. It never fails; URLs that
// match no rule are tagged unknown.
func Detect(url string) domain.PlatformTag {
	switch {
	case IsFacebook(url):
		return domain.PlatformFacebook
	case strings.Contains(url, "tiktok.com"):
		return domain.PlatformTikTok
	case strings.Contains(url, "instagram.com"):
		return domain.PlatformInstagram
	case containsAny(url, "youtube.com", "youtu.be"):
		return domain.PlatformYouTube
	default:
		return domain.PlatformUnknown
	}
}

// IsFacebook reports whether the URL points at Facebook in any form.
func IsFacebook(url string) bool {
	return containsAny(url, "facebook.com", "fb.watch")
}

// PolicyFor picks the format policy for a platform. Facebook's stream
// containers make size-capped selectors unreliable, so it starts degraded.
func PolicyFor(tag domain.PlatformTag, budget int64) domain.FormatPolicy {
	if tag == domain.PlatformFacebook {
		return domain.DegradedPolicy()
	}
	return domain.StandardPolicy(budget)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
