package platform

import (
	"strings"

	"github.com/iconidentify/reelgrabba/internal/domain"
)

// facebookVideoPatterns are the URL shapes that identify a Facebook video
// rather than a profile, page or photo.
var facebookVideoPatterns = []string{
	"fb.watch/",
	"facebook.com/reel/",
	"facebook.com/watch/",
	"facebook.com/story.php",
	"facebook.com/video.php",
	"m.facebook.com/reel/",
	"m.facebook.com/watch/",
	"web.facebook.com/reel/",
	"web.facebook.com/watch/",
}

// IsFacebookVideo reports whether a URL matches one of the Facebook video patterns.
func IsFacebookVideo(url string) bool {
	return containsAny(url, facebookVideoPatterns...)
}

// ExtractLink scans chat message text for the first supported short-video
// link. Words are checked in order and the first match wins.
func ExtractLink(content string) (string, domain.PlatformTag, bool) {
	for _, word := range strings.Fields(content) {
		if tag, ok := classifyLink(word); ok {
			return word, tag, true
		}
	}
	return "", domain.PlatformUnknown, false
}

// IsSupportedLink reports whether a single URL would be picked up by ExtractLink.
func IsSupportedLink(url string) bool {
	_, ok := classifyLink(strings.TrimSpace(url))
	return ok
}

func classifyLink(word string) (domain.PlatformTag, bool) {
	switch {
	case strings.Contains(word, "tiktok.com"):
		return domain.PlatformTikTok, true
	case strings.Contains(word, "instagram.com") && containsAny(word, "/reels/", "/reel/", "/p/"):
		return domain.PlatformInstagram, true
	case strings.Contains(word, "youtube.com") && strings.Contains(word, "/shorts/"):
		return domain.PlatformYouTube, true
	case IsFacebook(word) && IsFacebookVideo(word):
		return domain.PlatformFacebook, true
	}
	return domain.PlatformUnknown, false
}
