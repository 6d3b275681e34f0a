package domain

// PlatformTag identifies the social platform a URL belongs to.
type PlatformTag string

const (
	PlatformFacebook  PlatformTag = "facebook"
	PlatformTikTok    PlatformTag = "tiktok"
	PlatformInstagram PlatformTag = "instagram"
	PlatformYouTube   PlatformTag = "youtube"
	PlatformUnknown   PlatformTag = "unknown"
)

// String returns the string representation of the PlatformTag.
func (p PlatformTag) String() string {
	return string(p)
}

// DisplayName returns the capitalized platform name used in user-facing text.
func (p PlatformTag) DisplayName() string {
	switch p {
	case PlatformFacebook:
		return "Facebook"
	case PlatformTikTok:
		return "Tiktok"
	case PlatformInstagram:
		return "Instagram"
	case PlatformYouTube:
		return "Youtube"
	default:
		return "Unknown"
	}
}

// Color returns the brand color for the platform, falling back to the
// chat client's default accent.
func (p PlatformTag) Color() int {
	switch p {
	case PlatformTikTok:
		return 0x000000
	case PlatformInstagram:
		return 0xE1306C
	case PlatformYouTube:
		return 0xFF0000
	case PlatformFacebook:
		return 0x1877F2
	default:
		return 0x7289DA
	}
}
