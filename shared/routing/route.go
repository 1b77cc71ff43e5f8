package routing

import "strings"

// Kind is the family of a parsed path
type Kind int

const (
	Unhandled Kind = iota
	PublicBooking
	EmbedBooking
	Dashboard
)

func (k Kind) String() string {
	switch k {
	case PublicBooking:
		return "public_booking"
	case EmbedBooking:
		return "embed_booking"
	case Dashboard:
		return "dashboard"
	}
	return "unhandled"
}

// Route keywords, matched against the whole first path segment
const (
	SegmentBooking      = "booking"
	SegmentEmbedBooking = "embed-booking"
	SegmentDashboard    = "dashboard"

	DefaultPage = "overview"
)

// Route is a parsed request path. It only lives for one request.
type Route struct {
	Kind   Kind
	Slug   string
	Page   string
	Action string
}

// ParseRoute matches path against booking/{slug}, embed-booking/{slug} and
// dashboard[/{page}[/{action}]], in that order. Empty segments are ignored, so trailing
// slashes do not matter; the query string and fragment are dropped.
func ParseRoute(path string) Route {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return Route{Kind: Unhandled}
	}

	switch segments[0] {
	case SegmentBooking:
		if len(segments) == 2 {
			return Route{Kind: PublicBooking, Slug: segments[1]}
		}
	case SegmentEmbedBooking:
		if len(segments) == 2 {
			return Route{Kind: EmbedBooking, Slug: segments[1]}
		}
	case SegmentDashboard:
		if len(segments) > 3 {
			break
		}
		route := Route{Kind: Dashboard, Page: DefaultPage}
		if len(segments) > 1 {
			if page := Sanitize(segments[1]); page != "" {
				route.Page = page
			}
		}
		if len(segments) > 2 {
			route.Action = Sanitize(segments[2])
		}
		return route
	}

	return Route{Kind: Unhandled}
}

// Sanitize lowercases s and keeps only [a-z0-9_-]
func Sanitize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
