package session

import "regexp"

var contentIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/(track|album|playlist|video)/(\d+)`),
	regexp.MustCompile(`/(artist)/(\d+)`),
	regexp.MustCompile(`tidal\.com/([^/]+)/([^/]+)/(\d+)`),
	regexp.MustCompile(`listen\.tidal\.com/([^/]+)/(\d+)`),
}

// ContentID returns the numeric content identifier in a provider URL, or
// "unknown".
func ContentID(url string) string {
	for _, re := range contentIDPatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[len(m)-1]
		}
	}
	return "unknown"
}
