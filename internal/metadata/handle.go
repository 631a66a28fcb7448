package metadata

import (
	"encoding/json"
	"regexp"
	"strings"
)

var profileURLPattern = regexp.MustCompile(`(?:twitter\.com|x\.com)/([A-Za-z0-9_]+)`)

// document is the union of the off-chain metadata shapes seen in the wild.
// Launchpads disagree on where the creator handle lives, so every known
// location is mapped and tried in order.
type document struct {
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	Description     string          `json:"description"`
	Image           string          `json:"image"`
	Twitter         json.RawMessage `json:"twitter"`
	TwitterUsername string          `json:"twitter_username"`
	ExternalURL     string          `json:"external_url"`
	Metadata        struct {
		TweetCreatorUsername string `json:"tweetCreatorUsername"`
	} `json:"metadata"`
	Properties struct {
		TwitterUsername string `json:"twitter_username"`
		Twitter         string `json:"twitter"`
	} `json:"properties"`
}

// twitterHandle returns the creator handle, normalized to a bare username,
// or "" when no shape matches.
func (d *document) twitterHandle() string {
	if h := d.Metadata.TweetCreatorUsername; h != "" {
		return NormalizeHandle(h)
	}

	var twitterField string
	if len(d.Twitter) > 0 {
		// The field is usually a string but some providers emit objects;
		// those are ignored.
		_ = json.Unmarshal(d.Twitter, &twitterField)
	}
	if twitterField != "" {
		return NormalizeHandle(twitterField)
	}

	if h := d.Properties.TwitterUsername; h != "" {
		return NormalizeHandle(h)
	}
	if h := d.Properties.Twitter; h != "" {
		return NormalizeHandle(h)
	}
	if h := d.TwitterUsername; h != "" {
		return NormalizeHandle(h)
	}
	if strings.Contains(d.ExternalURL, "twitter.com") || strings.Contains(d.ExternalURL, "x.com") {
		if m := profileURLPattern.FindStringSubmatch(d.ExternalURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// NormalizeHandle reduces a profile URL, an @handle, or a bare username to
// the bare username form.
func NormalizeHandle(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := profileURLPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return strings.TrimPrefix(raw, "@")
}
