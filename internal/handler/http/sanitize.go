package http

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// plainEntities restores the characters the policy escapes that cannot
// open markup. Angle brackets stay escaped.
var plainEntities = strings.NewReplacer("&amp;", "&", "&#34;", `"`, "&#39;", "'")

// cleanText strips markup from free text and trims surrounding space.
// Entity-encoded tags are decoded before the policy runs so they are
// stripped too.
func cleanText(s string) string {
	return strings.TrimSpace(plainEntities.Replace(strictPolicy.Sanitize(html.UnescapeString(s))))
}

func cleanTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := cleanText(*s)
	return &v
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
