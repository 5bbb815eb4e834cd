package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	cases := map[string]string{
		"  Desk Lamp ":                      "Desk Lamp",
		"<b>Shoe</b> &amp; sock":            "Shoe & sock",
		"<script>alert(1)</script>Hat":      "Hat",
		`<a href="javascript:x()">link</a>`: "link",
		"":                                  "",
		"Tom & Jerry's \"best\"":            `Tom & Jerry's "best"`,
		"&lt;script&gt;alert(1)&lt;/script&gt;Hat": "Hat",
		"&amp;lt;b&amp;gt;bold":                    "&lt;b&gt;bold",
		"5 < 6":                                    "5 &lt; 6",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanText(in), "input %q", in)
	}
}

func TestCleanText_NeverEmitsMarkup(t *testing.T) {
	inputs := []string{
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"&amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt;",
		"&#60;img src=x onerror=alert(1)&#62;",
		`<img src=x onerror="alert(1)">`,
	}
	for _, in := range inputs {
		out := cleanText(in)
		assert.NotContains(t, out, "<", "input %q", in)
		assert.NotContains(t, out, ">", "input %q", in)
	}
}

func TestCleanTextPtr(t *testing.T) {
	assert.Nil(t, cleanTextPtr(nil))

	in := " <i>Blue</i> "
	out := cleanTextPtr(&in)
	if assert.NotNil(t, out) {
		assert.Equal(t, "Blue", *out)
	}
}
