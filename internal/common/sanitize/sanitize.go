// Package sanitize cleans free text coming from the public feeds before it is
// stored or rendered.
package sanitize

import (
	"html"
	"strings"

	strip "github.com/grokify/html-strip-tags-go"
	"github.com/microcosm-cc/bluemonday"
)

// bluemonday policies are safe for concurrent use once built
var richTextPolicy = bluemonday.UGCPolicy()

// HTML keeps a safe subset of markup. Used for descriptions.
func HTML(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(richTextPolicy.Sanitize(StripCDATA(s)))
}

// Text reduces s to plain text: CDATA wrappers and tags removed, entities
// decoded, whitespace collapsed.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strip.StripTags(StripCDATA(s))
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// StripCDATA removes every <![CDATA[ ... ]]> wrapper, keeping the content
func StripCDATA(s string) string {
	if !strings.Contains(s, "<![CDATA[") {
		return s
	}
	s = strings.ReplaceAll(s, "<![CDATA[", "")
	return strings.ReplaceAll(s, "]]>", "")
}
