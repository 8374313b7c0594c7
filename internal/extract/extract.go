// Package extract pulls outbound hyperlinks out of untrusted HTML fragments
// (alert digest mails, fediverse post bodies). Extraction is source-aware,
// normalization is the caller's job.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Options carries the per-source exclusion rules applied to each candidate
// link before it is returned.
type Options struct {
	// BlacklistSubstrings drops links containing any of these literal
	// substrings (alert management links like "alerts/remove").
	BlacklistSubstrings []string
	// ExcludeHost drops links pointing back at the posting instance itself.
	ExcludeHost string
	// ExcludeTagsAndMentions drops links the source structurally marks as a
	// hashtag (rel) or account mention (class) rather than real content.
	ExcludeTagsAndMentions bool
}

// Links returns the raw href values of all anchors in content, in document
// order, de-duplicated within the call. Malformed markup yields a best-effort
// partial result; the function never fails on bad input.
func Links(content string, opts Options) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var links []string
	seen := map[string]struct{}{}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if excluded(href, a, opts) {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})

	return links
}

func excluded(href string, a *goquery.Selection, opts Options) bool {
	for _, b := range opts.BlacklistSubstrings {
		if b != "" && strings.Contains(href, b) {
			return true
		}
	}

	if opts.ExcludeHost != "" && hostMatches(href, opts.ExcludeHost) {
		return true
	}

	if opts.ExcludeTagsAndMentions {
		if rel, ok := a.Attr("rel"); ok && containsToken(rel, "tag", "hashtag") {
			return true
		}
		if class, ok := a.Attr("class"); ok && containsToken(class, "mention") {
			return true
		}
	}

	return false
}

func hostMatches(href, host string) bool {
	parsed, err := url.Parse(href)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), host)
}

func containsToken(attr string, tokens ...string) bool {
	for _, field := range strings.Fields(attr) {
		for _, token := range tokens {
			if strings.EqualFold(field, token) {
				return true
			}
		}
	}
	return false
}
