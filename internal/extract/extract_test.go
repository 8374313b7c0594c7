package extract

import (
	"reflect"
	"testing"
)

func TestLinksOrderAndDedup(t *testing.T) {
	content := `<p>
		<a href="https://a.example/one">one</a>
		<a href="https://b.example/two">two</a>
		<a href="https://a.example/one">one again</a>
	</p>`

	got := Links(content, Options{})
	want := []string{"https://a.example/one", "https://b.example/two"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Links() = %v, want %v", got, want)
	}
}

func TestLinksBlacklist(t *testing.T) {
	content := `
		<a href="https://www.google.com/alerts/remove?x=1">remove</a>
		<a href="https://www.google.com/alerts/feedback?x=1">feedback</a>
		<a href="https://example.com/story">story</a>`

	got := Links(content, Options{
		BlacklistSubstrings: []string{"alerts/feedback", "alerts/remove", "alerts/edit", "alerts"},
	})
	want := []string{"https://example.com/story"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Links() = %v, want %v", got, want)
	}
}

func TestLinksOwnInstanceExcluded(t *testing.T) {
	content := `
		<a href="https://mstdn.social/@someone">profile</a>
		<a href="https://MSTDN.SOCIAL/tags/ai">tag page</a>
		<a href="https://example.com/article">article</a>`

	got := Links(content, Options{ExcludeHost: "mstdn.social"})
	want := []string{"https://example.com/article"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Links() = %v, want %v", got, want)
	}
}

func TestLinksStructuralExclusions(t *testing.T) {
	content := `
		<a href="https://other.instance/tags/golang" rel="tag">#golang</a>
		<a href="https://other.instance/@friend" class="u-url mention">@friend</a>
		<a href="https://example.com/post" rel="nofollow noopener">post</a>`

	got := Links(content, Options{ExcludeTagsAndMentions: true})
	want := []string{"https://example.com/post"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Links() = %v, want %v", got, want)
	}
}

func TestLinksStructuralExclusionsDisabled(t *testing.T) {
	content := `<a href="https://other.instance/tags/golang" rel="tag">#golang</a>`

	got := Links(content, Options{})
	if len(got) != 1 {
		t.Errorf("expected tag link to survive without structural exclusion, got %v", got)
	}
}

func TestLinksTruncatedMarkup(t *testing.T) {
	// Unclosed tags and stray brackets must not break extraction.
	content := `<div><a href="https://example.com/a">a<a href="https://example.com/b"><p><<`

	got := Links(content, Options{})
	want := []string{"https://example.com/a", "https://example.com/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Links() = %v, want %v", got, want)
	}
}

func TestLinksEmptyInput(t *testing.T) {
	if got := Links("", Options{}); len(got) != 0 {
		t.Errorf("Links(\"\") = %v, want empty", got)
	}
}
