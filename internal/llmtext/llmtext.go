// Package llmtext owns the text contract with the LLM: it builds the combined
// batch prompt and parses the free-text completion back into per-URL records.
// The model gives no structured output guarantees, so all structure lives in
// this package and nowhere else.
package llmtext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UnreachableSentinel is what the model is instructed to emit in place of a
// summary when it cannot fetch the page. It is stored verbatim so the record
// still counts as processed and is not retried forever.
const UnreachableSentinel = "Website content could not be reached!"

// Entry is the parsed result for one URL in a batch. Topics are transient:
// they only feed subcategory clustering and are never persisted.
type Entry struct {
	URL         string
	Summary     string
	Category    string
	Subcategory string
	Topics      []string
	ReadingTime int // minutes, 0 when the model gave none
}

// PromptKind selects the instruction block for a batch partition.
type PromptKind int

const (
	// PromptWeb is the generic article contract: summary, category, topics,
	// reading time.
	PromptWeb PromptKind = iota
	// PromptVideo is the video contract: same response format, instructions
	// tuned for watch pages instead of articles.
	PromptVideo
)

const webInstructions = `You are an assistant that processes multiple URLs provided by the user.
For each input, perform the following tasks:

1. Summarize the content of the website in about 3 sentences.
2. Categorize it into one of the following categories:
   - Technology and Gadgets
   - Artificial Intelligence
   - Programming and Development
   - Politics
   - Business and Finance
   - Sports
   - Education and Learning
   - Health and Wellness
   - Entertainment and Lifestyle
   - Travel and Tourism
   If a website does not fit into one of these categories, return 'Uncategorized'.
3. Identify specific topics or entities mentioned in the article. These should be precise and clearly defined, such as names of technologies, events, organizations, or specific concepts discussed in the text.
4. Estimate the reading time of the article in minutes based on the length and complexity of the content. Assess each article individually.

If you are unable to access the contents of the provided website, return "` + UnreachableSentinel + `" for that input.

Format your response as follows:
Input 1 (URL: <url>):
Summary: <summary>
Category: <category>
Topics: <topic1>, <topic2>, ...
Reading Time: <X> minutes

Input 2 (URL: <url>):
...`

const videoInstructions = `You are an assistant that processes multiple video URLs provided by the user.
For each input, perform the following tasks:

1. Summarize the content of the video in about 3 sentences.
2. Categorize it into one of the following categories:
   - Technology and Gadgets
   - Artificial Intelligence
   - Programming and Development
   - Politics
   - Business and Finance
   - Sports
   - Education and Learning
   - Health and Wellness
   - Entertainment and Lifestyle
   - Travel and Tourism
   If a video does not fit into one of these categories, return 'Uncategorized'.
3. Identify specific topics or entities covered by the video.
4. Estimate the watch time in minutes.

If you are unable to access the provided video, return "` + UnreachableSentinel + `" for that input.

Format your response as follows:
Input 1 (URL: <url>):
Summary: <summary>
Category: <category>
Topics: <topic1>, <topic2>, ...
Reading Time: <X> minutes

Input 2 (URL: <url>):
...`

// BuildPrompt enumerates the batch URLs under the instruction block for the
// given kind, tagging each one by position.
func BuildPrompt(kind PromptKind, urls []string) string {
	instructions := webInstructions
	if kind == PromptVideo {
		instructions = videoInstructions
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	for i, u := range urls {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Input %d (URL: %s)", i+1, u)
	}
	return b.String()
}

var (
	// Field matches stay on one line so an empty field never swallows the
	// label that follows it.
	urlExpr         = regexp.MustCompile(`(?i)URL:[ \t]*(https?://[^\s)]+)`)
	summaryExpr     = regexp.MustCompile(`(?i)Summary:[ \t]*(.+)`)
	categoryExpr    = regexp.MustCompile(`(?i)Category:[ \t]*(.+)`)
	topicsExpr      = regexp.MustCompile(`(?i)Topics:[ \t]*(.+)`)
	readingTimeExpr = regexp.MustCompile(`(?i)Reading[ \t]*Time:[ \t]*(\d+)[ \t]*minutes?`)
)

// Parse splits a completion into blank-line-delimited blocks and extracts the
// labeled fields from each. Blocks without a recognizable URL are dropped; the
// second return value counts them so the caller can log a warning. Parsing is
// never fatal.
func Parse(response string) ([]Entry, int) {
	var entries []Entry
	dropped := 0

	for _, block := range strings.Split(response, "\n\n") {
		if !strings.Contains(block, "Input") {
			continue
		}

		urlMatch := urlExpr.FindStringSubmatch(block)
		if urlMatch == nil {
			dropped++
			continue
		}

		entry := Entry{URL: urlMatch[1]}
		if m := summaryExpr.FindStringSubmatch(block); m != nil {
			entry.Summary = strings.TrimSpace(m[1])
		}
		if m := categoryExpr.FindStringSubmatch(block); m != nil {
			entry.Category = strings.TrimSpace(m[1])
		}
		if m := topicsExpr.FindStringSubmatch(block); m != nil {
			for _, topic := range strings.Split(m[1], ",") {
				topic = strings.TrimSpace(topic)
				if topic != "" {
					entry.Topics = append(entry.Topics, topic)
				}
			}
		}
		if m := readingTimeExpr.FindStringSubmatch(block); m != nil {
			if minutes, err := strconv.Atoi(m[1]); err == nil {
				entry.ReadingTime = minutes
			}
		}

		entries = append(entries, entry)
	}

	return entries, dropped
}

// subcategoryThreshold is the minimum number of corroborating URLs a topic
// needs in one batch before it is promoted to a subcategory.
const subcategoryThreshold = 3

// AssignSubcategories promotes topics shared by at least three URLs of the
// batch to subcategories. Topics are visited in order of first appearance and
// a URL keeps the first qualifying topic it gets, so the result is
// deterministic for a fixed entry order. Clustering is batch-local: there is
// no memory across calls.
func AssignSubcategories(entries []Entry) {
	index := map[string][]int{}
	var order []string

	for i, entry := range entries {
		for _, topic := range entry.Topics {
			if _, ok := index[topic]; !ok {
				order = append(order, topic)
			}
			index[topic] = append(index[topic], i)
		}
	}

	for _, topic := range order {
		members := index[topic]
		if len(members) < subcategoryThreshold {
			continue
		}
		for _, i := range members {
			if entries[i].Subcategory == "" {
				entries[i].Subcategory = topic
			}
		}
	}
}
