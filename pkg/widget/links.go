package widget

import (
	"regexp"
	"strings"
)

// Link is one clickable span extracted from bot text.
type Link struct {
	Label string
	URL   string
}

// Segment is a run of bot text that is either plain or a link.
type Segment struct {
	Text string
	Link *Link
}

var (
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\s)]+)\)`)
	plainURLPattern     = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
)

// SplitSegments breaks bot text into plain and link segments. Markdown-style
// `[label](url)` spans win over plain URLs covering the same range; remaining
// bare http(s) URLs become links labelled with the URL itself.
func SplitSegments(text string) []Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var segments []Segment
	remaining := text
	for {
		markdownMatch := markdownLinkPattern.FindStringSubmatchIndex(remaining)
		if markdownMatch == nil {
			segments = append(segments, splitPlainURLs(remaining)...)
			break
		}

		if markdownMatch[0] > 0 {
			segments = append(segments, splitPlainURLs(remaining[:markdownMatch[0]])...)
		}
		segments = append(segments, Segment{
			Text: remaining[markdownMatch[2]:markdownMatch[3]],
			Link: &Link{
				Label: remaining[markdownMatch[2]:markdownMatch[3]],
				URL:   remaining[markdownMatch[4]:markdownMatch[5]],
			},
		})
		remaining = remaining[markdownMatch[1]:]
		if remaining == "" {
			break
		}
	}
	return segments
}

// Links returns every link in bot text in order of appearance.
func Links(text string) []Link {
	var links []Link
	for _, segment := range SplitSegments(text) {
		if segment.Link != nil {
			links = append(links, *segment.Link)
		}
	}
	return links
}

func splitPlainURLs(text string) []Segment {
	if text == "" {
		return nil
	}

	var segments []Segment
	lastEnd := 0
	for _, urlMatch := range plainURLPattern.FindAllStringIndex(text, -1) {
		if urlMatch[0] > lastEnd {
			segments = append(segments, Segment{Text: text[lastEnd:urlMatch[0]]})
		}
		matchedURL := text[urlMatch[0]:urlMatch[1]]
		segments = append(segments, Segment{
			Text: matchedURL,
			Link: &Link{Label: matchedURL, URL: matchedURL},
		})
		lastEnd = urlMatch[1]
	}
	if lastEnd < len(text) {
		segments = append(segments, Segment{Text: text[lastEnd:]})
	}
	return segments
}
