/*
Package parser recovers a structured review from the semi-structured text the
model returns. The model is prompted to emit marker-delimited sections, but
the output is not trusted: blocks may be missing, lines malformed, markers
unterminated. Parsing degrades instead of failing, and every scan is a
left-to-right index search so pathological input cannot blow up scan time the
way a backtracking regex can.
*/
package parser

import (
	"strings"

	"github.com/contentreview/pkg/models"
)

// Marker vocabulary the model is prompted with. Case-sensitive literals.
const (
	scoresOpen   = "[SCORES]"
	scoresClose  = "[/SCORES]"
	contentOpen  = "[REVIEWED_CONTENT]"
	contentClose = "[/REVIEWED_CONTENT]"
	improveOpen  = "[IMPROVEMENTS]"
	improveClose = "[/IMPROVEMENTS]"
	issueOpen    = "[ISSUE:"
	issueClose   = "[/ISSUE]"
	priorityOpen = "[PRIORITY:"
)

// Mandatory and optional field labels inside one improvement sub-block.
const (
	fieldCategory  = "CATEGORY"
	fieldIssue     = "ISSUE"
	fieldWhy       = "WHY"
	fieldCurrent   = "CURRENT"
	fieldSuggested = "SUGGESTED"
)

// Parse converts a review response into a ParsedReview. It is total: it never
// panics and always returns a fully-populated shape with empty containers for
// whatever it could not recover. Logging is the caller's job.
func Parse(text string) (result models.ParsedReview) {
	result = models.EmptyParsedReview()
	defer func() {
		if r := recover(); r != nil {
			result = models.EmptyParsedReview()
		}
	}()

	if hasMarkers(text) {
		result = parseMarkerFormat(text)
		return result
	}
	result = parseLineFormat(text)
	return result
}

// hasMarkers decides the format: any section marker means marker format.
func hasMarkers(text string) bool {
	return strings.Contains(text, scoresOpen) ||
		strings.Contains(text, contentOpen) ||
		strings.Contains(text, improveOpen)
}

func parseMarkerFormat(text string) models.ParsedReview {
	result := models.EmptyParsedReview()

	if block, ok := section(text, scoresOpen, scoresClose); ok {
		result.Scores = parseScoresBlock(block)
	}
	if block, ok := section(text, contentOpen, contentClose); ok {
		result.ReviewedContent.Issues = scanIssues(block)
		result.ReviewedContent.PlainText = stripIssueMarkers(block)
	}
	if block, ok := section(text, improveOpen, improveClose); ok {
		result.Improvements = parseImprovements(block)
	}
	return result
}

// parseLineFormat handles responses with no structural markers at all: scan
// line by line for score-shaped text and keep every line verbatim so nothing
// is lost. This format never yields issues or improvements.
func parseLineFormat(text string) models.ParsedReview {
	result := models.EmptyParsedReview()

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		label := strings.TrimSpace(line[:colon])
		if score, note, ok := scoreShape(line[colon+1:]); ok {
			result.Scores[label] = models.CategoryScore{Score: score, Note: note}
		}
	}
	result.ReviewedContent.PlainText = strings.Join(lines, "\n")
	return result
}

// section returns the text between open and close. A missing close marker is
// tolerated: everything after open is used.
func section(text, open, close string) (string, bool) {
	start := strings.Index(text, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	if end := strings.Index(text[start:], close); end >= 0 {
		return text[start : start+end], true
	}
	return text[start:], true
}

// parseScoresBlock reads "Label: N/5 - note" lines. Lines that do not fit the
// shape are commentary the model mixed in; they're skipped, not errors.
func parseScoresBlock(block string) map[string]models.CategoryScore {
	scores := map[string]models.CategoryScore{}
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		label := strings.TrimSpace(line[:colon])
		if score, note, ok := scoreShape(line[colon+1:]); ok {
			scores[label] = models.CategoryScore{Score: score, Note: note}
		}
	}
	return scores
}

// scoreShape checks the "<digit>/5 ... <sep> note" shape. The digit itself is
// not range-checked: a model that writes 0/5 or 6/5 gets recorded as written
// rather than silently corrected. The separator is "-" or the en-dash the
// model sometimes substitutes, and must appear at or after offset 3 so the
// "/5" itself is never mistaken for a note delimiter.
func scoreShape(rest string) (int, string, bool) {
	r := strings.TrimSpace(rest)
	if len(r) < 3 || r[0] < '0' || r[0] > '9' || r[1] != '/' || r[2] != '5' {
		return 0, "", false
	}
	sep := indexSeparator(r, 3)
	if sep < 0 {
		return 0, "", false
	}
	_, width := separatorAt(r, sep)
	note := strings.TrimSpace(r[sep+width:])
	return int(r[0] - '0'), note, true
}

// indexSeparator finds the first "-" or en-dash at or after from.
func indexSeparator(s string, from int) int {
	hyphen := strings.Index(s[from:], "-")
	dash := strings.Index(s[from:], "–")
	switch {
	case hyphen < 0 && dash < 0:
		return -1
	case hyphen < 0:
		return from + dash
	case dash < 0:
		return from + hyphen
	case dash < hyphen:
		return from + dash
	default:
		return from + hyphen
	}
}

func separatorAt(s string, idx int) (string, int) {
	if strings.HasPrefix(s[idx:], "–") {
		return "–", len("–")
	}
	return "-", 1
}

// scanIssues walks the reviewed-content block left to right collecting
// [ISSUE:category]excerpt[/ISSUE] spans. Position is the offset of the
// opening marker within the block. An opener with no terminating "]" or no
// matching closer stops the scan; the remaining text stays in PlainText
// untouched, so nothing is silently lost.
func scanIssues(block string) []models.Issue {
	issues := []models.Issue{}
	pos := 0
	for {
		open := strings.Index(block[pos:], issueOpen)
		if open < 0 {
			break
		}
		open += pos
		catStart := open + len(issueOpen)
		catEnd := strings.Index(block[catStart:], "]")
		if catEnd < 0 {
			break
		}
		catEnd += catStart
		excStart := catEnd + 1
		closeIdx := strings.Index(block[excStart:], issueClose)
		if closeIdx < 0 {
			break
		}
		closeIdx += excStart
		issues = append(issues, models.Issue{
			Category: strings.TrimSpace(block[catStart:catEnd]),
			Text:     strings.TrimSpace(block[excStart:closeIdx]),
			Position: open,
		})
		pos = closeIdx + len(issueClose)
	}
	return issues
}

// stripIssueMarkers produces the plain text: drop every closing marker, then
// remove each opening-marker-through-"]" span in a second left-to-right pass.
// An unterminated opener keeps the rest of the text verbatim.
func stripIssueMarkers(block string) string {
	s := strings.Join(strings.Split(block, issueClose), "")

	var b strings.Builder
	pos := 0
	for {
		open := strings.Index(s[pos:], issueOpen)
		if open < 0 {
			b.WriteString(s[pos:])
			break
		}
		open += pos
		b.WriteString(s[pos:open])
		end := strings.Index(s[open+len(issueOpen):], "]")
		if end < 0 {
			b.WriteString(s[open:])
			break
		}
		pos = open + len(issueOpen) + end + 1
	}
	return b.String()
}

// parseImprovements splits the improvements block on the priority marker.
// The chunk before the first marker has no severity and is always discarded.
// A sub-block missing its severity or any of the three mandatory fields is
// dropped whole; partial improvements are never emitted.
func parseImprovements(block string) []models.Improvement {
	improvements := []models.Improvement{}
	parts := strings.Split(block, priorityOpen)
	for _, part := range parts[1:] {
		end := strings.Index(part, "]")
		if end < 0 {
			continue
		}
		severity := strings.ToLower(strings.TrimSpace(part[:end]))
		if severity == "" {
			continue
		}
		body := part[end+1:]

		category := fieldValue(body, fieldCategory)
		issue := fieldValue(body, fieldIssue)
		why := fieldValue(body, fieldWhy)
		if category == "" || issue == "" || why == "" {
			continue
		}

		improvements = append(improvements, models.Improvement{
			Severity:  severity,
			Category:  category,
			Issue:     issue,
			Why:       why,
			Current:   fieldValue(body, fieldCurrent),
			Suggested: fieldValue(body, fieldSuggested),
		})
	}
	return improvements
}

// fieldValue finds "NAME:" in the sub-block and returns the rest of that
// line, trimmed. Missing fields come back empty.
func fieldValue(body, name string) string {
	idx := strings.Index(body, name+":")
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(name)+1:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}
