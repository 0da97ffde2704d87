package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentreview/pkg/models"
)

func TestParseEmptyInput(t *testing.T) {
	result := Parse("")

	assert.Equal(t, models.EmptyParsedReview(), result)
	assert.NotNil(t, result.Scores)
	assert.NotNil(t, result.ReviewedContent.Issues)
	assert.NotNil(t, result.Improvements)
	assert.Equal(t, "", result.ReviewedContent.PlainText)
}

func TestParseLineFormatScores(t *testing.T) {
	input := "Clarity: 4/5 - Good use of simple language\nAccuracy: 5/5 - Excellent"

	result := Parse(input)

	require.Len(t, result.Scores, 2)
	assert.Equal(t, 4, result.Scores["Clarity"].Score)
	assert.Equal(t, "Good use of simple language", result.Scores["Clarity"].Note)
	assert.Equal(t, 5, result.Scores["Accuracy"].Score)
	assert.Equal(t, "Excellent", result.Scores["Accuracy"].Note)

	// Line format never yields issues or improvements, and keeps all text.
	assert.Empty(t, result.ReviewedContent.Issues)
	assert.Empty(t, result.Improvements)
	assert.Equal(t, input, result.ReviewedContent.PlainText)
}

func TestParseLineFormatKeepsUnmatchedLines(t *testing.T) {
	input := "Here is my assessment.\nClarity: 4/5 - Fine\nSome closing remark."

	result := Parse(input)

	require.Len(t, result.Scores, 1)
	assert.Equal(t, input, result.ReviewedContent.PlainText)
}

func TestParseScoresBlock(t *testing.T) {
	input := `[SCORES]
Plain English: 3/5 - Too much jargon
Tone: 5/5 - Friendly throughout

Note from the model: these are provisional.
Structure: 2/5 – Reorder the second section
[/SCORES]`

	result := Parse(input)

	require.Len(t, result.Scores, 3)
	assert.Equal(t, 3, result.Scores["Plain English"].Score)
	assert.Equal(t, "Too much jargon", result.Scores["Plain English"].Note)
	// En-dash separator is accepted.
	assert.Equal(t, "Reorder the second section", result.Scores["Structure"].Note)
}

func TestParseScoresOutOfRangeDigitsKept(t *testing.T) {
	input := "[SCORES]\nBroken: 0/5 - Zero\nEager: 6/5 - Overenthusiastic\n[/SCORES]"

	result := Parse(input)

	require.Len(t, result.Scores, 2)
	assert.Equal(t, 0, result.Scores["Broken"].Score)
	assert.Equal(t, 6, result.Scores["Eager"].Score)
}

func TestParseScoresSkipsMalformedLines(t *testing.T) {
	input := "[SCORES]\nClarity: 4/5 - Good\nno colon here\nLabel: not a score\nAlso: 4/5\n[/SCORES]"

	result := Parse(input)

	// "Also: 4/5" has no trailing separator and is skipped.
	require.Len(t, result.Scores, 1)
	assert.Contains(t, result.Scores, "Clarity")
}

func TestParseReviewedContentIssues(t *testing.T) {
	input := "[REVIEWED_CONTENT]First [ISSUE:Grammar]error one[/ISSUE] and second [ISSUE:Spelling]error two[/ISSUE].[/REVIEWED_CONTENT]"

	result := Parse(input)

	require.Len(t, result.ReviewedContent.Issues, 2)
	assert.Equal(t, "Grammar", result.ReviewedContent.Issues[0].Category)
	assert.Equal(t, "error one", result.ReviewedContent.Issues[0].Text)
	assert.Equal(t, "Spelling", result.ReviewedContent.Issues[1].Category)
	assert.Equal(t, "First error one and second error two.", result.ReviewedContent.PlainText)
}

func TestParseIssuePositions(t *testing.T) {
	block := "abc [ISSUE:X]y[/ISSUE] tail [ISSUE:Z]w[/ISSUE]"
	input := "[REVIEWED_CONTENT]" + block + "[/REVIEWED_CONTENT]"

	result := Parse(input)

	require.Len(t, result.ReviewedContent.Issues, 2)
	assert.Equal(t, strings.Index(block, "[ISSUE:X]"), result.ReviewedContent.Issues[0].Position)
	assert.Equal(t, strings.Index(block, "[ISSUE:Z]"), result.ReviewedContent.Issues[1].Position)
}

func TestParseIssueEmptyCategoryAndExcerpt(t *testing.T) {
	input := "[REVIEWED_CONTENT]a [ISSUE:][/ISSUE] b[/REVIEWED_CONTENT]"

	result := Parse(input)

	require.Len(t, result.ReviewedContent.Issues, 1)
	assert.Equal(t, "", result.ReviewedContent.Issues[0].Category)
	assert.Equal(t, "", result.ReviewedContent.Issues[0].Text)
	assert.Equal(t, "a  b", result.ReviewedContent.PlainText)
}

func TestParseUnterminatedIssueKeepsRemainder(t *testing.T) {
	input := "[REVIEWED_CONTENT]ok [ISSUE:A]good[/ISSUE] then [ISSUE:B]never closed[/REVIEWED_CONTENT]"

	result := Parse(input)

	// Issue scanning stops at the opener with no [/ISSUE]; the first issue
	// survives. The strip pass still drops the dangling opener (it has a "]")
	// but keeps its text.
	require.Len(t, result.ReviewedContent.Issues, 1)
	assert.Equal(t, "A", result.ReviewedContent.Issues[0].Category)
	assert.Equal(t, "ok good then never closed", result.ReviewedContent.PlainText)
}

func TestParseRoundTripPlainText(t *testing.T) {
	cases := []string{
		"no issues at all",
		"",
		"one [ISSUE:Cat]bad[/ISSUE] here",
		"[ISSUE:A]x[/ISSUE][ISSUE:B]y[/ISSUE]",
		"leading text [ISSUE:C]middle[/ISSUE] trailing",
	}
	for _, block := range cases {
		input := "[REVIEWED_CONTENT]" + block + "[/REVIEWED_CONTENT]"
		result := Parse(input)

		expected := block
		expected = strings.Join(strings.Split(expected, "[/ISSUE]"), "")
		for {
			open := strings.Index(expected, "[ISSUE:")
			if open < 0 {
				break
			}
			end := strings.Index(expected[open:], "]")
			if end < 0 {
				break
			}
			expected = expected[:open] + expected[open+end+1:]
		}
		assert.Equal(t, expected, result.ReviewedContent.PlainText, "block %q", block)
	}
}

func TestParseImprovements(t *testing.T) {
	input := `[IMPROVEMENTS]
Preamble the model added on its own.
[PRIORITY:High]
CATEGORY: Clarity
ISSUE: The intro is dense
WHY: Readers drop off in the first paragraph
CURRENT: Our multi-faceted synergistic approach
SUGGESTED: What we do, in one sentence
[PRIORITY:low]
CATEGORY: Tone
ISSUE: Passive voice
WHY: Weakens the call to action
[/IMPROVEMENTS]`

	result := Parse(input)

	require.Len(t, result.Improvements, 2)
	first := result.Improvements[0]
	assert.Equal(t, "high", first.Severity)
	assert.Equal(t, "Clarity", first.Category)
	assert.Equal(t, "The intro is dense", first.Issue)
	assert.Equal(t, "Readers drop off in the first paragraph", first.Why)
	assert.Equal(t, "Our multi-faceted synergistic approach", first.Current)
	assert.Equal(t, "What we do, in one sentence", first.Suggested)

	second := result.Improvements[1]
	assert.Equal(t, "low", second.Severity)
	assert.Equal(t, "", second.Current)
	assert.Equal(t, "", second.Suggested)
}

func TestParseImprovementsDropsIncompleteSubBlocks(t *testing.T) {
	input := `[IMPROVEMENTS]
[PRIORITY:Medium]
CATEGORY: Grammar
ISSUE: Misplaced comma
[PRIORITY:High]
CATEGORY: Accuracy
ISSUE: Wrong figure in the table
WHY: Misleads the reader
[/IMPROVEMENTS]`

	result := Parse(input)

	// First sub-block has no WHY and is dropped whole.
	require.Len(t, result.Improvements, 1)
	assert.Equal(t, "high", result.Improvements[0].Severity)
	assert.Equal(t, "Accuracy", result.Improvements[0].Category)
}

func TestParseImprovementsEmptySeverityDropped(t *testing.T) {
	input := "[IMPROVEMENTS]\n[PRIORITY:]\nCATEGORY: A\nISSUE: B\nWHY: C\n[/IMPROVEMENTS]"

	result := Parse(input)

	assert.Empty(t, result.Improvements)
}

func TestParseDeterministic(t *testing.T) {
	input := `[SCORES]
Clarity: 4/5 - Good
[/SCORES]
[REVIEWED_CONTENT]x [ISSUE:A]y[/ISSUE] z[/REVIEWED_CONTENT]
[IMPROVEMENTS]
[PRIORITY:High]
CATEGORY: C
ISSUE: I
WHY: W
[/IMPROVEMENTS]`

	first := Parse(input)
	second := Parse(input)

	assert.Equal(t, first, second)
}

func TestParseMissingCloseMarkersTolerated(t *testing.T) {
	input := "[SCORES]\nClarity: 4/5 - Good"

	result := Parse(input)

	require.Len(t, result.Scores, 1)
	assert.Equal(t, 4, result.Scores["Clarity"].Score)
}

func TestParseMarkerFormatWithoutContentBlock(t *testing.T) {
	input := "[SCORES]\nClarity: 4/5 - Good\n[/SCORES]"

	result := Parse(input)

	assert.Equal(t, "", result.ReviewedContent.PlainText)
	assert.Empty(t, result.ReviewedContent.Issues)
}

func TestParsePathologicalInputTerminates(t *testing.T) {
	// A long run of unclosed openers must not cause super-linear behavior or
	// a panic; it parses to zero issues with the text intact.
	input := "[REVIEWED_CONTENT]" + strings.Repeat("[ISSUE:x", 5000) + "[/REVIEWED_CONTENT]"

	result := Parse(input)

	assert.Empty(t, result.ReviewedContent.Issues)
	assert.NotEmpty(t, result.ReviewedContent.PlainText)
}
