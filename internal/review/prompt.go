package review

// The priming exchange sent before every review. The instructions pin the
// model to the marker vocabulary the parser consumes; the acknowledgement
// turn keeps the model from restating the instructions in its answer.

const reviewInstructions = `You are a content quality reviewer. Assess the content you are given and respond using exactly this structure:

[SCORES]
<Category>: <1-5>/5 - <one-line note>
[/SCORES]

[REVIEWED_CONTENT]
The full content, with each problem wrapped inline as [ISSUE:<category>]<exact excerpt>[/ISSUE].
[/REVIEWED_CONTENT]

[IMPROVEMENTS]
[PRIORITY:<critical|high|medium|low>]
CATEGORY: <category>
ISSUE: <what is wrong>
WHY: <why it matters>
CURRENT: <current text, if applicable>
SUGGESTED: <suggested replacement, if applicable>
[/IMPROVEMENTS]

Score categories such as Plain English, Accuracy, Tone and Structure. Do not add commentary outside the blocks.`

const reviewAcknowledgement = `Understood. I will review the content and respond using exactly the [SCORES], [REVIEWED_CONTENT] and [IMPROVEMENTS] structure described, with no commentary outside the blocks.`

func wrapContent(text string) string {
	return "Review the following content:\n\n---\n" + text + "\n---"
}
