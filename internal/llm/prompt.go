package llm

import "strings"

const promptTemplate = `You are an invoice-parsing assistant.
Extract **exactly** these fields from the invoice text and return ONLY valid JSON:

{format_instructions}

Invoice text:
{text}
`

// BuildPrompt fills the two slots of the fixed instruction template. The text is
// inserted whole; long documents are not truncated.
func BuildPrompt(instructions, text string) string {
	// a single pass so braces inside instructions or text are never re-expanded
	return strings.NewReplacer(
		"{format_instructions}", instructions,
		"{text}", text,
	).Replace(promptTemplate)
}
