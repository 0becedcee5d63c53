package structured

import "strings"

// BuildPrompt assembles the user prompt: instructions, the JSON schema the
// reply must satisfy, and the (already truncated) content.
func BuildPrompt(instructions string, schema []byte, content string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(instructions))
	sb.WriteString("\n\nRespond with a single JSON value that validates against this JSON Schema. ")
	sb.WriteString("Use null for anything the content does not state. Do not add commentary.\n")
	sb.WriteString("<schema>\n")
	sb.Write(schema)
	sb.WriteString("\n</schema>\n\n<content>\n")
	sb.WriteString(content)
	sb.WriteString("\n</content>")
	return sb.String()
}
