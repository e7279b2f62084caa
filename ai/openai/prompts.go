package openai

import "fmt"

const userPromptTemplate = "Video transcript excerpts:\n\n%s\n\nQuestion: %s"

func buildUserPrompt(context, question string) string {
	return fmt.Sprintf(userPromptTemplate, context, question)
}
