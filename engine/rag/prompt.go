package rag

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/docrag/engine/llm"
)

// FallbackAnswer is the sentence the prompt asks the generator to use when
// the context does not cover the question.
const FallbackAnswer = llm.FallbackAnswer

const promptTemplate = `You are a helpful assistant that answers questions based ONLY on the provided context.

CRITICAL INSTRUCTIONS:
1. Use ONLY the information from the context provided below
2. If the context does not contain information to answer the question, respond with: "` + FallbackAnswer + `"
3. Do NOT use your general knowledge or make assumptions
4. Do NOT hallucinate or invent information
5. If you're unsure, admit it rather than guessing

Context:
%s

Question: %s

Answer:`

// FormatContexts renders texts as "[Context i]: text" blocks separated by a
// blank line. Numbering starts at 1.
func FormatContexts(texts []string) string {
	parts := make([]string, len(texts))
	for i, t := range texts {
		parts[i] = fmt.Sprintf("[Context %d]: %s", i+1, t)
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt fills the grounded-answer template. With no contexts the
// context section is empty and the prompt is still complete.
func BuildPrompt(question string, contexts []string) string {
	return fmt.Sprintf(promptTemplate, FormatContexts(contexts), question)
}
