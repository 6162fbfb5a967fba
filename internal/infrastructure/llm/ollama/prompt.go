package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
)

func buildAnswerPrompt(question string, docs []domain.Document) string {
	var contextBuilder strings.Builder
	for idx, doc := range docs {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] id=%s\n%s\n\n",
			idx+1,
			doc.ID,
			doc.Content,
		))
	}

	return fmt.Sprintf(`Answer user question only from context below.
If context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}

func buildJudgePrompt(contextText, question, answer string) string {
	return fmt.Sprintf(`You are grading a retrieval-augmented answer.
Return strict JSON object with keys:
grounding_score (number from 0 to 1, how well the answer is supported by the context),
relevance_score (number from 0 to 1, how well the answer addresses the question).
No markdown, no extra keys.

Context:
%s

Question:
%s

Answer:
%s
`, contextText, question, answer)
}
