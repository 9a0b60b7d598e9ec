package llmtest

import (
	"encoding/json"
	"fmt"
)

var categories = []string{"technical", "behavioral", "situational", "company"}

// QuestionsJSON renders a generate_questions answer with n questions,
// cycling through every category. label prefixes each question text.
func QuestionsJSON(n int, label string) string {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"question":       fmt.Sprintf("%s question %d", label, i+1),
			"category":       categories[i%len(categories)],
			"tips":           []string{fmt.Sprintf("tip for %d", i+1)},
			"expectedAnswer": fmt.Sprintf("expected %d", i+1),
		})
	}
	out, _ := json.Marshal(map[string]any{"questions": items})
	return string(out)
}

// EvaluationJSON renders an evaluate_answer answer with the given score
func EvaluationJSON(score int) string {
	out, _ := json.Marshal(map[string]any{
		"score":        score,
		"feedback":     fmt.Sprintf("scored %d", score),
		"strengths":    []string{"clear"},
		"improvements": []string{"more detail"},
		"suggestions":  []string{"use STAR"},
	})
	return string(out)
}
