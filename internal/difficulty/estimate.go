package difficulty

import (
	"regexp"
	"strconv"
	"strings"

	"cvone/interview/internal/models"
)

// years of experience in the languages we serve, e.g. "6+ years", "3-5 yrs", "ít nhất 2 năm"
var yearsPattern = regexp.MustCompile(`\b(\d{1,2})\s*(\+)?\s*(?:(?:-|–|to|à|bis|a)\s*(\d{1,2})\s*\+?\s*)?(?:years?|yrs?|năm|ans|jahre|años|anos)\b`)

var (
	seniorTerms = []string{
		"senior", "staff engineer", "principal", "tech lead", "team lead", "lead engineer",
		"software architect", "solutions architect", "head of", "engineering manager", "director", "sr.",
	}
	juniorTerms = []string{
		"junior", "intern", "internship", "entry-level", "entry level", "graduate",
		"fresher", "trainee", "jr.", "no experience",
	}
	advancedTerms = []string{
		"kubernetes", "system design", "distributed system", "microservice", "scalab",
		"high availability", "kafka", "terraform", "machine learning", "performance tuning",
		"event-driven", "service mesh", "sharding", "concurrency",
	}
	scopeTerms = []string{
		"design and own", "architecture", "mentor", "lead a team", "leading a team",
		"drive technical", "roadmap", "stakeholder", "cross-functional", "hiring",
	}
)

// Estimate applies the rule-based rubric to a job description:
//
//   - stated years of experience: 0-2 easy, 3-5 medium, more than 5 (or "5+") hard
//   - seniority words (senior, staff, principal, lead, architect) imply hard,
//     junior/intern/graduate imply easy when no years are stated
//   - breadth of advanced technologies and design/leadership scope raise the
//     estimate one tier
//
// It is the baseline handed to the model, not the final answer.
func Estimate(jobDescription string) models.Difficulty {
	text := strings.ToLower(jobDescription)

	level := -1
	if years, plus, ok := maxYears(text); ok {
		switch {
		case years > 5 || (years == 5 && plus):
			level = 2
		case years >= 3:
			level = 1
		default:
			level = 0
		}
	}

	senior := containsAny(text, seniorTerms)
	junior := containsAny(text, juniorTerms)
	switch {
	case senior:
		if level < 2 {
			level = 2
		}
	case junior && level < 0:
		level = 0
	}

	if level < 0 {
		level = 1
	}

	if level < 2 && (countAny(text, advancedTerms) >= 3 || countAny(text, scopeTerms) >= 2) {
		level++
	}

	return models.DifficultyTiers()[level]
}

func maxYears(text string) (years int, plus bool, ok bool) {
	for _, m := range yearsPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		p := m[2] != ""
		if m[3] != "" {
			if upper, err := strconv.Atoi(m[3]); err == nil && upper > n {
				n, p = upper, false
			}
		}
		if n > 40 {
			continue
		}
		if !ok || n > years || (n == years && p) {
			years, plus, ok = n, p, true
		}
	}
	return years, plus, ok
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func countAny(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}
