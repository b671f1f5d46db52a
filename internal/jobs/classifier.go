package jobs

import (
	"strings"
)

// Keyword sets driving classification. Matching is case-insensitive against
// whitespace-split query terms, so "leadership" does not match "lead".
var (
	seniorityMarkers = []string{"senior", "staff", "principal", "lead", "architect"}

	salaryMarkers = []string{"salary", "salaries", "compensation", "pay"}

	namedCompanies = []string{
		"google", "facebook", "meta", "amazon", "microsoft", "apple",
		"netflix", "stripe", "shopify",
	}

	technologyTerms = []string{
		"react", "vue", "angular", "svelte", "nextjs", "node", "nodejs",
		"python", "django", "flask", "go", "golang", "rust", "java",
		"kotlin", "swift", "typescript", "javascript", "ruby", "rails",
		"php", "laravel", "solidity", "kubernetes", "terraform", "aws",
		"gcp", "azure", "postgres", "postgresql", "mysql", "redis",
		"kafka", "graphql", "frontend", "backend", "fullstack", "devops",
	}
)

// Classify maps a query to a priority tier. It is pure and deterministic:
// rules are evaluated in fixed precedence order and the first match wins.
func Classify(query Query) Priority {
	terms := tokenize(query.Terms)

	if containsAny(terms, seniorityMarkers) ||
		containsAny(terms, salaryMarkers) ||
		containsAny(terms, namedCompanies) {
		return PriorityHigh
	}

	if countMatches(terms, technologyTerms) >= 2 {
		return PriorityMedium
	}

	return PriorityLow
}

func tokenize(terms string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(terms)) {
		out[strings.Trim(field, ".,;:!?()[]\"'")] = struct{}{}
	}
	return out
}

func containsAny(terms map[string]struct{}, keywords []string) bool {
	for _, kw := range keywords {
		if _, ok := terms[kw]; ok {
			return true
		}
	}
	return false
}

func countMatches(terms map[string]struct{}, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if _, ok := terms[kw]; ok {
			n++
		}
	}
	return n
}
