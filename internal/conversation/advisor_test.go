package conversation

import (
	"context"
	"strings"
	"testing"
)

func TestCannedAdvisorMatchesKeywords(t *testing.T) {
	advisor := NewCannedAdvisor()

	tests := []struct {
		question string
		want     string
	}{
		{"When is the filing DEADLINE this year?", "April 15"},
		{"Can I claim a deduction for donations?", "standard deduction"},
		{"where is my refund", "21 days"},
		{"How do I file an extension?", "six-month"},
		{"I never got my W-2", "January 31"},
		{"I'm self-employed, what do I owe?", "quarterly"},
	}
	for _, tc := range tests {
		answer, err := advisor.Answer(context.Background(), tc.question)
		if err != nil {
			t.Fatalf("answer %q: %v", tc.question, err)
		}
		if !strings.Contains(answer, tc.want) {
			t.Fatalf("question %q: expected answer containing %q, got %q", tc.question, tc.want, answer)
		}
	}
}

func TestCannedAdvisorFallback(t *testing.T) {
	advisor := NewCannedAdvisor()
	answer, err := advisor.Answer(context.Background(), "what color should I paint my office")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer != cannedFallback {
		t.Fatalf("expected fallback, got %q", answer)
	}
}
