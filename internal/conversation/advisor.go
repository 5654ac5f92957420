package conversation

import (
	"context"
	"strings"
)

// Advisor produces an answer to a free-text tax question.
type Advisor interface {
	Answer(ctx context.Context, question string) (string, error)
}

// CannedAdvisor answers from a small keyword table. It stands in for a
// human advisor or an external knowledge service.
type CannedAdvisor struct{}

func NewCannedAdvisor() *CannedAdvisor { return &CannedAdvisor{} }

var cannedAnswers = []struct {
	keyword string
	answer  string
}{
	{"deadline", "For most individual filers the federal deadline is April 15. If it falls on a weekend or holiday it moves to the next business day."},
	{"deduction", "Common deductions include mortgage interest, charitable donations, and state and local taxes up to the SALT cap. Whether itemizing beats the standard deduction depends on your totals."},
	{"refund", "Most e-filed refunds arrive within 21 days. Paper returns and returns with credits under review can take longer."},
	{"extension", "You can request an automatic six-month filing extension, but any tax owed is still due on the original deadline."},
	{"w-2", "Employers must send your W-2 by January 31. If it hasn't arrived by mid-February, contact the employer first and then the IRS."},
	{"self-employ", "Self-employed filers generally owe quarterly estimated taxes and can deduct ordinary business expenses, including part of the self-employment tax."},
}

const cannedFallback = "That's a good question. The answer depends on your specific situation, so I'd recommend confirming the details with one of our tax professionals."

func (a *CannedAdvisor) Answer(_ context.Context, question string) (string, error) {
	q := strings.ToLower(question)
	for _, c := range cannedAnswers {
		if strings.Contains(q, c.keyword) {
			return c.answer, nil
		}
	}
	return cannedFallback, nil
}
