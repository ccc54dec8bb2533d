// Package llmtest provides a testify mock of llm.Advisor.
package llmtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/medischedule-api/pkg/llm"
)

type MockAdvisor struct {
	mock.Mock
}

var _ llm.Advisor = (*MockAdvisor)(nil)

func (m *MockAdvisor) Advise(ctx context.Context, prompt llm.Prompt) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// Operation matches prompts by their Operation label.
func Operation(op string) interface{} {
	return mock.MatchedBy(func(p llm.Prompt) bool { return p.Operation == op })
}
