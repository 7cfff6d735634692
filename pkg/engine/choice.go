package engine

import (
	"github.com/dukex/lakeflow/pkg/jsonpath"
	"github.com/dukex/lakeflow/pkg/models"
)

// choose returns the Next of the first matching rule, falling back to
// Default. A rule whose variable does not resolve does not match.
func (e *Engine) choose(info StepInfo, st *models.State, input any) (string, error) {
	lookup := func(path string) (any, bool) {
		return jsonpath.Lookup(input, path)
	}

	for _, rule := range st.Choices {
		if rule.Evaluate(lookup) {
			return rule.Next, nil
		}
	}

	if st.Default != "" {
		return st.Default, nil
	}

	return "", &RuntimeError{State: info.State, Err: ErrNoChoiceMatched}
}
