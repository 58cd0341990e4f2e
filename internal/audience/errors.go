package audience

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRuleValue is returned when a condition value cannot be interpreted
	ErrInvalidRuleValue = errors.New("invalid rule value")
	// ErrUnsupportedOperator is returned for operator/field combinations the compiler does not support
	ErrUnsupportedOperator = errors.New("unsupported operator")
	// ErrRuleTooDeep is returned when groups nest deeper than the configured limit
	ErrRuleTooDeep = errors.New("rule groups nested too deeply")
)

// ValidationError describes one problem found in a rule set
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e ValidationError) Unwrap() error { return e.err }

// ValidationErrors is every problem found in a rule set
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "rule validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is see the underlying compiler errors
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e.err
	}
	return errs
}
