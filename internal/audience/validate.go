package audience

import (
	"fmt"
	"time"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
)

// Validate checks every condition and group of a rule set and reports
// all problems at once as ValidationErrors. It returns nil when the rule
// set compiles.
func (c *Compiler) Validate(group models.RuleGroup) error {
	var errs ValidationErrors
	c.validateGroup(group, "", c.now(), 1, &errs)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (c *Compiler) validateGroup(group models.RuleGroup, prefix string, now time.Time, depth int, errs *ValidationErrors) {
	if depth > c.maxDepth {
		*errs = append(*errs, newValidationError(prefix, fmt.Errorf("%w: limit is %d", ErrRuleTooDeep, c.maxDepth)))
		return
	}
	if _, err := normalizeLogical(group.LogicalOperator); err != nil {
		*errs = append(*errs, newValidationError(join(prefix, "logicalOperator"), err))
	}
	for i, cond := range group.Conditions {
		path := join(prefix, fmt.Sprintf("conditions[%d]", i))
		if _, err := c.compileCondition(cond, now); err != nil {
			*errs = append(*errs, newValidationError(path, err))
		}
	}
	for i, sub := range group.Groups {
		c.validateGroup(sub, join(prefix, fmt.Sprintf("groups[%d]", i)), now, depth+1, errs)
	}
}

func newValidationError(path string, err error) ValidationError {
	if path == "" {
		path = "rules"
	}
	return ValidationError{Path: path, Message: err.Error(), err: err}
}

func join(prefix, part string) string {
	if prefix == "" {
		return part
	}
	return prefix + "." + part
}
