package audience

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
)

// DefaultMaxDepth bounds group nesting
const DefaultMaxDepth = 32

// MaxRelativeDays bounds OLDER_THAN_DAYS and IN_LAST_DAYS values
const MaxRelativeDays = 1000000

// Compiler translates rule groups into filters
type Compiler struct {
	now      func() time.Time
	maxDepth int
}

// Option configures a Compiler
type Option func(*Compiler)

// WithClock sets the time source used for relative date operators
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxDepth sets the maximum group nesting depth
func WithMaxDepth(depth int) Option {
	return func(c *Compiler) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// NewCompiler creates a new Compiler
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{now: time.Now, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile turns a rule group into a filter. An empty group compiles to
// MatchAll, and a group with a single member compiles to that member.
func (c *Compiler) Compile(group models.RuleGroup) (Filter, error) {
	return c.compileGroup(group, c.now(), 1)
}

func (c *Compiler) compileGroup(group models.RuleGroup, now time.Time, depth int) (Filter, error) {
	if depth > c.maxDepth {
		return nil, fmt.Errorf("%w: limit is %d", ErrRuleTooDeep, c.maxDepth)
	}
	op, err := normalizeLogical(group.LogicalOperator)
	if err != nil {
		return nil, err
	}

	parts := make([]Filter, 0, len(group.Conditions)+len(group.Groups))
	for _, cond := range group.Conditions {
		f, err := c.compileCondition(cond, now)
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}
	for _, sub := range group.Groups {
		f, err := c.compileGroup(sub, now, depth+1)
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}

	switch len(parts) {
	case 0:
		return MatchAll(), nil
	case 1:
		return parts[0], nil
	}
	return logical{op: op, parts: parts}, nil
}

func normalizeLogical(op models.LogicalOperator) (models.LogicalOperator, error) {
	switch models.LogicalOperator(strings.ToUpper(string(op))) {
	case models.LogicalAnd, "":
		return models.LogicalAnd, nil
	case models.LogicalOr:
		return models.LogicalOr, nil
	}
	return "", fmt.Errorf("%w: logical operator %q", ErrUnsupportedOperator, op)
}

func (c *Compiler) compileCondition(cond models.RuleCondition, now time.Time) (Filter, error) {
	natural, ok := cond.Field.NaturalType()
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", ErrUnsupportedOperator, cond.Field)
	}

	switch cond.Operator {
	case models.OpOlderThanDays, models.OpInLastDays:
		if natural != models.DataTypeDate {
			return nil, fmt.Errorf("%w: %s requires a date field, got %s", ErrUnsupportedOperator, cond.Operator, cond.Field)
		}
		days, ok := toNumber(cond.Value)
		if !ok || days < 0 || days > MaxRelativeDays {
			return nil, fmt.Errorf("%w: %s expects between 0 and %d days, got %v", ErrInvalidRuleValue, cond.Operator, MaxRelativeDays, cond.Value)
		}
		threshold := daysBefore(now, days)
		if cond.Operator == models.OpOlderThanDays {
			return comparison{field: cond.Field, op: opLt, value: threshold}, nil
		}
		return comparison{field: cond.Field, op: opGte, value: threshold}, nil

	case models.OpContains, models.OpStartsWith, models.OpEndsWith:
		if natural != models.DataTypeString {
			return nil, fmt.Errorf("%w: %s is only supported on text fields, got %s", ErrUnsupportedOperator, cond.Operator, cond.Field)
		}
		text, ok := toText(cond.Value)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects text, got %v", ErrInvalidRuleValue, cond.Operator, cond.Value)
		}
		return newPattern(cond.Field, cond.Operator, text), nil

	case models.OpEquals, models.OpNotEquals, models.OpGreaterThan, models.OpLessThan:
		value, err := coerceValue(cond, natural)
		if err != nil {
			return nil, err
		}
		var op string
		switch cond.Operator {
		case models.OpEquals:
			op = opEq
		case models.OpNotEquals:
			op = opNe
		case models.OpGreaterThan:
			op = opGt
		default:
			op = opLt
		}
		if natural == models.DataTypeString && (op == opGt || op == opLt) {
			return nil, fmt.Errorf("%w: %s is only supported on numeric and date fields, got %s", ErrUnsupportedOperator, cond.Operator, cond.Field)
		}
		return comparison{field: cond.Field, op: op, value: value}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, cond.Operator)
}

// coerceValue converts a condition value to the field's natural type
func coerceValue(cond models.RuleCondition, natural models.DataType) (interface{}, error) {
	if cond.DataType == models.DataTypeDate && natural != models.DataTypeDate {
		return nil, fmt.Errorf("%w: field %s does not hold dates", ErrInvalidRuleValue, cond.Field)
	}
	switch natural {
	case models.DataTypeNumber:
		n, ok := toNumber(cond.Value)
		if !ok {
			return nil, fmt.Errorf("%w: field %s expects a number, got %v", ErrInvalidRuleValue, cond.Field, cond.Value)
		}
		return n, nil
	case models.DataTypeDate:
		t, ok := toTime(cond.Value)
		if !ok {
			return nil, fmt.Errorf("%w: invalid date value for %s: %v", ErrInvalidRuleValue, cond.Field, cond.Value)
		}
		return t, nil
	default:
		s, ok := toText(cond.Value)
		if !ok {
			return nil, fmt.Errorf("%w: field %s expects text, got %v", ErrInvalidRuleValue, cond.Field, cond.Value)
		}
		return s, nil
	}
}

// daysBefore steps back whole days on the calendar in UTC so large values
// never overflow time.Duration; only the fractional day is a Duration.
func daysBefore(now time.Time, days float64) time.Time {
	whole, frac := math.Modf(days)
	t := now.UTC().AddDate(0, 0, -int(whole))
	t = t.Add(-time.Duration(frac * float64(24*time.Hour)))
	return t.In(now.Location())
}

func toNumber(v interface{}) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int32:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func toTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	case primitive.DateTime:
		return x.Time(), true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func toText(v interface{}) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case nil:
		return "", false
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int, int32, int64, bool:
		return fmt.Sprint(x), true
	}
	return "", false
}
