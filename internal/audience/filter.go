package audience

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
)

// Filter is a compiled audience predicate. BSON renders it as a MongoDB
// query document and Match evaluates it against a single customer with
// the same semantics the store applies.
type Filter interface {
	BSON() bson.M
	Match(c *models.Customer) bool
}

// MatchAll returns the canonical filter that matches every customer
func MatchAll() Filter { return matchAll{} }

// IsMatchAll reports whether f is the canonical match-all filter
func IsMatchAll(f Filter) bool {
	_, ok := f.(matchAll)
	return ok
}

type matchAll struct{}

func (matchAll) BSON() bson.M { return bson.M{} }
func (matchAll) Match(*models.Customer) bool { return true }

type logical struct {
	op    models.LogicalOperator
	parts []Filter
}

func (l logical) BSON() bson.M {
	docs := make(bson.A, 0, len(l.parts))
	for _, p := range l.parts {
		docs = append(docs, p.BSON())
	}
	if l.op == models.LogicalOr {
		return bson.M{"$or": docs}
	}
	return bson.M{"$and": docs}
}

func (l logical) Match(c *models.Customer) bool {
	if l.op == models.LogicalOr {
		for _, p := range l.parts {
			if p.Match(c) {
				return true
			}
		}
		return false
	}
	for _, p := range l.parts {
		if !p.Match(c) {
			return false
		}
	}
	return true
}

// comparison operators
const (
	opEq  = "$eq"
	opNe  = "$ne"
	opGt  = "$gt"
	opGte = "$gte"
	opLt  = "$lt"
)

// comparison compares a field against a float64, string or time.Time value
type comparison struct {
	field models.RuleField
	op    string
	value interface{}
}

func (f comparison) BSON() bson.M {
	return bson.M{string(f.field): bson.M{f.op: f.value}}
}

func (f comparison) Match(c *models.Customer) bool {
	actual, ok := fieldValue(c, f.field)
	if !ok {
		// a missing field only satisfies $ne
		return f.op == opNe
	}
	cmp, ok := compareValues(actual, f.value)
	if !ok {
		return f.op == opNe
	}
	switch f.op {
	case opEq:
		return cmp == 0
	case opNe:
		return cmp != 0
	case opGt:
		return cmp > 0
	case opGte:
		return cmp >= 0
	case opLt:
		return cmp < 0
	}
	return false
}

// pattern is a case-insensitive regular expression match on a string field
type pattern struct {
	field models.RuleField
	expr  string
	re    *regexp.Regexp
}

func newPattern(field models.RuleField, op models.RuleOperator, text string) pattern {
	expr := regexp.QuoteMeta(text)
	switch op {
	case models.OpStartsWith:
		expr = "^" + expr
	case models.OpEndsWith:
		expr = expr + "$"
	}
	return pattern{field: field, expr: expr, re: regexp.MustCompile("(?i)" + expr)}
}

func (f pattern) BSON() bson.M {
	return bson.M{string(f.field): bson.M{"$regex": f.expr, "$options": "i"}}
}

func (f pattern) Match(c *models.Customer) bool {
	actual, ok := fieldValue(c, f.field)
	if !ok {
		return false
	}
	s, ok := actual.(string)
	return ok && f.re.MatchString(s)
}

func fieldValue(c *models.Customer, field models.RuleField) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	switch field {
	case models.FieldTotalSpends:
		return c.TotalSpends, true
	case models.FieldVisitCount:
		return float64(c.VisitCount), true
	case models.FieldLastActiveDate:
		if c.LastActiveDate == nil {
			return nil, false
		}
		return *c.LastActiveDate, true
	case models.FieldName:
		return c.Name, true
	case models.FieldEmail:
		return c.Email, true
	}
	return nil, false
}

// compareValues orders two values of the same kind. Values of different
// kinds never compare equal, mirroring BSON type bracketing.
func compareValues(a, b interface{}) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		// stored dates carry millisecond precision
		at, bt := av.Truncate(time.Millisecond), bv.Truncate(time.Millisecond)
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
