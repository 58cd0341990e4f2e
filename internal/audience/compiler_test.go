package audience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestCompiler() *Compiler {
	return NewCompiler(WithClock(func() time.Time { return fixedNow }))
}

func daysAgo(d int) *time.Time {
	t := fixedNow.AddDate(0, 0, -d)
	return &t
}

func TestCompileEmptyGroupMatchesAll(t *testing.T) {
	c := newTestCompiler()
	for _, op := range []models.LogicalOperator{models.LogicalAnd, models.LogicalOr} {
		f, err := c.Compile(models.RuleGroup{LogicalOperator: op})
		require.NoError(t, err)
		assert.True(t, IsMatchAll(f))
		assert.Equal(t, bson.M{}, f.BSON())

		customers := []*models.Customer{
			{Name: "Ada"},
			{Name: "Bob", TotalSpends: 5000, VisitCount: 9, LastActiveDate: daysAgo(3)},
			{},
		}
		for _, cust := range customers {
			assert.True(t, f.Match(cust))
		}
	}
}

func TestCompileSingleConditionIsUnwrapped(t *testing.T) {
	f, err := newTestCompiler().Compile(models.RuleGroup{
		LogicalOperator: models.LogicalAnd,
		Conditions: []models.RuleCondition{
			{Field: models.FieldTotalSpends, Operator: models.OpGreaterThan, Value: float64(1000)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"totalSpends": bson.M{"$gt": float64(1000)}}, f.BSON())
}

func TestCompileNestedGroups(t *testing.T) {
	rules := models.RuleGroup{
		LogicalOperator: models.LogicalAnd,
		Conditions: []models.RuleCondition{
			{Field: models.FieldVisitCount, Operator: models.OpGreaterThan, Value: "2"},
		},
		Groups: []models.RuleGroup{{
			LogicalOperator: models.LogicalOr,
			Conditions: []models.RuleCondition{
				{Field: models.FieldEmail, Operator: models.OpEndsWith, Value: "@example.com"},
				{Field: models.FieldName, Operator: models.OpStartsWith, Value: "a"},
			},
		}},
	}
	f, err := newTestCompiler().Compile(rules)
	require.NoError(t, err)

	expected := bson.M{"$and": bson.A{
		bson.M{"visitCount": bson.M{"$gt": float64(2)}},
		bson.M{"$or": bson.A{
			bson.M{"email": bson.M{"$regex": `@example\.com$`, "$options": "i"}},
			bson.M{"name": bson.M{"$regex": "^a", "$options": "i"}},
		}},
	}}
	assert.Equal(t, expected, f.BSON())

	assert.True(t, f.Match(&models.Customer{Name: "Zed", Email: "zed@EXAMPLE.com", VisitCount: 3}))
	assert.True(t, f.Match(&models.Customer{Name: "alice", Email: "alice@other.org", VisitCount: 5}))
	assert.False(t, f.Match(&models.Customer{Name: "Alice", Email: "alice@other.org", VisitCount: 2}))
	assert.False(t, f.Match(&models.Customer{Name: "Zed", Email: "zed@other.org", VisitCount: 10}))
}

func TestCompileOnlyEmptySubGroupsIsMatchAll(t *testing.T) {
	f, err := newTestCompiler().Compile(models.RuleGroup{
		LogicalOperator: models.LogicalAnd,
		Groups:          []models.RuleGroup{{LogicalOperator: models.LogicalOr}},
	})
	require.NoError(t, err)
	// the sub-group is itself match-all and gets unwrapped
	assert.True(t, IsMatchAll(f))
}

func TestCompileRelativeDates(t *testing.T) {
	c := newTestCompiler()
	threshold := fixedNow.Add(-30 * 24 * time.Hour)

	older, err := c.Compile(models.RuleGroup{Conditions: []models.RuleCondition{
		{Field: models.FieldLastActiveDate, Operator: models.OpOlderThanDays, Value: float64(30)},
	}})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"lastActiveDate": bson.M{"$lt": threshold}}, older.BSON())

	recent, err := c.Compile(models.RuleGroup{Conditions: []models.RuleCondition{
		{Field: models.FieldLastActiveDate, Operator: models.OpInLastDays, Value: "30"},
	}})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"lastActiveDate": bson.M{"$gte": threshold}}, recent.BSON())
}

func TestCompileRelativeDatesLargeValues(t *testing.T) {
	c := newTestCompiler()
	f, err := c.Compile(models.RuleGroup{Conditions: []models.RuleCondition{
		{Field: models.FieldLastActiveDate, Operator: models.OpOlderThanDays, Value: float64(200000)},
	}})
	require.NoError(t, err)

	want := fixedNow.AddDate(0, 0, -200000)
	assert.Equal(t, bson.M{"lastActiveDate": bson.M{"$lt": want}}, f.BSON())
	assert.Less(t, want.Year(), 1500)

	ancient := time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, f.Match(&models.Customer{LastActiveDate: &ancient}))

	f, err = c.Compile(models.RuleGroup{Conditions: []models.RuleCondition{
		{Field: models.FieldLastActiveDate, Operator: models.OpInLastDays, Value: float64(MaxRelativeDays)},
	}})
	require.NoError(t, err)
	assert.True(t, f.Match(&models.Customer{LastActiveDate: &ancient}))
}

func TestRelativeDateOperatorsPartitionCustomers(t *testing.T) {
	c := newTestCompiler()
	for _, days := range []interface{}{float64(0), float64(7), 30, "90", 1.5} {
		older, err := c.Compile(models.RuleGroup{Conditions: []models.RuleCondition{
			{Field: models.FieldLastActiveDate, Operator: models.OpOlderThanDays, Value: days},
		}})
		require.NoError(t, err)
		recent, err := c.Compile(models.RuleGroup{Conditions: []models.RuleCondition{
			{Field: models.FieldLastActiveDate, Operator: models.OpInLastDays, Value: days},
		}})
		require.NoError(t, err)

		for _, ago := range []int{0, 1, 6, 8, 29, 31, 89, 91, 365} {
			cust := &models.Customer{LastActiveDate: daysAgo(ago)}
			assert.NotEqual(t, older.Match(cust), recent.Match(cust), "days=%v ago=%d", days, ago)
		}
	}
}

func TestCompareOperators(t *testing.T) {
	lastSeen := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	cust := &models.Customer{Name: "Grace", Email: "grace@example.com", TotalSpends: 1500, VisitCount: 4, LastActiveDate: &lastSeen}

	tests := []struct {
		name string
		cond models.RuleCondition
		want bool
	}{
		{"spends greater", models.RuleCondition{Field: models.FieldTotalSpends, Operator: models.OpGreaterThan, Value: float64(1000)}, true},
		{"spends less", models.RuleCondition{Field: models.FieldTotalSpends, Operator: models.OpLessThan, Value: float64(1000)}, false},
		{"visits equal int", models.RuleCondition{Field: models.FieldVisitCount, Operator: models.OpEquals, Value: 4}, true},
		{"visits not equal", models.RuleCondition{Field: models.FieldVisitCount, Operator: models.OpNotEquals, Value: float64(4)}, false},
		{"name equals is case sensitive", models.RuleCondition{Field: models.FieldName, Operator: models.OpEquals, Value: "grace"}, false},
		{"name contains ignores case", models.RuleCondition{Field: models.FieldName, Operator: models.OpContains, Value: "RAC"}, true},
		{"contains escapes metacharacters", models.RuleCondition{Field: models.FieldEmail, Operator: models.OpContains, Value: "grace.example"}, false},
		{"date equals", models.RuleCondition{Field: models.FieldLastActiveDate, Operator: models.OpEquals, Value: "2026-01-10", DataType: models.DataTypeDate}, true},
		{"date before", models.RuleCondition{Field: models.FieldLastActiveDate, Operator: models.OpLessThan, Value: "2026-02-01T00:00:00Z", DataType: models.DataTypeDate}, true},
		{"date after", models.RuleCondition{Field: models.FieldLastActiveDate, Operator: models.OpGreaterThan, Value: "2026-02-01"}, false},
	}

	c := newTestCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Compile(models.RuleGroup{Conditions: []models.RuleCondition{tt.cond}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(cust))
		})
	}
}

func TestMissingLastActiveDate(t *testing.T) {
	c := newTestCompiler()
	cust := &models.Customer{Name: "New"}

	ne, err := c.Compile(models.RuleGroup{Conditions: []models.RuleCondition{
		{Field: models.FieldLastActiveDate, Operator: models.OpNotEquals, Value: "2026-01-01"},
	}})
	require.NoError(t, err)
	assert.True(t, ne.Match(cust))

	older, err := c.Compile(models.RuleGroup{Conditions: []models.RuleCondition{
		{Field: models.FieldLastActiveDate, Operator: models.OpOlderThanDays, Value: 10},
	}})
	require.NoError(t, err)
	assert.False(t, older.Match(cust))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		cond models.RuleCondition
		want error
	}{
		{"days not numeric", models.RuleCondition{Field: models.FieldLastActiveDate, Operator: models.OpOlderThanDays, Value: "soon"}, ErrInvalidRuleValue},
		{"days negative", models.RuleCondition{Field: models.FieldLastActiveDate, Operator: models.OpInLastDays, Value: float64(-1)}, ErrInvalidRuleValue},
		{"days beyond bound", models.RuleCondition{Field: models.FieldLastActiveDate, Operator: models.OpOlderThanDays, Value: float64(MaxRelativeDays + 1)}, ErrInvalidRuleValue},
		{"days on numeric field", models.RuleCondition{Field: models.FieldTotalSpends, Operator: models.OpInLastDays, Value: 5}, ErrUnsupportedOperator},
		{"bad date", models.RuleCondition{Field: models.FieldLastActiveDate, Operator: models.OpEquals, Value: "yesterday", DataType: models.DataTypeDate}, ErrInvalidRuleValue},
		{"date type on text field", models.RuleCondition{Field: models.FieldName, Operator: models.OpEquals, Value: "2026-01-01", DataType: models.DataTypeDate}, ErrInvalidRuleValue},
		{"number expected", models.RuleCondition{Field: models.FieldVisitCount, Operator: models.OpEquals, Value: "many"}, ErrInvalidRuleValue},
		{"contains on number", models.RuleCondition{Field: models.FieldTotalSpends, Operator: models.OpContains, Value: "1"}, ErrUnsupportedOperator},
		{"greater than on text", models.RuleCondition{Field: models.FieldName, Operator: models.OpGreaterThan, Value: "m"}, ErrUnsupportedOperator},
		{"unknown operator", models.RuleCondition{Field: models.FieldName, Operator: "SOUNDS_LIKE", Value: "x"}, ErrUnsupportedOperator},
		{"unknown field", models.RuleCondition{Field: "city", Operator: models.OpEquals, Value: "Lagos"}, ErrUnsupportedOperator},
	}

	c := newTestCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(models.RuleGroup{Conditions: []models.RuleCondition{tt.cond}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestCompileDepthLimit(t *testing.T) {
	c := NewCompiler(WithMaxDepth(3))
	deep := models.RuleGroup{Conditions: []models.RuleCondition{
		{Field: models.FieldVisitCount, Operator: models.OpGreaterThan, Value: 1},
	}}
	for i := 0; i < 3; i++ {
		deep = models.RuleGroup{LogicalOperator: models.LogicalOr, Groups: []models.RuleGroup{deep}}
	}

	_, err := c.Compile(deep)
	assert.ErrorIs(t, err, ErrRuleTooDeep)

	_, err = c.Compile(deep.Groups[0])
	assert.NoError(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	rules := models.RuleGroup{
		LogicalOperator: "XOR",
		Conditions: []models.RuleCondition{
			{Field: models.FieldTotalSpends, Operator: models.OpGreaterThan, Value: 100},
			{Field: models.FieldLastActiveDate, Operator: models.OpOlderThanDays, Value: "abc"},
		},
		Groups: []models.RuleGroup{{
			LogicalOperator: models.LogicalAnd,
			Conditions: []models.RuleCondition{
				{Field: models.FieldName, Operator: models.OpLessThan, Value: "b"},
			},
		}},
	}

	err := newTestCompiler().Validate(rules)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 3)
	assert.Equal(t, "logicalOperator", verrs[0].Path)
	assert.Equal(t, "conditions[1]", verrs[1].Path)
	assert.Equal(t, "groups[0].conditions[0]", verrs[2].Path)
	assert.ErrorIs(t, err, ErrInvalidRuleValue)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)

	assert.NoError(t, newTestCompiler().Validate(models.RuleGroup{}))
}
