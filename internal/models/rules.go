package models

// RuleField names a customer attribute a rule condition can test.
type RuleField string

const (
	FieldTotalSpends    RuleField = "totalSpends"
	FieldVisitCount     RuleField = "visitCount"
	FieldLastActiveDate RuleField = "lastActiveDate"
	FieldName           RuleField = "name"
	FieldEmail          RuleField = "email"
)

// RuleOperator is the comparison applied by a rule condition.
type RuleOperator string

const (
	OpEquals        RuleOperator = "EQUALS"
	OpNotEquals     RuleOperator = "NOT_EQUALS"
	OpGreaterThan   RuleOperator = "GREATER_THAN"
	OpLessThan      RuleOperator = "LESS_THAN"
	OpContains      RuleOperator = "CONTAINS"
	OpStartsWith    RuleOperator = "STARTS_WITH"
	OpEndsWith      RuleOperator = "ENDS_WITH"
	OpOlderThanDays RuleOperator = "OLDER_THAN_DAYS"
	OpInLastDays    RuleOperator = "IN_LAST_DAYS"
)

// LogicalOperator combines the members of a rule group.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// DataType hints how a condition value should be interpreted.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeNumber  DataType = "number"
	DataTypeDate    DataType = "date"
	DataTypeBoolean DataType = "boolean"
)

// RuleCondition is a single comparison against a customer attribute.
// Value holds a string, a number or a date as decoded from JSON or BSON.
type RuleCondition struct {
	Field    RuleField    `bson:"field" json:"field" binding:"required"`
	Operator RuleOperator `bson:"operator" json:"operator" binding:"required"`
	Value    interface{}  `bson:"value" json:"value"`
	DataType DataType     `bson:"dataType,omitempty" json:"dataType,omitempty"`
}

// RuleGroup is a recursive boolean combination of conditions and
// nested groups. A rule set is the top-level RuleGroup.
type RuleGroup struct {
	LogicalOperator LogicalOperator `bson:"logicalOperator" json:"logicalOperator"`
	Conditions      []RuleCondition `bson:"conditions" json:"conditions"`
	Groups          []RuleGroup     `bson:"groups,omitempty" json:"groups,omitempty"`
}

// IsEmpty reports whether the group has neither conditions nor sub-groups.
// An empty top-level group targets every customer.
func (g RuleGroup) IsEmpty() bool {
	return len(g.Conditions) == 0 && len(g.Groups) == 0
}

// NaturalType returns the data type a field is stored with.
func (f RuleField) NaturalType() (DataType, bool) {
	switch f {
	case FieldTotalSpends, FieldVisitCount:
		return DataTypeNumber, true
	case FieldLastActiveDate:
		return DataTypeDate, true
	case FieldName, FieldEmail:
		return DataTypeString, true
	default:
		return "", false
	}
}
