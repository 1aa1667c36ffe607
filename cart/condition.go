package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConditionTarget governs at which aggregation stage a condition applies.
// The zero value targets the owning item's price sum.
type ConditionTarget string

const (
	// TargetItem applies a condition to the price sum of the item it is
	// attached to. It is the default for conditions without a target.
	TargetItem ConditionTarget = ""

	// TargetSubtotal applies a condition to the cart subtotal.
	TargetSubtotal ConditionTarget = "subtotal"

	// TargetTotal applies a condition to the cart total, after all
	// subtotal-scoped conditions have been resolved.
	TargetTotal ConditionTarget = "total"
)

// ConditionSpec is the scalar input for NewCondition.
//
// Value holds a signed magnitude, fixed or percentage: "-5", "+15",
// "-12.5%", "5%". The sign defaults to positive when unspecified.
//
// Order accepts numeric kinds and numeric strings; any other input
// normalizes to 0, which means "unranked — append after the current maximum
// rank at insertion time".
type ConditionSpec struct {
	Name       string
	Type       string
	Target     ConditionTarget
	Value      string
	Order      any
	Attributes Attributes
}

// Condition is an immutable price adjustment: a name, a free-form type tag
// used for group filtering, a target stage, a signed fixed or percentage
// value, and an explicit ordering rank.
//
// Its evaluation is a pure function of the base amount; it never reads
// external state. Construct it with NewCondition.
type Condition struct {
	name       string
	condType   string
	target     ConditionTarget
	value      string
	order      int
	attributes Attributes
	percentage bool
	magnitude  float64
	negative   bool
}

// NewCondition is the factory method for Condition.
//
// It requires Name, Type and a parseable Value and returns an error joined
// with ErrInvalidCondition otherwise.
func NewCondition(spec ConditionSpec) (Condition, error) {
	if spec.Name == "" {
		return Condition{}, errors.Join(ErrInvalidCondition, errors.New("name is required"))
	}

	if spec.Type == "" {
		return Condition{}, errors.Join(ErrInvalidCondition, errors.New("type is required"))
	}

	magnitude, negative, percentage, parseErr := parseConditionValue(spec.Value)
	if parseErr != nil {
		return Condition{}, errors.Join(ErrInvalidCondition, parseErr)
	}

	return Condition{
		name:       spec.Name,
		condType:   spec.Type,
		target:     spec.Target,
		value:      spec.Value,
		order:      normalizeOrder(spec.Order),
		attributes: spec.Attributes,
		percentage: percentage,
		magnitude:  magnitude,
		negative:   negative,
	}, nil
}

// Name returns the condition's name, its unique key within a collection.
func (c Condition) Name() string {
	return c.name
}

// Type returns the condition's free-form type tag, e.g. "tax" or "promo".
func (c Condition) Type() string {
	return c.condType
}

// Target returns the aggregation stage this condition applies at.
func (c Condition) Target() ConditionTarget {
	return c.target
}

// Value returns the raw value string the condition was constructed with.
func (c Condition) Value() string {
	return c.value
}

// Order returns the normalized ordering rank, 0 meaning unranked.
func (c Condition) Order() int {
	return c.order
}

// Attributes returns the condition's display metadata.
func (c Condition) Attributes() Attributes {
	return c.attributes
}

// IsPercentage reports whether the condition's value is a percentage.
func (c Condition) IsPercentage() bool {
	return c.percentage
}

// Apply evaluates the condition against a base amount and returns the
// adjusted amount. Percentage values adjust by base*magnitude/100, fixed
// values by the magnitude itself, signed either way. The result is clamped
// to zero: a condition may reduce a value to zero but never below it.
func (c Condition) Apply(base float64) float64 {
	delta := c.magnitude
	if c.percentage {
		delta = base * c.magnitude / 100
	}

	if c.negative {
		delta = -delta
	}

	return math.Max(0, base+delta)
}

// CalculatedValue returns the isolated delta the condition actually applies
// to the given base, post-floor, as an absolute amount. It reports "this
// condition saved/added X" independent of chaining.
func (c Condition) CalculatedValue(base float64) float64 {
	return math.Abs(c.Apply(base) - base)
}

// withOrder returns a copy with the given rank. Used by ConditionCollection
// when assigning ranks to unranked conditions at insertion time.
func (c Condition) withOrder(order int) Condition {
	c.order = order
	return c
}

// isZero reports whether the condition was not built through NewCondition.
func (c Condition) isZero() bool {
	return c.name == ""
}

func parseConditionValue(value string) (magnitude float64, negative bool, percentage bool, err error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, false, false, errors.New("value is required")
	}

	switch raw[0] {
	case '-':
		negative = true
		raw = raw[1:]
	case '+':
		raw = raw[1:]
	}

	if strings.HasSuffix(raw, "%") {
		percentage = true
		raw = strings.TrimSuffix(raw, "%")
	}

	magnitude, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil || math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return 0, false, false, fmt.Errorf("value %q cannot be parsed into a signed magnitude", value)
	}

	return magnitude, negative, percentage, nil
}

// normalizeOrder maps arbitrary order input to a non-negative integer rank.
// Non-numeric input normalizes to 0 (unranked), as does negative input.
func normalizeOrder(order any) int {
	normalized := 0

	switch v := order.(type) {
	case nil:
	case int:
		normalized = v
	case int8:
		normalized = int(v)
	case int16:
		normalized = int(v)
	case int32:
		normalized = int(v)
	case int64:
		normalized = int(v)
	case uint:
		normalized = int(v)
	case uint8:
		normalized = int(v)
	case uint16:
		normalized = int(v)
	case uint32:
		normalized = int(v)
	case uint64:
		normalized = int(v)
	case float32:
		normalized = int(v)
	case float64:
		normalized = int(v)
	case json.Number:
		if parsed, parseErr := v.Float64(); parseErr == nil {
			normalized = int(parsed)
		}
	case string:
		if parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(v), 64); parseErr == nil {
			normalized = int(parsed)
		}
	}

	if normalized < 0 {
		normalized = 0
	}

	return normalized
}
