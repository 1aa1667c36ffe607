package cart

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ItemValidator validates an ItemSpec before it enters the item collection.
// A non-nil error names the first failing field and blocks the mutation.
type ItemValidator interface {
	Validate(spec ItemSpec) error
}

// itemRules is the default rule table, checked top to bottom so the first
// failing field wins.
var itemRules = []struct {
	field string
	rules string
}{
	{field: "id", rules: "required"},
	{field: "price", rules: "required|numeric|min:0"},
	{field: "quantity", rules: "required|numeric|min:0.1"},
	{field: "name", rules: "required"},
}

// rulesValidator is the default ItemValidator, implementing the
// required / numeric / min:<n> rule vocabulary over the fixed rule table.
type rulesValidator struct{}

// NewItemRulesValidator returns the default rule-based item validator.
func NewItemRulesValidator() ItemValidator {
	return rulesValidator{}
}

func (rulesValidator) Validate(spec ItemSpec) error {
	for _, entry := range itemRules {
		for _, rule := range strings.Split(entry.rules, "|") {
			if failure := checkRule(spec, entry.field, rule); failure != nil {
				return failure
			}
		}
	}

	return nil
}

func checkRule(spec ItemSpec, field, rule string) error {
	stringValue, numericValue, isString := fieldValue(spec, field)

	switch {
	case rule == "required":
		if isString && stringValue == "" {
			return fmt.Errorf("the %s field is required", field)
		}

	case rule == "numeric":
		if !isString && (math.IsNaN(numericValue) || math.IsInf(numericValue, 0)) {
			return fmt.Errorf("the %s field must be numeric", field)
		}

	case strings.HasPrefix(rule, "min:"):
		minimum, parseErr := strconv.ParseFloat(strings.TrimPrefix(rule, "min:"), 64)
		if parseErr != nil {
			return errors.Join(errors.New("malformed validation rule"), parseErr)
		}

		if !isString && numericValue < minimum {
			return fmt.Errorf("the %s field must be at least %v", field, minimum)
		}
	}

	return nil
}

func fieldValue(spec ItemSpec, field string) (stringValue string, numericValue float64, isString bool) {
	switch field {
	case "id":
		return spec.ID, 0, true
	case "name":
		return spec.Name, 0, true
	case "price":
		return "", spec.Price, false
	case "quantity":
		return "", spec.Quantity, false
	default:
		return "", 0, true
	}
}

// wellFormedItem is the defensive-read check applied to deserialized
// entries. It is structural, not the add-path rule table: the cart itself
// stores states the add rules would reject (an absolute quantity update to
// 0), so only genuinely corrupt or foreign entries are rejected.
func wellFormedItem(spec ItemSpec) error {
	if spec.ID == "" {
		return errors.New("stored item entry has no id")
	}

	if math.IsNaN(spec.Price) || math.IsInf(spec.Price, 0) || spec.Price < 0 {
		return fmt.Errorf("stored item entry %q has a broken price", spec.ID)
	}

	if math.IsNaN(spec.Quantity) || math.IsInf(spec.Quantity, 0) || spec.Quantity < 0 {
		return fmt.Errorf("stored item entry %q has a broken quantity", spec.ID)
	}

	return nil
}
