package cart

import (
	"sort"
)

// ConditionCollection is an ordered mapping from condition name to Condition.
// Insertion order is preserved, except that the collection re-sorts by rank
// ascending after every insert; the sort is stable, so equal ranks keep
// their relative insertion order.
//
// Targets are evaluation stages, not just sort keys: Fold only ever applies
// the subset matching one target, and the Cart resolves item-level
// conditions before subtotal-scoped ones, and those before total-scoped
// ones. Within a stage, rank determines the sequence.
type ConditionCollection struct {
	conditions []Condition
}

// NewConditionCollection creates a collection and adds the given conditions
// in order, applying the usual rank assignment for unranked ones.
func NewConditionCollection(conditions ...Condition) *ConditionCollection {
	collection := &ConditionCollection{}

	for _, condition := range conditions {
		collection.Add(condition)
	}

	return collection
}

// Add inserts or replaces a condition by name. An unranked condition
// (rank 0) is assigned the collection's current maximum rank plus one, so
// unranked conditions append after everything present at insertion time and
// keep their insertion order among themselves.
func (cc *ConditionCollection) Add(condition Condition) {
	if condition.Order() == 0 {
		condition = condition.withOrder(cc.MaxOrder() + 1)
	}

	replaced := false
	for i, existing := range cc.conditions {
		if existing.Name() == condition.Name() {
			cc.conditions[i] = condition
			replaced = true
			break
		}
	}

	if !replaced {
		cc.conditions = append(cc.conditions, condition)
	}

	sort.SliceStable(cc.conditions, func(i, j int) bool {
		return cc.conditions[i].Order() < cc.conditions[j].Order()
	})
}

// Get returns the condition with the given name.
func (cc *ConditionCollection) Get(name string) (Condition, bool) {
	for _, condition := range cc.conditions {
		if condition.Name() == name {
			return condition, true
		}
	}

	return Condition{}, false
}

// Has reports whether a condition with the given name is present.
func (cc *ConditionCollection) Has(name string) bool {
	_, found := cc.Get(name)
	return found
}

// Len returns the number of conditions in the collection.
func (cc *ConditionCollection) Len() int {
	return len(cc.conditions)
}

// IsEmpty reports whether the collection holds no conditions.
func (cc *ConditionCollection) IsEmpty() bool {
	return len(cc.conditions) == 0
}

// All returns the conditions in ranked order.
func (cc *ConditionCollection) All() []Condition {
	all := make([]Condition, len(cc.conditions))
	copy(all, cc.conditions)

	return all
}

// Names returns the condition names in ranked order.
func (cc *ConditionCollection) Names() []string {
	names := make([]string, 0, len(cc.conditions))
	for _, condition := range cc.conditions {
		names = append(names, condition.Name())
	}

	return names
}

// MaxOrder returns the highest rank currently in the collection.
func (cc *ConditionCollection) MaxOrder() int {
	maxOrder := 0
	for _, condition := range cc.conditions {
		if condition.Order() > maxOrder {
			maxOrder = condition.Order()
		}
	}

	return maxOrder
}

// ByType returns a new collection holding only conditions with the given
// type tag, preserving ranked order.
func (cc *ConditionCollection) ByType(conditionType string) *ConditionCollection {
	filtered := &ConditionCollection{}
	for _, condition := range cc.conditions {
		if condition.Type() == conditionType {
			filtered.conditions = append(filtered.conditions, condition)
		}
	}

	return filtered
}

// ByTarget returns a new collection holding only conditions applying at the
// given stage, preserving ranked order.
func (cc *ConditionCollection) ByTarget(target ConditionTarget) *ConditionCollection {
	filtered := &ConditionCollection{}
	for _, condition := range cc.conditions {
		if condition.Target() == target {
			filtered.conditions = append(filtered.conditions, condition)
		}
	}

	return filtered
}

// RemoveByName removes the condition with the given name and reports
// whether one was removed.
func (cc *ConditionCollection) RemoveByName(name string) bool {
	for i, condition := range cc.conditions {
		if condition.Name() == name {
			cc.conditions = append(cc.conditions[:i], cc.conditions[i+1:]...)
			return true
		}
	}

	return false
}

// RemoveByType removes all conditions with the given type tag and returns
// how many were removed.
func (cc *ConditionCollection) RemoveByType(conditionType string) int {
	kept := cc.conditions[:0]
	removed := 0

	for _, condition := range cc.conditions {
		if condition.Type() == conditionType {
			removed++
			continue
		}

		kept = append(kept, condition)
	}

	cc.conditions = kept

	return removed
}

// Fold chains a base amount through the subset of conditions applying at
// the given stage, left to right in ranked order. Each step's output
// becomes the next step's input. With no matching conditions the base is
// returned unchanged.
func (cc *ConditionCollection) Fold(base float64, target ConditionTarget) float64 {
	result := base
	for _, condition := range cc.conditions {
		if condition.Target() != target {
			continue
		}

		result = condition.Apply(result)
	}

	return result
}
