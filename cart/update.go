package cart

import (
	"strconv"
	"strings"
)

// QuantityChange describes how an item's quantity should change.
//
// A relative change carries a literal sign: "-n" subtracts the magnitude
// only if the result would remain positive (a decrement through zero is
// silently ignored), "+n" and a bare "n" add it. An absolute change
// replaces the quantity outright with the given integer.
type QuantityChange struct {
	relative bool
	raw      string
	absolute float64
}

// QuantityDelta builds a relative quantity change from a signed value
// string such as "-1", "+2" or "3".
func QuantityDelta(value string) QuantityChange {
	return QuantityChange{relative: true, raw: value}
}

// QuantitySet builds an absolute quantity change.
func QuantitySet(value int) QuantityChange {
	return QuantityChange{absolute: float64(value)}
}

// apply resolves the change against the current quantity.
func (qc QuantityChange) apply(current float64) float64 {
	if !qc.relative {
		return qc.absolute
	}

	raw := strings.TrimSpace(qc.raw)

	switch {
	case strings.Contains(raw, "-"):
		magnitude := integerMagnitude(strings.ReplaceAll(raw, "-", ""))
		if current-magnitude > 0 {
			return current - magnitude
		}

		return current

	case strings.Contains(raw, "+"):
		return current + integerMagnitude(strings.ReplaceAll(raw, "+", ""))

	default:
		return current + integerMagnitude(raw)
	}
}

// integerMagnitude parses a magnitude string, truncating any fraction.
// Unparseable input counts as zero.
func integerMagnitude(raw string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}

	return float64(int64(parsed))
}

// ItemUpdate carries the changes for Cart.Update. Nil fields leave the
// current value untouched; a non-nil Attributes or Conditions replaces the
// whole bag or holder.
type ItemUpdate struct {
	Name            *string
	Price           *float64
	Quantity        *QuantityChange
	Attributes      Attributes
	Conditions      *[]Condition
	AssociatedModel *string
}

// UpdatePayload is the payload of the "updating" event: the ID of the item
// about to change and the changes to be merged. The "updated" event carries
// the resulting Item instead.
type UpdatePayload struct {
	ID      string
	Changes ItemUpdate
}

// applyTo merges the update into an item, producing the new item value.
func (u ItemUpdate) applyTo(item Item) Item {
	if u.Name != nil {
		item.name = *u.Name
	}

	if u.Price != nil {
		item.price = *u.Price
	}

	if u.Quantity != nil {
		item.quantity = u.Quantity.apply(item.quantity)
	}

	if u.Attributes != nil {
		item.attributes = u.Attributes
	}

	if u.Conditions != nil {
		item.conditions = normalizeConditions(*u.Conditions)
	}

	if u.AssociatedModel != nil {
		item.associatedModel = *u.AssociatedModel
	}

	return item
}
