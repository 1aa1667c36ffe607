package cart

// ItemSpec is the scalar input for adding an item to a Cart.
//
// It is validated before the item enters the item collection: ID and Name
// are required, Price must be a non-negative number and Quantity at
// least 0.1. Conditions without a target apply at item level.
type ItemSpec struct {
	ID              string
	Name            string
	Price           float64
	Quantity        float64
	Attributes      Attributes
	Conditions      []Condition
	AssociatedModel string
}

// Item is a line entry in a cart: identity, name, unit price, quantity, an
// attribute bag, zero or more attached conditions, and an optional
// reference to an external model. Price and quantity are always numeric at
// rest; validation happens before an Item enters an ItemCollection.
type Item struct {
	id              string
	name            string
	price           float64
	quantity        float64
	attributes      Attributes
	conditions      []Condition
	associatedModel string
}

func buildItem(spec ItemSpec) Item {
	return Item{
		id:              spec.ID,
		name:            spec.Name,
		price:           spec.Price,
		quantity:        spec.Quantity,
		attributes:      spec.Attributes,
		conditions:      normalizeConditions(spec.Conditions),
		associatedModel: spec.AssociatedModel,
	}
}

// ID returns the item's identity, its key within an ItemCollection.
func (it Item) ID() string {
	return it.id
}

// Name returns the item's display name.
func (it Item) Name() string {
	return it.name
}

// Price returns the item's unit price.
func (it Item) Price() float64 {
	return it.price
}

// Quantity returns the item's quantity.
func (it Item) Quantity() float64 {
	return it.quantity
}

// Attributes returns the item's attribute bag.
func (it Item) Attributes() Attributes {
	return it.attributes
}

// Conditions returns the item's attached conditions in attach order.
func (it Item) Conditions() []Condition {
	conditions := make([]Condition, len(it.conditions))
	copy(conditions, it.conditions)

	return conditions
}

// AssociatedModel returns the name of the external model associated with
// this item, or "" when none is.
func (it Item) AssociatedModel() string {
	return it.associatedModel
}

// HasConditions reports whether any conditions are attached to the item.
func (it Item) HasConditions() bool {
	return len(it.conditions) > 0
}

// PriceSum returns price times quantity, without any conditions applied.
func (it Item) PriceSum() float64 {
	return it.price * it.quantity
}

// PriceSumWithConditions folds PriceSum through the item's own conditions
// at item stage, with the same sequential-chain and floor rules as a
// cart-stage fold. Conditions attached to the item but targeting a cart
// stage are not applied here.
func (it Item) PriceSumWithConditions() float64 {
	if !it.HasConditions() {
		return it.PriceSum()
	}

	return NewConditionCollection(it.conditions...).Fold(it.PriceSum(), TargetItem)
}

// normalizeConditions drops zero conditions and copies the rest, so an
// item's holder is always a well-formed list regardless of input shape.
func normalizeConditions(conditions []Condition) []Condition {
	if len(conditions) == 0 {
		return nil
	}

	normalized := make([]Condition, 0, len(conditions))
	for _, condition := range conditions {
		if condition.isZero() {
			continue
		}

		normalized = append(normalized, condition)
	}

	return normalized
}
