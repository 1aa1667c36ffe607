package cart

// ItemCollection is an insertion-ordered mapping from item ID to Item.
// Replacing an item keeps its position; removing and re-inserting moves it
// to the end.
type ItemCollection struct {
	ids   []string
	items map[string]Item
}

// NewItemCollection creates an empty item collection.
func NewItemCollection() *ItemCollection {
	return &ItemCollection{
		items: make(map[string]Item),
	}
}

// Get returns the item with the given ID.
func (ic *ItemCollection) Get(id string) (Item, bool) {
	item, found := ic.items[id]
	return item, found
}

// Has reports whether an item with the given ID is present.
func (ic *ItemCollection) Has(id string) bool {
	_, found := ic.items[id]
	return found
}

// Put inserts or replaces the item under its ID.
func (ic *ItemCollection) Put(item Item) {
	if _, found := ic.items[item.ID()]; !found {
		ic.ids = append(ic.ids, item.ID())
	}

	ic.items[item.ID()] = item
}

// Pull atomically gets and removes the item with the given ID.
func (ic *ItemCollection) Pull(id string) (Item, bool) {
	item, found := ic.items[id]
	if !found {
		return Item{}, false
	}

	ic.Remove(id)

	return item, true
}

// Remove removes the item with the given ID and reports whether one was
// removed.
func (ic *ItemCollection) Remove(id string) bool {
	if _, found := ic.items[id]; !found {
		return false
	}

	delete(ic.items, id)

	for i, existing := range ic.ids {
		if existing == id {
			ic.ids = append(ic.ids[:i], ic.ids[i+1:]...)
			break
		}
	}

	return true
}

// Len returns the number of items in the collection.
func (ic *ItemCollection) Len() int {
	return len(ic.items)
}

// IsEmpty reports whether the collection holds no items.
func (ic *ItemCollection) IsEmpty() bool {
	return len(ic.items) == 0
}

// All returns the items in insertion order.
func (ic *ItemCollection) All() []Item {
	all := make([]Item, 0, len(ic.ids))
	for _, id := range ic.ids {
		all = append(all, ic.items[id])
	}

	return all
}

// IDs returns the item IDs in insertion order.
func (ic *ItemCollection) IDs() []string {
	ids := make([]string, len(ic.ids))
	copy(ids, ic.ids)

	return ids
}

// SumBy totals a numeric projection across all items.
func (ic *ItemCollection) SumBy(projection func(Item) float64) float64 {
	sum := 0.0
	for _, id := range ic.ids {
		sum += projection(ic.items[id])
	}

	return sum
}
