package cart

import (
	"context"
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

const (
	itemsKeySuffix      = "_cart_items"
	conditionsKeySuffix = "_cart_conditions"
)

// Storage is the session store the cart persists its collections in.
//
// Values are whole-collection JSON snapshots: a mutation reads the current
// snapshot, transforms it, and writes the new snapshot back with a single
// Put. Implementations must replace the value atomically; they never see
// partial writes. Engines for memory, Redis and Postgres live in the
// engine subpackages.
type Storage interface {
	// Get returns the snapshot stored under key, with found = false when
	// nothing is stored yet.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put replaces the snapshot stored under key.
	Put(ctx context.Context, key string, value []byte) error
}

func itemsKey(sessionKey string) string {
	return sessionKey + itemsKeySuffix
}

func conditionsKey(sessionKey string) string {
	return sessionKey + conditionsKeySuffix
}

/***** snapshot codec *****/

type storableCondition struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Target     string     `json:"target,omitempty"`
	Value      string     `json:"value"`
	Order      int        `json:"order,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// conditionHolder accepts the three wire shapes of an item's conditions
// field - absent, a single condition object, or a list - and normalizes
// them to a list at the decode boundary.
type conditionHolder []storableCondition

func (h *conditionHolder) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))

	switch {
	case trimmed == "" || trimmed == "null":
		*h = nil
		return nil

	case strings.HasPrefix(trimmed, "{"):
		var single storableCondition
		if err := jsoniter.ConfigFastest.Unmarshal(data, &single); err != nil {
			return err
		}

		*h = conditionHolder{single}
		return nil

	default:
		var many []storableCondition
		if err := jsoniter.ConfigFastest.Unmarshal(data, &many); err != nil {
			return err
		}

		*h = many
		return nil
	}
}

type storableItem struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Price           float64         `json:"price"`
	Quantity        float64         `json:"quantity"`
	Attributes      Attributes      `json:"attributes,omitempty"`
	Conditions      conditionHolder `json:"conditions,omitempty"`
	AssociatedModel string          `json:"associatedModel,omitempty"`
}

func storableFromCondition(condition Condition) storableCondition {
	return storableCondition{
		Name:       condition.Name(),
		Type:       condition.Type(),
		Target:     string(condition.Target()),
		Value:      condition.Value(),
		Order:      condition.Order(),
		Attributes: condition.Attributes(),
	}
}

func conditionFromStorable(storable storableCondition) (Condition, error) {
	return NewCondition(ConditionSpec{
		Name:       storable.Name,
		Type:       storable.Type,
		Target:     ConditionTarget(storable.Target),
		Value:      storable.Value,
		Order:      storable.Order,
		Attributes: storable.Attributes,
	})
}

func encodeItems(collection *ItemCollection) ([]byte, error) {
	storables := make([]storableItem, 0, collection.Len())

	for _, item := range collection.All() {
		conditions := make(conditionHolder, 0, len(item.conditions))
		for _, condition := range item.conditions {
			conditions = append(conditions, storableFromCondition(condition))
		}

		storables = append(storables, storableItem{
			ID:              item.ID(),
			Name:            item.Name(),
			Price:           item.Price(),
			Quantity:        item.Quantity(),
			Attributes:      item.Attributes(),
			Conditions:      conditions,
			AssociatedModel: item.AssociatedModel(),
		})
	}

	encoded, marshalErr := jsoniter.ConfigFastest.Marshal(storables)
	if marshalErr != nil {
		return nil, errors.Join(ErrSavingSnapshotFailed, marshalErr)
	}

	return encoded, nil
}

// decodeItems reconstructs an ItemCollection from a snapshot. It is a
// defensive read: a corrupted or foreign entry is excluded rather than
// raising, so one bad entry cannot take the whole cart down.
func decodeItems(data []byte, logger Logger) *ItemCollection {
	collection := NewItemCollection()

	if len(data) == 0 {
		return collection
	}

	var rawEntries []jsoniter.RawMessage
	if unmarshalErr := jsoniter.ConfigFastest.Unmarshal(data, &rawEntries); unmarshalErr != nil {
		if logger != nil {
			logger.Warn(logMsgItemSnapshotCorrupt, logAttrError, unmarshalErr.Error())
		}

		return collection
	}

	for _, rawEntry := range rawEntries {
		var storable storableItem
		if unmarshalErr := jsoniter.ConfigFastest.Unmarshal(rawEntry, &storable); unmarshalErr != nil {
			if logger != nil {
				logger.Warn(logMsgItemEntryDropped, logAttrError, unmarshalErr.Error())
			}

			continue
		}

		item, buildErr := itemFromStorable(storable)
		if buildErr != nil {
			if logger != nil {
				logger.Warn(logMsgItemEntryDropped, logAttrError, buildErr.Error(), logAttrItemID, storable.ID)
			}

			continue
		}

		collection.Put(item)
	}

	return collection
}

func itemFromStorable(storable storableItem) (Item, error) {
	spec := ItemSpec{
		ID:              storable.ID,
		Name:            storable.Name,
		Price:           storable.Price,
		Quantity:        storable.Quantity,
		Attributes:      storable.Attributes,
		AssociatedModel: storable.AssociatedModel,
	}

	for _, storableCond := range storable.Conditions {
		condition, condErr := conditionFromStorable(storableCond)
		if condErr != nil {
			return Item{}, condErr
		}

		spec.Conditions = append(spec.Conditions, condition)
	}

	if validateErr := wellFormedItem(spec); validateErr != nil {
		return Item{}, validateErr
	}

	return buildItem(spec), nil
}

func encodeConditions(collection *ConditionCollection) ([]byte, error) {
	storables := make([]storableCondition, 0, collection.Len())
	for _, condition := range collection.All() {
		storables = append(storables, storableFromCondition(condition))
	}

	encoded, marshalErr := jsoniter.ConfigFastest.Marshal(storables)
	if marshalErr != nil {
		return nil, errors.Join(ErrSavingSnapshotFailed, marshalErr)
	}

	return encoded, nil
}

// decodeConditions reconstructs a ConditionCollection from a snapshot,
// dropping entries that no longer parse, same as decodeItems.
func decodeConditions(data []byte, logger Logger) *ConditionCollection {
	collection := &ConditionCollection{}

	if len(data) == 0 {
		return collection
	}

	var storables []storableCondition
	if unmarshalErr := jsoniter.ConfigFastest.Unmarshal(data, &storables); unmarshalErr != nil {
		if logger != nil {
			logger.Warn(logMsgConditionSnapshotCorrupt, logAttrError, unmarshalErr.Error())
		}

		return collection
	}

	for _, storable := range storables {
		condition, buildErr := conditionFromStorable(storable)
		if buildErr != nil {
			if logger != nil {
				logger.Warn(logMsgConditionEntryDropped, logAttrError, buildErr.Error(), logAttrConditionName, storable.Name)
			}

			continue
		}

		collection.Add(condition)
	}

	return collection
}
