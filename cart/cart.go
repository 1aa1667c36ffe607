package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	defaultInstanceName = "cart"

	logMsgItemAdded                = "item added"
	logMsgItemUpdated              = "item updated"
	logMsgItemRemoved              = "item removed"
	logMsgCartCleared              = "cart cleared"
	logMsgConditionAdded           = "cart condition added"
	logMsgConditionRemoved         = "cart condition removed"
	logMsgMutationVetoed           = "mutation vetoed by dispatcher"
	logMsgItemSnapshotCorrupt      = "item snapshot is corrupt, starting from an empty collection"
	logMsgItemEntryDropped         = "dropped malformed item snapshot entry"
	logMsgConditionSnapshotCorrupt = "condition snapshot is corrupt, starting from an empty collection"
	logMsgConditionEntryDropped    = "dropped malformed condition snapshot entry"

	logAttrError         = "error"
	logAttrItemID        = "item_id"
	logAttrConditionName = "condition_name"
	logAttrConditionType = "condition_type"
	logAttrDurationMS    = "duration_ms"
	logAttrEvent         = "event"

	metricMutationDuration = "cart_mutation_duration"
	metricMutationVetoed   = "cart_mutation_vetoed_total"
	labelOperation         = "operation"

	opAdd       = "add"
	opUpdate    = "update"
	opRemove    = "remove"
	opClear     = "clear"
	opCondition = "condition"
)

// Cart orchestrates the item and condition collections. It holds no
// authoritative state beyond naming and session-key configuration: both
// collections are reloaded from Storage on every call and written back
// wholesale after each mutation. That makes every operation a synchronous
// read-modify-write with last-writer-wins semantics for a single logical
// actor; there is no locking or versioning across writers.
type Cart struct {
	storage          Storage
	dispatcher       Dispatcher
	instanceName     string
	sessionKey       string
	itemsKey         string
	conditionsKey    string
	validator        ItemValidator
	formatter        Formatter
	knownModels      map[string]struct{}
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
}

// New creates a Cart over the given storage and dispatcher with optional
// configuration, and fires the "{instanceName}.created" event.
//
// An empty sessionKey fails with ErrMissingSessionKey; an empty
// instanceName defaults to "cart".
func New(storage Storage, dispatcher Dispatcher, instanceName, sessionKey string, options ...Option) (*Cart, error) {
	if storage == nil {
		return nil, ErrNilStorage
	}

	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}

	if sessionKey == "" {
		return nil, ErrMissingSessionKey
	}

	if instanceName == "" {
		instanceName = defaultInstanceName
	}

	c := &Cart{
		storage:       storage,
		dispatcher:    dispatcher,
		instanceName:  instanceName,
		sessionKey:    sessionKey,
		itemsKey:      itemsKey(sessionKey),
		conditionsKey: conditionsKey(sessionKey),
		validator:     NewItemRulesValidator(),
		formatter:     NewFormatter(DefaultFormat()),
		knownModels:   make(map[string]struct{}),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	c.fireEvent(context.Background(), EventCreated, nil)

	return c, nil
}

// Session switches the cart to another session key, re-deriving the
// storage keys. An empty key fails with ErrMissingSessionKey.
func (c *Cart) Session(sessionKey string) error {
	if sessionKey == "" {
		return ErrMissingSessionKey
	}

	c.sessionKey = sessionKey
	c.itemsKey = itemsKey(sessionKey)
	c.conditionsKey = conditionsKey(sessionKey)

	return nil
}

// InstanceName returns the cart's instance name, the event name prefix.
func (c *Cart) InstanceName() string {
	return c.instanceName
}

/***** items *****/

// Get returns the item with the given ID.
func (c *Cart) Get(ctx context.Context, id string) (Item, bool, error) {
	content, err := c.content(ctx)
	if err != nil {
		return Item{}, false, err
	}

	item, found := content.Get(id)

	return item, found, nil
}

// Has reports whether an item with the given ID is in the cart.
func (c *Cart) Has(ctx context.Context, id string) (bool, error) {
	content, err := c.content(ctx)
	if err != nil {
		return false, err
	}

	return content.Has(id), nil
}

// IsEmpty reports whether the cart holds no items.
func (c *Cart) IsEmpty(ctx context.Context) (bool, error) {
	content, err := c.content(ctx)
	if err != nil {
		return false, err
	}

	return content.IsEmpty(), nil
}

// Content returns the cart's items in insertion order.
func (c *Cart) Content(ctx context.Context) ([]Item, error) {
	content, err := c.content(ctx)
	if err != nil {
		return nil, err
	}

	return content.All(), nil
}

// Add validates the spec and puts the item into the cart.
//
// When an item with the same ID already exists the call is an update with
// merge semantics: the quantity is treated as a relative increment and the
// remaining fields replace the current ones. A fresh insert fires the
// vetoable "adding" event and "added" after the write.
//
// The returned ID identifies the inserted or updated item for a subsequent
// Associate call; it is empty when the mutation was vetoed.
func (c *Cart) Add(ctx context.Context, spec ItemSpec) (string, error) {
	start := time.Now()

	if validateErr := c.validator.Validate(spec); validateErr != nil {
		return "", errors.Join(ErrInvalidItem, validateErr)
	}

	content, loadErr := c.content(ctx)
	if loadErr != nil {
		return "", loadErr
	}

	if content.Has(spec.ID) {
		applied, updateErr := c.Update(ctx, spec.ID, mergeUpdateFromSpec(spec))
		if updateErr != nil {
			return "", updateErr
		}

		if !applied {
			return "", nil
		}

		return spec.ID, nil
	}

	inserted, insertErr := c.addRow(ctx, content, spec)
	if insertErr != nil {
		return "", insertErr
	}

	if !inserted {
		return "", nil
	}

	c.recordMutation(opAdd, start)
	c.logDebug(ctx, logMsgItemAdded, logAttrItemID, spec.ID)

	return spec.ID, nil
}

// AddBatch adds multiple item specs element-wise with the same validation
// and merge rules as Add, returning the IDs in input order. Vetoed inserts
// contribute an empty ID. The first error stops the batch.
func (c *Cart) AddBatch(ctx context.Context, specs ...ItemSpec) ([]string, error) {
	ids := make([]string, 0, len(specs))

	for _, spec := range specs {
		id, err := c.Add(ctx, spec)
		if err != nil {
			return ids, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// mergeUpdateFromSpec maps a re-added spec onto update semantics: the
// quantity becomes a plain relative increment, everything else replaces.
func mergeUpdateFromSpec(spec ItemSpec) ItemUpdate {
	quantity := QuantityDelta(strconv.FormatFloat(spec.Quantity, 'f', -1, 64))

	attributes := spec.Attributes
	if attributes == nil {
		attributes = Attributes{}
	}

	changes := ItemUpdate{
		Name:       &spec.Name,
		Price:      &spec.Price,
		Quantity:   &quantity,
		Attributes: attributes,
		Conditions: &spec.Conditions,
	}

	if spec.AssociatedModel != "" {
		changes.AssociatedModel = &spec.AssociatedModel
	}

	return changes
}

func (c *Cart) addRow(ctx context.Context, content *ItemCollection, spec ItemSpec) (bool, error) {
	if c.fireEvent(ctx, EventAdding, spec) == Cancel {
		c.recordVeto(opAdd)
		c.logDebug(ctx, logMsgMutationVetoed, logAttrEvent, EventAdding, logAttrItemID, spec.ID)

		return false, nil
	}

	content.Put(buildItem(spec))

	if saveErr := c.saveItems(ctx, content); saveErr != nil {
		return false, saveErr
	}

	c.fireEvent(ctx, EventAdded, spec)

	return true, nil
}

// Update merges the given changes into an existing item and persists it,
// firing the vetoable "updating" event first and "updated" after the
// write. It returns false without mutation when the event is vetoed or the
// item does not exist; a missing item fires no events at all.
func (c *Cart) Update(ctx context.Context, id string, changes ItemUpdate) (bool, error) {
	start := time.Now()

	content, loadErr := c.content(ctx)
	if loadErr != nil {
		return false, loadErr
	}

	item, found := content.Pull(id)
	if !found {
		return false, nil
	}

	if c.fireEvent(ctx, EventUpdating, UpdatePayload{ID: id, Changes: changes}) == Cancel {
		c.recordVeto(opUpdate)
		c.logDebug(ctx, logMsgMutationVetoed, logAttrEvent, EventUpdating, logAttrItemID, id)

		return false, nil
	}

	item = changes.applyTo(item)
	content.Put(item)

	if saveErr := c.saveItems(ctx, content); saveErr != nil {
		return false, saveErr
	}

	c.fireEvent(ctx, EventUpdated, item)
	c.recordMutation(opUpdate, start)
	c.logDebug(ctx, logMsgItemUpdated, logAttrItemID, id)

	return true, nil
}

// Remove removes the item with the given ID, firing the vetoable
// "removing" event first and "removed" after the write.
func (c *Cart) Remove(ctx context.Context, id string) (bool, error) {
	start := time.Now()

	if c.fireEvent(ctx, EventRemoving, id) == Cancel {
		c.recordVeto(opRemove)
		c.logDebug(ctx, logMsgMutationVetoed, logAttrEvent, EventRemoving, logAttrItemID, id)

		return false, nil
	}

	content, loadErr := c.content(ctx)
	if loadErr != nil {
		return false, loadErr
	}

	content.Remove(id)

	if saveErr := c.saveItems(ctx, content); saveErr != nil {
		return false, saveErr
	}

	c.fireEvent(ctx, EventRemoved, id)
	c.recordMutation(opRemove, start)
	c.logDebug(ctx, logMsgItemRemoved, logAttrItemID, id)

	return true, nil
}

// Clear replaces the stored item collection with an empty one, firing the
// vetoable "clearing" event first and "cleared" after the write. Cart
// conditions are left in place.
func (c *Cart) Clear(ctx context.Context) (bool, error) {
	start := time.Now()

	if c.fireEvent(ctx, EventClearing, nil) == Cancel {
		c.recordVeto(opClear)
		c.logDebug(ctx, logMsgMutationVetoed, logAttrEvent, EventClearing)

		return false, nil
	}

	if saveErr := c.saveItems(ctx, NewItemCollection()); saveErr != nil {
		return false, saveErr
	}

	c.fireEvent(ctx, EventCleared, nil)
	c.recordMutation(opClear, start)
	c.logDebug(ctx, logMsgCartCleared)

	return true, nil
}

/***** cart-scoped conditions *****/

// AddCondition inserts one or more conditions into the cart-scoped
// collection. Unranked conditions are appended after the current maximum
// rank in input order, the collection is re-sorted and persisted. A zero
// Condition (not built through NewCondition) fails with
// ErrInvalidCondition and nothing is persisted.
func (c *Cart) AddCondition(ctx context.Context, conditions ...Condition) error {
	start := time.Now()

	for _, condition := range conditions {
		if condition.isZero() {
			return errors.Join(ErrInvalidCondition, errors.New("condition must be built with NewCondition"))
		}
	}

	collection, loadErr := c.conditions(ctx)
	if loadErr != nil {
		return loadErr
	}

	for _, condition := range conditions {
		collection.Add(condition)
		c.logDebug(ctx, logMsgConditionAdded, logAttrConditionName, condition.Name())
	}

	if saveErr := c.saveConditions(ctx, collection); saveErr != nil {
		return saveErr
	}

	c.recordMutation(opCondition, start)

	return nil
}

// Conditions returns the cart-scoped conditions in ranked order. Item-level
// conditions live on their items and are not included.
func (c *Cart) Conditions(ctx context.Context) (*ConditionCollection, error) {
	return c.conditions(ctx)
}

// Condition returns the cart-scoped condition with the given name.
func (c *Cart) Condition(ctx context.Context, name string) (Condition, bool, error) {
	collection, err := c.conditions(ctx)
	if err != nil {
		return Condition{}, false, err
	}

	condition, found := collection.Get(name)

	return condition, found, nil
}

// ConditionsByType returns the cart-scoped conditions with the given type
// tag. Conditions attached to items are never included.
func (c *Cart) ConditionsByType(ctx context.Context, conditionType string) (*ConditionCollection, error) {
	collection, err := c.conditions(ctx)
	if err != nil {
		return nil, err
	}

	return collection.ByType(conditionType), nil
}

// RemoveCartCondition removes the cart-scoped condition with the given
// name. Item-level conditions with the same name are untouched.
func (c *Cart) RemoveCartCondition(ctx context.Context, name string) (bool, error) {
	collection, loadErr := c.conditions(ctx)
	if loadErr != nil {
		return false, loadErr
	}

	if !collection.RemoveByName(name) {
		return false, nil
	}

	if saveErr := c.saveConditions(ctx, collection); saveErr != nil {
		return false, saveErr
	}

	c.logDebug(ctx, logMsgConditionRemoved, logAttrConditionName, name)

	return true, nil
}

// RemoveConditionsByType removes all cart-scoped conditions with the given
// type tag and returns how many were removed. Item-level conditions are
// never touched.
func (c *Cart) RemoveConditionsByType(ctx context.Context, conditionType string) (int, error) {
	collection, loadErr := c.conditions(ctx)
	if loadErr != nil {
		return 0, loadErr
	}

	removed := collection.RemoveByType(conditionType)
	if removed == 0 {
		return 0, nil
	}

	if saveErr := c.saveConditions(ctx, collection); saveErr != nil {
		return 0, saveErr
	}

	c.logDebug(ctx, logMsgConditionRemoved, logAttrConditionType, conditionType)

	return removed, nil
}

// ClearCartConditions removes all cart-scoped conditions. Conditions added
// to specific items stay attached to them.
func (c *Cart) ClearCartConditions(ctx context.Context) error {
	return c.saveConditions(ctx, &ConditionCollection{})
}

/***** item-scoped conditions *****/

// AddItemCondition appends a condition to an existing item's holder and
// persists via Update. It is a no-op returning false when the item does
// not exist or the condition is the zero value.
func (c *Cart) AddItemCondition(ctx context.Context, id string, condition Condition) (bool, error) {
	if condition.isZero() {
		return false, nil
	}

	content, loadErr := c.content(ctx)
	if loadErr != nil {
		return false, loadErr
	}

	item, found := content.Get(id)
	if !found {
		return false, nil
	}

	conditions := append(item.Conditions(), condition)

	return c.Update(ctx, id, ItemUpdate{Conditions: &conditions})
}

// RemoveItemCondition strips the named condition from an item's holder and
// persists via Update. It returns false when the item does not exist.
func (c *Cart) RemoveItemCondition(ctx context.Context, id string, conditionName string) (bool, error) {
	content, loadErr := c.content(ctx)
	if loadErr != nil {
		return false, loadErr
	}

	item, found := content.Get(id)
	if !found {
		return false, nil
	}

	kept := make([]Condition, 0, len(item.conditions))
	for _, condition := range item.Conditions() {
		if condition.Name() == conditionName {
			continue
		}

		kept = append(kept, condition)
	}

	return c.Update(ctx, id, ItemUpdate{Conditions: &kept})
}

// ClearItemConditions strips all conditions from an item's holder and
// persists via Update. It returns false when the item does not exist.
func (c *Cart) ClearItemConditions(ctx context.Context, id string) (bool, error) {
	content, loadErr := c.content(ctx)
	if loadErr != nil {
		return false, loadErr
	}

	if !content.Has(id) {
		return false, nil
	}

	empty := make([]Condition, 0)

	return c.Update(ctx, id, ItemUpdate{Conditions: &empty})
}

/***** aggregation pipeline *****/

// SubTotalWithoutConditions sums price times quantity across all items,
// with no conditions applied at any stage.
func (c *Cart) SubTotalWithoutConditions(ctx context.Context) (float64, error) {
	content, err := c.content(ctx)
	if err != nil {
		return 0, err
	}

	return content.SumBy(Item.PriceSum), nil
}

// SubTotal sums the items' condition-adjusted price sums and folds the
// result through the subtotal-scoped cart conditions. With none of those
// present the item sum is returned unchanged.
func (c *Cart) SubTotal(ctx context.Context) (float64, error) {
	content, err := c.content(ctx)
	if err != nil {
		return 0, err
	}

	sum := content.SumBy(Item.PriceSumWithConditions)

	collection, condErr := c.conditions(ctx)
	if condErr != nil {
		return 0, condErr
	}

	return collection.Fold(sum, TargetSubtotal), nil
}

// Total folds the subtotal through the total-scoped cart conditions. With
// none of those present the subtotal is returned unchanged.
func (c *Cart) Total(ctx context.Context) (float64, error) {
	subTotal, err := c.SubTotal(ctx)
	if err != nil {
		return 0, err
	}

	collection, condErr := c.conditions(ctx)
	if condErr != nil {
		return 0, condErr
	}

	return collection.Fold(subTotal, TargetTotal), nil
}

// TotalQuantity sums the quantity across all items; an empty cart yields 0
// without touching the condition pipeline.
func (c *Cart) TotalQuantity(ctx context.Context) (float64, error) {
	content, err := c.content(ctx)
	if err != nil {
		return 0, err
	}

	if content.IsEmpty() {
		return 0, nil
	}

	return content.SumBy(Item.Quantity), nil
}

// FormattedSubTotal renders SubTotal with the configured Format.
func (c *Cart) FormattedSubTotal(ctx context.Context) (string, error) {
	subTotal, err := c.SubTotal(ctx)
	if err != nil {
		return "", err
	}

	return c.formatter.Format(subTotal), nil
}

// FormattedTotal renders Total with the configured Format.
func (c *Cart) FormattedTotal(ctx context.Context) (string, error) {
	total, err := c.Total(ctx)
	if err != nil {
		return "", err
	}

	return c.formatter.Format(total), nil
}

/***** association *****/

// Associate attaches a registered model name to the item with the given
// ID, which Add returned earlier. An unregistered model name fails with
// ErrUnknownModel; a missing item returns false.
func (c *Cart) Associate(ctx context.Context, id string, modelName string) (bool, error) {
	if _, known := c.knownModels[modelName]; !known {
		return false, errors.Join(ErrUnknownModel, fmt.Errorf("the supplied model %q does not exist", modelName))
	}

	return c.Update(ctx, id, ItemUpdate{AssociatedModel: &modelName})
}

/***** persistence and plumbing *****/

func (c *Cart) content(ctx context.Context) (*ItemCollection, error) {
	data, _, getErr := c.storage.Get(ctx, c.itemsKey)
	if getErr != nil {
		return nil, errors.Join(ErrLoadingSnapshotFailed, getErr)
	}

	return decodeItems(data, c.logger), nil
}

func (c *Cart) conditions(ctx context.Context) (*ConditionCollection, error) {
	data, _, getErr := c.storage.Get(ctx, c.conditionsKey)
	if getErr != nil {
		return nil, errors.Join(ErrLoadingSnapshotFailed, getErr)
	}

	return decodeConditions(data, c.logger), nil
}

func (c *Cart) saveItems(ctx context.Context, collection *ItemCollection) error {
	encoded, encodeErr := encodeItems(collection)
	if encodeErr != nil {
		return encodeErr
	}

	if putErr := c.storage.Put(ctx, c.itemsKey, encoded); putErr != nil {
		return errors.Join(ErrSavingSnapshotFailed, putErr)
	}

	return nil
}

func (c *Cart) saveConditions(ctx context.Context, collection *ConditionCollection) error {
	encoded, encodeErr := encodeConditions(collection)
	if encodeErr != nil {
		return encodeErr
	}

	if putErr := c.storage.Put(ctx, c.conditionsKey, encoded); putErr != nil {
		return errors.Join(ErrSavingSnapshotFailed, putErr)
	}

	return nil
}

func (c *Cart) fireEvent(ctx context.Context, phase string, payload any) DispatchResult {
	return c.dispatcher.Dispatch(ctx, buildEvent(c.instanceName, phase, payload))
}

func (c *Cart) logDebug(ctx context.Context, msg string, args ...any) {
	if c.contextualLogger != nil {
		c.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Cart) recordMutation(operation string, start time.Time) {
	if c.metricsCollector == nil {
		return
	}

	c.metricsCollector.RecordDuration(
		metricMutationDuration,
		time.Since(start),
		map[string]string{labelOperation: operation},
	)
}

func (c *Cart) recordVeto(operation string) {
	if c.metricsCollector == nil {
		return
	}

	c.metricsCollector.IncrementCounter(
		metricMutationVetoed,
		map[string]string{labelOperation: operation},
	)
}
