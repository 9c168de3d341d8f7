package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/models"
	"github.com/vinin2308/foodflow-cardapio/store"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

// Item mutation actions, shared by the REST and websocket paths.
const (
	ActionAddItem        = "add_item"
	ActionRemoveItem     = "remove_item"
	ActionUpdateQuantity = "update_quantity"
)

// Status transition actions
const (
	ActionStartPreparation = "start_preparation"
	ActionFinalize         = "finalize"
	ActionDeliver          = "deliver"
	ActionPay              = "pay"
	ActionCancel           = "cancel"
)

var transitionActions = map[string]string{
	ActionStartPreparation: models.StatusInPreparation,
	ActionFinalize:         models.StatusReady,
	ActionDeliver:          models.StatusDelivered,
	ActionPay:              models.StatusPaid,
	ActionCancel:           models.StatusCancelled,
}

// Publisher receives the family snapshot of every committed mutation, keyed
// by access code. Satisfied by *realtime.Hub.
type Publisher interface {
	Publish(code string, data interface{})
}

// TabService is the single choke point for tab mutations: it validates,
// commits through the TabStore and announces every committed change exactly
// once. Broadcast happens after the commit returns and is best-effort, it can
// never roll the commit back.
type TabService struct {
	store     *store.TabStore
	publisher Publisher
	logger    *logrus.Logger
	validate  *validator.Validate
}

func NewTabService(tabStore *store.TabStore, publisher Publisher, logger *logrus.Logger) *TabService {
	return &TabService{
		store:     tabStore,
		publisher: publisher,
		logger:    logger,
		validate:  validator.New(),
	}
}

func (s *TabService) Store() *store.TabStore {
	return s.store
}

// SubmitItem is one requested line item.
type SubmitItem struct {
	MenuItemID uint   `json:"menuItemId" validate:"required"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note"`
}

// SubmitTabCommand creates a tab (principal or child) with its items.
type SubmitTabCommand struct {
	TableNumber  int          `json:"tableNumber"`
	ParentTabID  *uint        `json:"parentTabId"`
	AccessCode   string       `json:"accessCode"`
	CustomerName string       `json:"customerName"`
	Items        []SubmitItem `json:"items"`

	ActorKey    string `json:"-"`
	CreatedByID *uint  `json:"-"`
}

// SubmitTab validates the whole command, commits it atomically and publishes
// the resulting family snapshot.
func (s *TabService) SubmitTab(cmd SubmitTabCommand) (*FamilySnapshot, error) {
	var violations []string

	if err := s.validate.Struct(cmd); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				violations = append(violations, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			return nil, err
		}
	}
	if cmd.ParentTabID == nil && cmd.TableNumber <= 0 {
		violations = append(violations, "tableNumber is required for a principal tab")
	}
	for i, item := range cmd.Items {
		if item.Quantity <= 0 {
			violations = append(violations, fmt.Sprintf("items[%d].quantity must be a positive integer", i))
		}
		if item.MenuItemID != 0 && !s.dishExistsAndActive(item.MenuItemID) {
			violations = append(violations, fmt.Sprintf("items[%d].menuItemId %d is unknown or inactive", i, item.MenuItemID))
		}
	}
	if len(violations) > 0 {
		return nil, &store.ValidationError{Violations: violations}
	}

	params := store.TabParams{
		CustomerName: cmd.CustomerName,
		CreatedByID:  cmd.CreatedByID,
		ParentTabID:  cmd.ParentTabID,
		AccessCode:   cmd.AccessCode,
	}
	if cmd.ParentTabID == nil {
		table, err := s.tableByNumber(cmd.TableNumber)
		if err != nil {
			return nil, err
		}
		params.TableID = table.ID
	}

	items := make([]store.ItemParams, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		items = append(items, store.ItemParams{
			DishID:   item.MenuItemID,
			Quantity: item.Quantity,
			Note:     item.Note,
			ActorKey: cmd.ActorKey,
		})
	}

	tab, err := s.store.CreateTab(params, items)
	if err != nil {
		return nil, err
	}
	return s.snapshotAndPublish(tab.AccessCode)
}

// StartComanda opens (or reuses) the principal comanda of a table and hands
// back its access code. A table with an open principal keeps its code, only
// a blank customer name is filled in.
func (s *TabService) StartComanda(tableNumber int, customerName string, createdBy *uint) (string, error) {
	table, err := s.tableByNumber(tableNumber)
	if err != nil {
		return "", err
	}

	existing, err := s.store.OpenPrincipalOnTable(table.ID)
	if err == nil {
		if customerName != "" && existing.CustomerName == "" {
			s.store.DB().Model(existing).Update("customer_name", customerName)
		}
		return existing.AccessCode, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	tab, err := s.store.CreateTab(store.TabParams{
		TableID:      table.ID,
		CustomerName: customerName,
		CreatedByID:  createdBy,
	}, nil)
	if err != nil {
		return "", err
	}
	s.publishFamily(tab.AccessCode)
	return tab.AccessCode, nil
}

// ItemCommand mutates a single line item of an existing tab.
type ItemCommand struct {
	Action     string
	TabID      uint
	ItemID     uint
	MenuItemID uint
	Quantity   int
	Note       string
	ActorKey   string
}

// MutateItem applies one fine-grained item mutation to a non-terminal tab
// and publishes the refreshed family snapshot.
func (s *TabService) MutateItem(cmd ItemCommand) (*FamilySnapshot, error) {
	principal, _, err := s.store.FindFamilyByTab(cmd.TabID)
	if err != nil {
		return nil, err
	}

	switch cmd.Action {
	case ActionAddItem:
		_, err = s.store.AddItem(cmd.TabID, store.ItemParams{
			DishID:   cmd.MenuItemID,
			Quantity: cmd.Quantity,
			Note:     cmd.Note,
			ActorKey: cmd.ActorKey,
		})
	case ActionRemoveItem:
		if err = s.itemBelongsToTab(cmd.ItemID, cmd.TabID); err == nil {
			err = s.store.RemoveItem(cmd.ItemID)
		}
	case ActionUpdateQuantity:
		if err = s.itemBelongsToTab(cmd.ItemID, cmd.TabID); err == nil {
			_, err = s.store.AdjustItem(cmd.ItemID, cmd.Quantity)
		}
	default:
		return nil, &store.ValidationError{Violations: []string{fmt.Sprintf("unknown action %q", cmd.Action)}}
	}
	if err != nil {
		return nil, err
	}
	return s.snapshotAndPublish(principal.AccessCode)
}

// ReplaceItems swaps the whole item set of a tab, last writer wins.
func (s *TabService) ReplaceItems(tabID uint, requested []SubmitItem, actorKey string) (*FamilySnapshot, error) {
	principal, _, err := s.store.FindFamilyByTab(tabID)
	if err != nil {
		return nil, err
	}

	items := make([]store.ItemParams, 0, len(requested))
	for _, item := range requested {
		items = append(items, store.ItemParams{
			DishID:   item.MenuItemID,
			Quantity: item.Quantity,
			Note:     item.Note,
			ActorKey: actorKey,
		})
	}
	if err := s.store.ReplaceItems(tabID, items); err != nil {
		return nil, err
	}
	return s.snapshotAndPublish(principal.AccessCode)
}

// TransitionStatus drives the order state machine. On pay it also releases
// the table and appends to the payment ledger; neither may fail the
// transition that already committed.
func (s *TabService) TransitionStatus(tabID uint, action, paymentMethod string) (*FamilySnapshot, error) {
	target, ok := transitionActions[action]
	if !ok {
		return nil, &store.ValidationError{Violations: []string{fmt.Sprintf("unknown action %q", action)}}
	}

	tab, err := s.store.SetStatus(tabID, target)
	if err != nil {
		return nil, err
	}

	if models.TerminalStatus(target) {
		s.releaseTableIfIdle(tab.TableID)
	}
	if target == models.StatusPaid {
		go s.recordPayment(tab, paymentMethod)
	}
	return s.snapshotAndPublish(tab.AccessCode)
}

// SetEstimate stores the kitchen's preparation estimate and publishes it.
func (s *TabService) SetEstimate(tabID uint, minutes int) (*FamilySnapshot, error) {
	if minutes <= 0 {
		return nil, &store.ValidationError{Violations: []string{"estimatedMinutes must be a positive integer"}}
	}
	tab, err := s.store.SetEstimatedMinutes(tabID, minutes)
	if err != nil {
		return nil, err
	}
	return s.snapshotAndPublish(tab.AccessCode)
}

// JoinFamily records the actor on the family and returns the current
// snapshot without mutating tab state. Joining twice is a no-op. A blank
// actor gets a fresh device key, echoed back so the client can reuse it.
func (s *TabService) JoinFamily(code, actorKey string) (*FamilySnapshot, string, error) {
	if actorKey == "" {
		actorKey = uuid.NewString()
	}
	if _, err := s.store.JoinFamily(code, actorKey); err != nil {
		return nil, "", err
	}
	snap, err := s.familySnapshot(code)
	if err != nil {
		return nil, "", err
	}
	return snap, actorKey, nil
}

// FamilySnapshot returns the current view of a family, REST read path.
func (s *TabService) FamilySnapshot(code string) (*FamilySnapshot, error) {
	return s.familySnapshot(code)
}

// KitchenTabs lists tabs for the kitchen view, optionally filtered by status.
func (s *TabService) KitchenTabs(status string) ([]TabSnapshot, error) {
	tabs, err := s.store.ListTabs(status)
	if err != nil {
		return nil, err
	}
	snaps := make([]TabSnapshot, 0, len(tabs))
	for i := range tabs {
		snaps = append(snaps, snapshotTab(&tabs[i]))
	}
	return snaps, nil
}

func (s *TabService) familySnapshot(code string) (*FamilySnapshot, error) {
	principal, children, err := s.store.FindFamily(code)
	if err != nil {
		return nil, err
	}
	return buildFamilySnapshot(principal, children), nil
}

func (s *TabService) snapshotAndPublish(code string) (*FamilySnapshot, error) {
	snap, err := s.familySnapshot(code)
	if err != nil {
		// the mutation is committed; surface the read failure but nothing to
		// undo here
		return nil, err
	}
	s.publisher.Publish(code, snap)
	return snap, nil
}

func (s *TabService) publishFamily(code string) {
	if snap, err := s.familySnapshot(code); err == nil {
		s.publisher.Publish(code, snap)
	}
}

func (s *TabService) tableByNumber(number int) (*models.Table, error) {
	var table models.Table
	err := s.store.DB().Where("number = ? AND active = ?", number, true).First(&table).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: table %d", store.ErrNotFound, number)
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (s *TabService) dishExistsAndActive(dishID uint) bool {
	var count int64
	s.store.DB().Model(&models.Dish{}).
		Where("id = ? AND active = ?", dishID, true).
		Count(&count)
	return count > 0
}

func (s *TabService) itemBelongsToTab(itemID, tabID uint) error {
	var item models.TabItem
	err := s.store.DB().First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: item %d", store.ErrNotFound, itemID)
	}
	if err != nil {
		return err
	}
	if item.TabID != tabID {
		return fmt.Errorf("%w: item %d on tab %d", store.ErrNotFound, itemID, tabID)
	}
	return nil
}

// releaseTableIfIdle frees the table once no open tab remains on it.
func (s *TabService) releaseTableIfIdle(tableID uint) {
	open, err := s.store.OpenTabsOnTable(tableID)
	if err != nil {
		s.logger.Errorf("counting open tabs on table %d: %v", tableID, err)
		return
	}
	if open > 0 {
		return
	}
	err = s.store.DB().Model(&models.Table{}).Where("id = ?", tableID).
		Updates(map[string]interface{}{
			"status":              models.TableAvailable,
			"attention_requested": false,
		}).Error
	if err != nil {
		s.logger.Errorf("releasing table %d: %v", tableID, err)
	}
}

// recordPayment appends to the ledger, fire-and-forget: a ledger failure is
// logged and never surfaced to the caller whose commit already succeeded.
func (s *TabService) recordPayment(tab *models.Tab, method string) {
	if method == "" {
		method = models.PaymentCash
	}
	payment := models.Payment{
		TabID:  tab.ID,
		Amount: tab.Total(),
		Method: method,
		PaidAt: time.Now(),
	}
	if err := s.store.DB().Create(&payment).Error; err != nil {
		s.logger.Errorf("recording payment for tab %d: %v", tab.ID, err)
		return
	}
	s.logger.Infof("Payment recorded for tab #%d: %s (%s)", tab.ID, utils.FormatBRL(payment.Amount), method)
}
