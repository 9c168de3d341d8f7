package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/accesscode"
	"github.com/vinin2308/foodflow-cardapio/models"
)

// TabStore owns every write to tabs and their line items. All mutating
// operations run inside a single transaction scoped to the affected tab
// family, so a failed call leaves storage exactly as it was.
type TabStore struct {
	db    *gorm.DB
	codes *accesscode.Generator
}

func NewTabStore(db *gorm.DB) *TabStore {
	s := &TabStore{db: db}
	s.codes = accesscode.NewGenerator(s.principalCodeExists)
	return s
}

// DB exposes the underlying handle for read-only queries by collaborators.
func (s *TabStore) DB() *gorm.DB {
	return s.db
}

func (s *TabStore) principalCodeExists(code string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Tab{}).
		Where("access_code = ? AND parent_tab_id IS NULL", code).
		Count(&count).Error
	return count > 0, err
}

// TabParams describes a tab to create. ParentTabID set means a child tab,
// which inherits the parent's access code and table.
type TabParams struct {
	TableID          uint
	CustomerName     string
	CreatedByID      *uint
	ParentTabID      *uint
	AccessCode       string // optional explicit code
	EstimatedMinutes *int
}

// ItemParams describes one line item to insert. The unit price is never
// supplied by callers, it is captured from the dish at insert time.
type ItemParams struct {
	DishID   uint
	Quantity int
	Note     string
	ActorKey string
}

// CreateTab creates a principal or child tab together with its initial items
// in one transaction.
func (s *TabStore) CreateTab(params TabParams, items []ItemParams) (*models.Tab, error) {
	var tab models.Tab

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if params.ParentTabID != nil {
			var parent models.Tab
			if err := tx.First(&parent, *params.ParentTabID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: tab %d", ErrNotFound, *params.ParentTabID)
				}
				return err
			}
			if parent.ParentTabID != nil {
				return ErrInvalidHierarchy
			}
			if params.AccessCode != "" && params.AccessCode != parent.AccessCode {
				return ErrAccessCodeConflict
			}
			tab = models.Tab{
				AccessCode:   parent.AccessCode,
				TableID:      parent.TableID,
				ParentTabID:  params.ParentTabID,
				CustomerName: params.CustomerName,
				CreatedByID:  params.CreatedByID,
				Status:       models.StatusPending,
			}
		} else {
			var table models.Table
			if err := tx.Where("id = ? AND active = ?", params.TableID, true).First(&table).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: table %d", ErrNotFound, params.TableID)
				}
				return err
			}

			code := params.AccessCode
			if code != "" {
				taken, err := s.principalCodeExists(code)
				if err != nil {
					return err
				}
				if taken {
					return ErrAccessCodeConflict
				}
			} else {
				var err error
				if code, err = s.codes.Generate(); err != nil {
					return err
				}
			}

			tab = models.Tab{
				AccessCode:       code,
				TableID:          table.ID,
				CustomerName:     params.CustomerName,
				CreatedByID:      params.CreatedByID,
				EstimatedMinutes: params.EstimatedMinutes,
				Status:           models.StatusPending,
			}

			if err := tx.Model(&table).Update("status", models.TableOccupied).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(&tab).Error; err != nil {
			return err
		}

		for _, item := range items {
			if _, err := insertItem(tx, tab.ID, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadTab(tab.ID)
}

// FindFamily returns the principal tab and its children for an access code,
// items preloaded.
func (s *TabStore) FindFamily(code string) (*models.Tab, []models.Tab, error) {
	var tabs []models.Tab
	err := s.db.Preload("Items").Preload("Items.Dish").Preload("Table").
		Where("access_code = ?", code).
		Order("created_at asc").
		Find(&tabs).Error
	if err != nil {
		return nil, nil, err
	}
	if len(tabs) == 0 {
		return nil, nil, fmt.Errorf("%w: access code %s", ErrNotFound, code)
	}

	var principal *models.Tab
	children := make([]models.Tab, 0, len(tabs))
	for i := range tabs {
		if tabs[i].IsPrincipal() {
			principal = &tabs[i]
		} else {
			children = append(children, tabs[i])
		}
	}
	if principal == nil {
		// A family without a principal cannot be produced through this store.
		return nil, nil, fmt.Errorf("%w: principal tab for code %s", ErrNotFound, code)
	}
	return principal, children, nil
}

// FindFamilyByTab resolves the tab id to its access code and returns the
// whole family.
func (s *TabStore) FindFamilyByTab(tabID uint) (*models.Tab, []models.Tab, error) {
	var tab models.Tab
	if err := s.db.First(&tab, tabID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: tab %d", ErrNotFound, tabID)
		}
		return nil, nil, err
	}
	return s.FindFamily(tab.AccessCode)
}

// AddItem inserts a single line item. Each add is an independent insert, so
// concurrent adds against the same tab never lose updates.
func (s *TabStore) AddItem(tabID uint, params ItemParams) (*models.TabItem, error) {
	var created *models.TabItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := openTab(tx, tabID); err != nil {
			return err
		}
		item, err := insertItem(tx, tabID, params)
		if err != nil {
			return err
		}
		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ReplaceItems deletes every line item of the tab and inserts the given set
// in one atomic step. Concurrent replaces are last-writer-wins over the whole
// set, never a merge.
func (s *TabStore) ReplaceItems(tabID uint, items []ItemParams) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := openTab(tx, tabID); err != nil {
			return err
		}
		if err := tx.Where("tab_id = ?", tabID).Delete(&models.TabItem{}).Error; err != nil {
			return err
		}
		for _, item := range items {
			if _, err := insertItem(tx, tabID, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// AdjustItem mutates the quantity of an existing line item in place.
func (s *TabStore) AdjustItem(itemID uint, quantity int) (*models.TabItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	var item models.TabItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: item %d", ErrNotFound, itemID)
			}
			return err
		}
		if err := openTab(tx, item.TabID); err != nil {
			return err
		}
		item.Quantity = quantity
		return tx.Model(&item).Update("quantity", quantity).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem deletes a line item.
func (s *TabStore) RemoveItem(itemID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var item models.TabItem
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: item %d", ErrNotFound, itemID)
			}
			return err
		}
		if err := openTab(tx, item.TabID); err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
}

// SetStatus persists a status change only if the transition is legal.
func (s *TabStore) SetStatus(tabID uint, next string) (*models.Tab, error) {
	var tab models.Tab
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tab, tabID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: tab %d", ErrNotFound, tabID)
			}
			return err
		}
		if !models.CanTransition(tab.Status, next) {
			return &InvalidTransitionError{From: tab.Status, To: next}
		}
		tab.Status = next
		return tx.Model(&tab).Update("status", next).Error
	})
	if err != nil {
		return nil, err
	}
	return s.loadTab(tab.ID)
}

// SetEstimatedMinutes records the kitchen's preparation estimate.
func (s *TabStore) SetEstimatedMinutes(tabID uint, minutes int) (*models.Tab, error) {
	var tab models.Tab
	if err := s.db.First(&tab, tabID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tab %d", ErrNotFound, tabID)
		}
		return nil, err
	}
	if err := s.db.Model(&tab).Update("estimated_minutes", minutes).Error; err != nil {
		return nil, err
	}
	return s.loadTab(tabID)
}

// JoinFamily records the member on the principal tab of the family. Joining
// twice is a no-op.
func (s *TabStore) JoinFamily(code, memberKey string) (*models.Tab, error) {
	principal, _, err := s.FindFamily(code)
	if err != nil {
		return nil, err
	}
	member := models.TabMember{TabID: principal.ID, MemberKey: memberKey}
	if err := s.db.Where(models.TabMember{TabID: principal.ID, MemberKey: memberKey}).
		FirstOrCreate(&member).Error; err != nil {
		return nil, err
	}
	return principal, nil
}

// ListTabs lists tabs for the kitchen view, optionally filtered by status.
func (s *TabStore) ListTabs(status string) ([]models.Tab, error) {
	q := s.db.Preload("Items").Preload("Items.Dish").Preload("Table").
		Order("created_at asc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var tabs []models.Tab
	if err := q.Find(&tabs).Error; err != nil {
		return nil, err
	}
	return tabs, nil
}

// OpenTabsOnTable counts tabs on the table that are not paid or cancelled.
func (s *TabStore) OpenTabsOnTable(tableID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Tab{}).
		Where("table_id = ? AND status NOT IN ?", tableID, []string{models.StatusPaid, models.StatusCancelled}).
		Count(&count).Error
	return count, err
}

// OpenPrincipalOnTable returns the open principal tab of a table, if any.
func (s *TabStore) OpenPrincipalOnTable(tableID uint) (*models.Tab, error) {
	var tab models.Tab
	err := s.db.
		Where("table_id = ? AND parent_tab_id IS NULL AND status NOT IN ?",
			tableID, []string{models.StatusPaid, models.StatusCancelled}).
		Order("created_at asc").
		First(&tab).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: open tab on table %d", ErrNotFound, tableID)
	}
	if err != nil {
		return nil, err
	}
	return &tab, nil
}

func (s *TabStore) loadTab(tabID uint) (*models.Tab, error) {
	var tab models.Tab
	err := s.db.Preload("Items").Preload("Items.Dish").Preload("Table").
		First(&tab, tabID).Error
	if err != nil {
		return nil, err
	}
	return &tab, nil
}

// openTab fails when the tab is missing or already terminal.
func openTab(tx *gorm.DB, tabID uint) error {
	var tab models.Tab
	if err := tx.First(&tab, tabID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: tab %d", ErrNotFound, tabID)
		}
		return err
	}
	if models.TerminalStatus(tab.Status) {
		return ErrTabClosed
	}
	return nil
}

// insertItem validates the quantity, captures the dish price and inserts the
// line item.
func insertItem(tx *gorm.DB, tabID uint, params ItemParams) (*models.TabItem, error) {
	if params.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	var dish models.Dish
	if err := tx.Where("id = ? AND active = ?", params.DishID, true).First(&dish).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: dish %d", ErrNotFound, params.DishID)
		}
		return nil, err
	}
	item := models.TabItem{
		TabID:     tabID,
		DishID:    dish.ID,
		Quantity:  params.Quantity,
		UnitPrice: dish.Price,
		Note:      params.Note,
		ActorKey:  params.ActorKey,
	}
	if err := tx.Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
