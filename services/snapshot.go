package services

import (
	"time"

	"github.com/vinin2308/foodflow-cardapio/models"
)

// ItemSnapshot is the wire form of one line item.
type ItemSnapshot struct {
	ID           uint    `json:"id"`
	MenuItemID   uint    `json:"menuItemId"`
	MenuItemName string  `json:"menuItemName"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unitPrice"`
	Note         string  `json:"note"`
}

// TabSnapshot is the wire form of one tab, shared by REST reads and the
// realtime channel.
type TabSnapshot struct {
	ID               uint           `json:"id"`
	AccessCode       string         `json:"accessCode"`
	TableNumber      int            `json:"tableNumber"`
	CustomerName     string         `json:"customerName"`
	Status           string         `json:"status"`
	IsPrincipal      bool           `json:"isPrincipal"`
	ParentID         *uint          `json:"parentId"`
	EstimatedMinutes *int           `json:"estimatedMinutes,omitempty"`
	Total            float64        `json:"total"`
	Items            []ItemSnapshot `json:"items"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// FamilySnapshot combines the principal tab with its children.
type FamilySnapshot struct {
	AccessCode string        `json:"accessCode"`
	TotalTabs  int           `json:"totalTabs"`
	Principal  TabSnapshot   `json:"principal"`
	Children   []TabSnapshot `json:"children"`
}

func snapshotTab(tab *models.Tab) TabSnapshot {
	items := make([]ItemSnapshot, 0, len(tab.Items))
	for _, item := range tab.Items {
		items = append(items, ItemSnapshot{
			ID:           item.ID,
			MenuItemID:   item.DishID,
			MenuItemName: item.Dish.Name,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Note:         item.Note,
		})
	}
	return TabSnapshot{
		ID:               tab.ID,
		AccessCode:       tab.AccessCode,
		TableNumber:      tab.Table.Number,
		CustomerName:     tab.CustomerName,
		Status:           tab.Status,
		IsPrincipal:      tab.IsPrincipal(),
		ParentID:         tab.ParentTabID,
		EstimatedMinutes: tab.EstimatedMinutes,
		Total:            tab.Total(),
		Items:            items,
		CreatedAt:        tab.CreatedAt,
	}
}

func buildFamilySnapshot(principal *models.Tab, children []models.Tab) *FamilySnapshot {
	snap := &FamilySnapshot{
		AccessCode: principal.AccessCode,
		TotalTabs:  1 + len(children),
		Principal:  snapshotTab(principal),
		Children:   make([]TabSnapshot, 0, len(children)),
	}
	for i := range children {
		snap.Children = append(snap.Children, snapshotTab(&children[i]))
	}
	return snap
}
