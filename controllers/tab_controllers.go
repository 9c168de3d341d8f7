package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vinin2308/foodflow-cardapio/services"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

type TabController struct {
	Service *services.TabService
}

func NewTabController(service *services.TabService) *TabController {
	return &TabController{Service: service}
}

// actorKey identifies the caller: a logged-in staff member or the device key
// customers send along.
func actorKey(c *gin.Context) string {
	if id, exists := c.Get("manager_id"); exists {
		return fmt.Sprintf("manager:%v", id)
	}
	return c.GetHeader("X-Device-Key")
}

func createdBy(c *gin.Context) *uint {
	if id, exists := c.Get("manager_id"); exists {
		if managerID, ok := id.(uint); ok {
			return &managerID
		}
	}
	return nil
}

func tabIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("tab_id"))
	if err != nil || id <= 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid tab id %q", c.Param("tab_id")))
		return 0, false
	}
	return uint(id), true
}

// StartComanda -> open (or reuse) the principal comanda of a table and hand
// back the shared access code.
func (tc *TabController) StartComanda(c *gin.Context) {
	var req struct {
		TableNumber  int    `json:"tableNumber" binding:"required"`
		CustomerName string `json:"customerName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	code, err := tc.Service.StartComanda(req.TableNumber, req.CustomerName, createdBy(c))
	if err != nil {
		respondTabError(c, err)
		return
	}

	utils.InfoLogger.Printf("Comanda started on table %d (code %s)", req.TableNumber, code)
	utils.RespondJSON(c, http.StatusCreated, "Comanda started", gin.H{"accessCode": code})
}

// GetFamily -> the principal tab plus children for an access code.
func (tc *TabController) GetFamily(c *gin.Context) {
	snap, err := tc.Service.FamilySnapshot(c.Param("code"))
	if err != nil {
		respondTabError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Comanda family", snap)
}

// JoinFamily -> associate the calling device with the family. Idempotent.
func (tc *TabController) JoinFamily(c *gin.Context) {
	var req struct {
		AccessCode string `json:"accessCode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	snap, deviceKey, err := tc.Service.JoinFamily(req.AccessCode, actorKey(c))
	if err != nil {
		respondTabError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Joined comanda", gin.H{
		"deviceKey": deviceKey,
		"family":    snap,
	})
}

// SubmitTab -> create a tab with items in one shot (kitchen/waiter path).
func (tc *TabController) SubmitTab(c *gin.Context) {
	var cmd services.SubmitTabCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	cmd.ActorKey = actorKey(c)
	cmd.CreatedByID = createdBy(c)

	snap, err := tc.Service.SubmitTab(cmd)
	if err != nil {
		respondTabError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Tab created", snap)
}

// CreateChild -> attach a child tab under the principal identified by tab_id.
func (tc *TabController) CreateChild(c *gin.Context) {
	parentID, ok := tabIDParam(c)
	if !ok {
		return
	}

	var cmd services.SubmitTabCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	cmd.ParentTabID = &parentID
	cmd.ActorKey = actorKey(c)
	cmd.CreatedByID = createdBy(c)

	snap, err := tc.Service.SubmitTab(cmd)
	if err != nil {
		respondTabError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Child tab created", snap)
}

// AddItem -> insert one line item on an open tab.
func (tc *TabController) AddItem(c *gin.Context) {
	tabID, ok := tabIDParam(c)
	if !ok {
		return
	}

	var req struct {
		MenuItemID uint   `json:"menuItemId" binding:"required"`
		Quantity   int    `json:"quantity" binding:"required"`
		Note       string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	snap, err := tc.Service.MutateItem(services.ItemCommand{
		Action:     services.ActionAddItem,
		TabID:      tabID,
		MenuItemID: req.MenuItemID,
		Quantity:   req.Quantity,
		Note:       req.Note,
		ActorKey:   actorKey(c),
	})
	if err != nil {
		respondTabError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Item added", snap)
}

// ReplaceItems -> swap the whole item set of the tab, last writer wins.
func (tc *TabController) ReplaceItems(c *gin.Context) {
	tabID, ok := tabIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Items []services.SubmitItem `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	snap, err := tc.Service.ReplaceItems(tabID, req.Items, actorKey(c))
	if err != nil {
		respondTabError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Items replaced", snap)
}

// AdjustItem -> change the quantity of one line item in place.
func (tc *TabController) AdjustItem(c *gin.Context) {
	tabID, ok := tabIDParam(c)
	if !ok {
		return
	}
	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil || itemID <= 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid item id %q", c.Param("item_id")))
		return
	}

	var req struct {
		Quantity int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	snap, err := tc.Service.MutateItem(services.ItemCommand{
		Action:   services.ActionUpdateQuantity,
		TabID:    tabID,
		ItemID:   uint(itemID),
		Quantity: req.Quantity,
		ActorKey: actorKey(c),
	})
	if err != nil {
		respondTabError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item updated", snap)
}

// RemoveItem -> delete one line item.
func (tc *TabController) RemoveItem(c *gin.Context) {
	tabID, ok := tabIDParam(c)
	if !ok {
		return
	}
	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil || itemID <= 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid item id %q", c.Param("item_id")))
		return
	}

	snap, err := tc.Service.MutateItem(services.ItemCommand{
		Action:   services.ActionRemoveItem,
		TabID:    tabID,
		ItemID:   uint(itemID),
		ActorKey: actorKey(c),
	})
	if err != nil {
		respondTabError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item removed", snap)
}

// transition builds one handler per state machine action.
func (tc *TabController) transition(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tabID, ok := tabIDParam(c)
		if !ok {
			return
		}

		var req struct {
			Method string `json:"method"`
		}
		// body is optional, only pay carries a payment method
		_ = c.ShouldBindJSON(&req)

		snap, err := tc.Service.TransitionStatus(tabID, action, req.Method)
		if err != nil {
			respondTabError(c, err)
			return
		}
		utils.RespondJSON(c, http.StatusOK, "Status updated", snap)
	}
}

func (tc *TabController) StartPreparation(c *gin.Context) { tc.transition(services.ActionStartPreparation)(c) }
func (tc *TabController) Finalize(c *gin.Context)         { tc.transition(services.ActionFinalize)(c) }
func (tc *TabController) Deliver(c *gin.Context)          { tc.transition(services.ActionDeliver)(c) }
func (tc *TabController) Pay(c *gin.Context)              { tc.transition(services.ActionPay)(c) }
func (tc *TabController) Cancel(c *gin.Context)           { tc.transition(services.ActionCancel)(c) }

// SetEstimate -> the kitchen's preparation estimate in minutes.
func (tc *TabController) SetEstimate(c *gin.Context) {
	tabID, ok := tabIDParam(c)
	if !ok {
		return
	}

	var req struct {
		EstimatedMinutes int `json:"estimatedMinutes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	snap, err := tc.Service.SetEstimate(tabID, req.EstimatedMinutes)
	if err != nil {
		respondTabError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Estimate set", snap)
}

// KitchenTabs -> kitchen view of tabs, optionally filtered by status.
func (tc *TabController) KitchenTabs(c *gin.Context) {
	snaps, err := tc.Service.KitchenTabs(c.Query("status"))
	if err != nil {
		respondTabError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Kitchen tabs", snaps)
}
