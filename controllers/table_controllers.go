package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/models"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

type TableController struct {
	DB *gorm.DB
}

func NewTableController(db *gorm.DB) *TableController {
	return &TableController{DB: db}
}

func (tc *TableController) GetTables(c *gin.Context) {
	var tables []models.Table
	query := tc.DB.Where("active = ?", true)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("number").Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Tables", tables)
}

func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		Number   int `json:"number" binding:"required,gt=0"`
		Capacity int `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table := models.Table{
		Number:   req.Number,
		Capacity: req.Capacity,
		Status:   models.TableAvailable,
		Active:   true,
	}
	if err := tc.DB.Create(&table).Error; err != nil {
		utils.RespondError(c, http.StatusConflict, fmt.Errorf("table %d already exists", req.Number))
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created", table)
}

func (tc *TableController) UpdateTable(c *gin.Context) {
	var table models.Table
	err := tc.DB.First(&table, c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, errors.New("table not found"))
		return
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var req struct {
		Capacity *int    `json:"capacity"`
		Status   *string `json:"status"`
		Active   *bool   `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Capacity != nil {
		updates["capacity"] = *req.Capacity
	}
	if req.Status != nil {
		switch *req.Status {
		case models.TableAvailable, models.TableOccupied, models.TableReserved:
			updates["status"] = *req.Status
		default:
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("unknown table status %q", *req.Status))
			return
		}
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if err := tc.DB.Model(&table).Updates(updates).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

// TableQR renders a QR code PNG that points customers at the table's menu
// page, where they start or join the comanda.
func (tc *TableController) TableQR(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid table id"))
		return
	}

	var table models.Table
	if err := tc.DB.First(&table, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("table not found"))
		return
	}

	base := os.Getenv("PUBLIC_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	target := fmt.Sprintf("%s/mesa/%d", base, table.Number)

	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// CallWaiter flags the table so the staff dashboard lights it up.
func (tc *TableController) CallWaiter(c *gin.Context) {
	var req struct {
		TableNumber int `json:"tableNumber" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	result := tc.DB.Model(&models.Table{}).
		Where("number = ? AND active = ?", req.TableNumber, true).
		Update("attention_requested", true)
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, fmt.Errorf("table %d not found", req.TableNumber))
		return
	}

	utils.InfoLogger.Printf("Waiter called to table %d", req.TableNumber)
	utils.RespondJSON(c, http.StatusOK, "Waiter called", nil)
}

// AttendTable clears the attention flag once a waiter shows up.
func (tc *TableController) AttendTable(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid table id"))
		return
	}

	result := tc.DB.Model(&models.Table{}).Where("id = ?", id).
		Update("attention_requested", false)
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("table not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table attended", nil)
}
