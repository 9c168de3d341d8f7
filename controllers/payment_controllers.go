package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/models"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

type PaymentController struct {
	DB *gorm.DB
}

func NewPaymentController(db *gorm.DB) *PaymentController {
	return &PaymentController{DB: db}
}

// GetPayments lists ledger rows, newest first. Narrow with ?from= and ?to=
// (YYYY-MM-DD) or ?method=.
func (pc *PaymentController) GetPayments(c *gin.Context) {
	query := pc.DB.Model(&models.Payment{})

	if from := c.Query("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		query = query.Where("paid_at >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		query = query.Where("paid_at < ?", t.AddDate(0, 0, 1))
	}
	if method := c.Query("method"); method != "" {
		query = query.Where("method = ?", method)
	}

	var payments []models.Payment
	if err := query.Order("paid_at DESC").Find(&payments).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payments", payments)
}

// DailySummary totals the ledger for one day, grouped by method.
func (pc *PaymentController) DailySummary(c *gin.Context) {
	day := c.Query("date")
	if day == "" {
		day = time.Now().Format("2006-01-02")
	}
	start, err := time.Parse("2006-01-02", day)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	end := start.AddDate(0, 0, 1)

	type row struct {
		Method string  `json:"method"`
		Count  int64   `json:"count"`
		Total  float64 `json:"total"`
	}
	var rows []row
	err = pc.DB.Model(&models.Payment{}).
		Select("method, COUNT(*) as count, SUM(amount) as total").
		Where("paid_at >= ? AND paid_at < ?", start, end).
		Group("method").
		Scan(&rows).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var grandTotal float64
	for _, r := range rows {
		grandTotal += r.Total
	}
	utils.RespondJSON(c, http.StatusOK, "Daily summary", gin.H{
		"date":    day,
		"methods": rows,
		"total":   grandTotal,
	})
}
