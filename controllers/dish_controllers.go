package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/models"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

type DishController struct {
	DB *gorm.DB
}

func NewDishController(db *gorm.DB) *DishController {
	return &DishController{DB: db}
}

// GetDishes lists active dishes, the public menu. Filter by category with
// ?category_id=.
func (dc *DishController) GetDishes(c *gin.Context) {
	var dishes []models.Dish
	query := dc.DB.Preload("Category").Where("active = ?", true)
	if categoryID := c.Query("category_id"); categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}
	if err := query.Order("name").Find(&dishes).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dishes", dishes)
}

func (dc *DishController) GetDish(c *gin.Context) {
	var dish models.Dish
	err := dc.DB.Preload("Category").First(&dish, c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, errors.New("dish not found"))
		return
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dish", dish)
}

func (dc *DishController) CreateDish(c *gin.Context) {
	var req struct {
		CategoryID  uint    `json:"category_id" binding:"required"`
		Name        string  `json:"name" binding:"required"`
		Description string  `json:"description"`
		Price       float64 `json:"price" binding:"required,gt=0"`
		ImageURL    string  `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var category models.Category
	if err := dc.DB.First(&category, req.CategoryID).Error; err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("category not found"))
		return
	}

	dish := models.Dish{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		CreatedByID: createdBy(c),
		Active:      true,
	}
	if err := dc.DB.Create(&dish).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Dish created: %s (%s)", dish.Name, utils.FormatBRL(dish.Price))
	utils.RespondJSON(c, http.StatusCreated, "Dish created", dish)
}

func (dc *DishController) UpdateDish(c *gin.Context) {
	var dish models.Dish
	err := dc.DB.First(&dish, c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, errors.New("dish not found"))
		return
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var req struct {
		CategoryID  *uint    `json:"category_id"`
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		ImageURL    *string  `json:"image_url"`
		Active      *bool    `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	updates := map[string]interface{}{}
	if req.CategoryID != nil {
		updates["category_id"] = *req.CategoryID
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("price must be positive"))
			return
		}
		updates["price"] = *req.Price
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if err := dc.DB.Model(&dish).Updates(updates).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dish updated", dish)
}

// DeleteDish deactivates the dish. Existing tab items keep their captured
// price and name, so nothing is ever hard-deleted from the menu.
func (dc *DishController) DeleteDish(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid dish id"))
		return
	}

	result := dc.DB.Model(&models.Dish{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("dish not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dish deactivated", nil)
}
