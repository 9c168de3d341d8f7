package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/models"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

type CategoryController struct {
	DB *gorm.DB
}

func NewCategoryController(db *gorm.DB) *CategoryController {
	return &CategoryController{DB: db}
}

func (cc *CategoryController) GetCategories(c *gin.Context) {
	var categories []models.Category
	if err := cc.DB.Where("active = ?", true).Order("name").Find(&categories).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Categories", categories)
}

func (cc *CategoryController) CreateCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
		Icon string `json:"icon"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	category := models.Category{
		Name:        req.Name,
		Icon:        req.Icon,
		CreatedByID: createdBy(c),
		Active:      true,
	}
	if err := cc.DB.Create(&category).Error; err != nil {
		utils.RespondError(c, http.StatusConflict, errors.New("category already exists"))
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Category created", category)
}

func (cc *CategoryController) UpdateCategory(c *gin.Context) {
	var category models.Category
	err := cc.DB.First(&category, c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, errors.New("category not found"))
		return
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var req struct {
		Name   *string `json:"name"`
		Icon   *string `json:"icon"`
		Active *bool   `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if err := cc.DB.Model(&category).Updates(updates).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Category updated", category)
}
