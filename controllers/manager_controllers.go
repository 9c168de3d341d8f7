package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/models"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

type ManagerController struct {
	DB *gorm.DB
}

func NewManagerController(db *gorm.DB) *ManagerController {
	return &ManagerController{DB: db}
}

func (mc *ManagerController) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	role := req.Role
	switch role {
	case "":
		role = models.RoleWaiter
	case models.RoleManager, models.RoleWaiter, models.RoleKitchen:
	default:
		utils.RespondError(c, http.StatusBadRequest, errors.New("unknown role"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	manager := models.Manager{
		Name:     req.Name,
		Email:    strings.ToLower(req.Email),
		Password: string(hashed),
		Role:     role,
	}
	if err := mc.DB.Create(&manager).Error; err != nil {
		utils.RespondError(c, http.StatusConflict, errors.New("email already registered"))
		return
	}

	utils.InfoLogger.Printf("Manager registered: %s (%s)", manager.Email, manager.Role)
	utils.RespondJSON(c, http.StatusCreated, "Account created", gin.H{
		"id":    manager.ID,
		"name":  manager.Name,
		"email": manager.Email,
		"role":  manager.Role,
	})
}

func (mc *ManagerController) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var manager models.Manager
	err := mc.DB.Where("email = ?", strings.ToLower(req.Email)).First(&manager).Error
	if err != nil || bcrypt.CompareHashAndPassword([]byte(manager.Password), []byte(req.Password)) != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid email or password"))
		return
	}

	token, err := utils.GenerateToken(manager.ID, manager.Role)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Manager logged in: %s", manager.Email)
	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token": token,
		"manager": gin.H{
			"id":    manager.ID,
			"name":  manager.Name,
			"email": manager.Email,
			"role":  manager.Role,
		},
	})
}

func (mc *ManagerController) Logout(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token != "" {
		utils.BlacklistToken(token)
	}
	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}

func (mc *ManagerController) Profile(c *gin.Context) {
	id, _ := c.Get("manager_id")

	var manager models.Manager
	if err := mc.DB.First(&manager, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("account not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Profile", manager)
}

// ChangePassword lets a logged-in staff member rotate their own password.
func (mc *ManagerController) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	id, _ := c.Get("manager_id")
	var manager models.Manager
	if err := mc.DB.First(&manager, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("account not found"))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(manager.Password), []byte(req.CurrentPassword)) != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("current password is incorrect"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := mc.DB.Model(&manager).Update("password", string(hashed)).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Password updated", nil)
}
