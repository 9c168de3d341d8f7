package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/controllers"
	"github.com/vinin2308/foodflow-cardapio/middlewares"
	"github.com/vinin2308/foodflow-cardapio/models"
	"github.com/vinin2308/foodflow-cardapio/realtime"
	"github.com/vinin2308/foodflow-cardapio/services"
)

// SetupRouter wires every endpoint. Customer-facing paths are public (the
// access code is the credential there), staff paths sit behind JWT auth.
func SetupRouter(db *gorm.DB, tabService *services.TabService, hub *realtime.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.SecurityHeaders())

	tabController := controllers.NewTabController(tabService)
	wsController := controllers.NewComandaWSController(tabService, hub)
	dishController := controllers.NewDishController(db)
	categoryController := controllers.NewCategoryController(db)
	tableController := controllers.NewTableController(db)
	managerController := controllers.NewManagerController(db)
	paymentController := controllers.NewPaymentController(db)

	api := r.Group("/api/v1")

	// Auth
	auth := api.Group("/auth")
	{
		strict := middlewares.NewStrictRateLimiter()
		auth.POST("/register", strict, managerController.Register)
		auth.POST("/login", strict, managerController.Login)
		auth.POST("/logout", middlewares.AuthMiddleware(), managerController.Logout)
		auth.GET("/profile", middlewares.AuthMiddleware(), managerController.Profile)
		auth.PATCH("/password", middlewares.AuthMiddleware(), managerController.ChangePassword)
	}

	// Public menu
	api.GET("/categories", categoryController.GetCategories)
	api.GET("/dishes", dishController.GetDishes)
	api.GET("/dishes/:id", dishController.GetDish)

	// Customer comanda flow. OptionalAuth so a waiter using the same app is
	// attributed on the tabs they open.
	public := api.Group("", middlewares.OptionalAuth())
	{
		public.POST("/comandas", tabController.StartComanda)
		public.GET("/comandas/:code", tabController.GetFamily)
		public.POST("/comandas/join", tabController.JoinFamily)

		public.POST("/tabs", tabController.SubmitTab)
		public.POST("/tabs/:tab_id/children", tabController.CreateChild)
		public.POST("/tabs/:tab_id/items", tabController.AddItem)
		public.PUT("/tabs/:tab_id/items", tabController.ReplaceItems)
		public.PATCH("/tabs/:tab_id/items/:item_id", tabController.AdjustItem)
		public.DELETE("/tabs/:tab_id/items/:item_id", tabController.RemoveItem)

		public.GET("/tables", tableController.GetTables)
		public.GET("/tables/:id/qr", tableController.TableQR)
		public.POST("/tables/call-waiter", tableController.CallWaiter)
	}

	// Staff: kitchen and waiters drive the order state machine.
	staff := api.Group("", middlewares.AuthMiddleware())
	{
		kitchen := staff.Group("", middlewares.RequireRoles(models.RoleKitchen, models.RoleWaiter))
		{
			kitchen.GET("/kitchen/tabs", tabController.KitchenTabs)
			kitchen.POST("/tabs/:tab_id/start-preparation", tabController.StartPreparation)
			kitchen.POST("/tabs/:tab_id/finalize", tabController.Finalize)
			kitchen.PATCH("/tabs/:tab_id/estimate", tabController.SetEstimate)
		}

		waiter := staff.Group("", middlewares.RequireRoles(models.RoleWaiter))
		{
			waiter.POST("/tabs/:tab_id/deliver", tabController.Deliver)
			waiter.POST("/tabs/:tab_id/pay", tabController.Pay)
			waiter.POST("/tabs/:tab_id/cancel", tabController.Cancel)
			waiter.POST("/tables/:id/attend", tableController.AttendTable)
		}

		manager := staff.Group("", middlewares.RequireRoles(models.RoleManager))
		{
			manager.POST("/categories", categoryController.CreateCategory)
			manager.PATCH("/categories/:id", categoryController.UpdateCategory)
			manager.POST("/dishes", dishController.CreateDish)
			manager.PATCH("/dishes/:id", dishController.UpdateDish)
			manager.DELETE("/dishes/:id", dishController.DeleteDish)
			manager.POST("/tables", tableController.CreateTable)
			manager.PATCH("/tables/:id", tableController.UpdateTable)
			manager.GET("/payments", paymentController.GetPayments)
			manager.GET("/payments/summary", paymentController.DailySummary)
		}
	}

	// Realtime comanda stream
	r.GET("/ws/comanda/:code", wsController.Serve)

	return r
}
