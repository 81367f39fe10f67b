package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go-retail-pos/internal/fiscal"
	"go-retail-pos/internal/handler"
	"go-retail-pos/internal/middleware"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/internal/service"
	"go-retail-pos/internal/ws"
	"go-retail-pos/pkg/database"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// 2. Setup Database
	db := database.ConnectDB()
	db.AutoMigrate(
		&model.User{}, &model.Privilege{}, &model.Role{},
		&model.Branch{}, &model.Product{}, &model.BranchStock{},
		&model.Customer{}, &model.RegisterSession{},
		&model.Sale{}, &model.SaleItem{}, &model.SalePayment{},
		&model.StockMovement{},
		&model.LoyaltyTransaction{}, &model.CreditTransaction{},
		&model.Invoice{}, &model.CreditNote{}, &model.DocumentSequence{},
		&model.Alert{},
	)

	// 3. Seed defaults
	seedDefaults(db)

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub()
	go wsHub.Run()

	// 5. Dependency Injection (Wiring Layers)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	branchRepo := repository.NewBranchRepo(db)
	productRepo := repository.NewProductRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	stockRepo := repository.NewStockRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	sequenceRepo := repository.NewSequenceRepo(db)
	invoiceRepo := repository.NewInvoiceRepo(db)
	alertRepo := repository.NewAlertRepo(db)
	reportRepo := repository.NewReportRepo(db)

	gateway := fiscal.NewHTTPGateway(
		os.Getenv("FISCAL_GATEWAY_URL"),
		os.Getenv("FISCAL_GATEWAY_TOKEN"),
		envDuration("FISCAL_GATEWAY_TIMEOUT_SECONDS", 30*time.Second),
	)

	alertService := service.NewAlertService(alertRepo, wsHub)
	invoiceService := service.NewInvoiceService(
		db, invoiceRepo, saleRepo, sequenceRepo, gateway, alertService, wsHub,
		envDuration("FISCAL_GATEWAY_TIMEOUT_SECONDS", 30*time.Second),
	)
	discountPolicy := service.NewDiscountPolicy(userRepo)
	saleService := service.NewSaleService(
		db, saleRepo, productRepo, stockRepo, ledgerRepo, customerRepo,
		sequenceRepo, userRepo, discountPolicy, invoiceService, alertService,
		wsHub, service.SaleConfigFromEnv(),
	)
	voidService := service.NewVoidService(
		db, saleRepo, productRepo, stockRepo, ledgerRepo, customerRepo,
		userRepo, invoiceService, alertService, wsHub,
	)
	sessionService := service.NewSessionService(sessionRepo, branchRepo, alertService, wsHub, service.SessionConfigFromEnv())
	productService := service.NewProductService(productRepo, stockRepo, db, alertService, wsHub)
	customerService := service.NewCustomerService(customerRepo, ledgerRepo, db)
	branchService := service.NewBranchService(branchRepo)
	reportService := service.NewReportService(reportRepo)
	authService := service.NewAuthService(userRepo, wsHub)
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo)

	scheduler := service.NewRetryScheduler(
		invoiceService,
		envDuration("FISCAL_RETRY_INTERVAL_SECONDS", 2*time.Minute),
		envDuration("FISCAL_RETRY_ITEM_DELAY_SECONDS", time.Second),
		envInt("FISCAL_RETRY_BATCH_SIZE", 20),
	)
	scheduler.Start()

	saleHandler := handler.NewSaleHandler(saleService, voidService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	productHandler := handler.NewProductHandler(productService)
	customerHandler := handler.NewCustomerHandler(customerService)
	branchHandler := handler.NewBranchHandler(branchService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	alertHandler := handler.NewAlertHandler(alertService)
	reportHandler := handler.NewReportHandler(reportService)
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(roleRepo)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Retail POS v1.0",
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS

	// 7. Routes
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Post("/validate-token", authHandler.ValidateToken)
	auth.Post("/heartbeat", middleware.RequireAuth(userRepo), authHandler.Heartbeat)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(userRepo))

	// Branch Routes
	protected.Get("/branches", branchHandler.GetBranches)
	protected.Get("/branches/:id", branchHandler.GetBranch)
	protected.Post("/branches", middleware.RequirePrivilege("branch:create"), branchHandler.CreateBranch)
	protected.Put("/branches/:id", middleware.RequirePrivilege("branch:update"), branchHandler.UpdateBranch)

	// Product & Stock Routes
	protected.Get("/products", productHandler.GetProducts)
	protected.Get("/products/:id", productHandler.GetProduct)
	protected.Get("/products/:id/movements", productHandler.GetMovements)
	protected.Post("/products", middleware.RequirePrivilege("product:create"), productHandler.CreateProduct)
	protected.Put("/products/:id", middleware.RequirePrivilege("product:update"), productHandler.UpdateProduct)
	protected.Get("/branches/:branchId/stock", productHandler.GetBranchStock)
	protected.Post("/stock/adjust", middleware.RequirePrivilege("stock:adjust"), productHandler.AdjustStock)

	// Customer Routes
	protected.Get("/customers", customerHandler.GetCustomers)
	protected.Get("/customers/:id", customerHandler.GetCustomer)
	protected.Get("/customers/:id/loyalty", customerHandler.GetLoyaltyHistory)
	protected.Get("/customers/:id/credit", customerHandler.GetCreditHistory)
	protected.Post("/customers", middleware.RequirePrivilege("customer:create"), customerHandler.CreateCustomer)
	protected.Put("/customers/:id", middleware.RequirePrivilege("customer:update"), customerHandler.UpdateCustomer)
	protected.Post("/customers/:id/adjust", middleware.RequirePrivilege("customer:update"), customerHandler.AdjustBalances)

	// Register Session Routes
	protected.Get("/sessions/current", sessionHandler.GetCurrent)
	protected.Get("/sessions/:id", sessionHandler.GetSession)
	protected.Get("/branches/:branchId/sessions", sessionHandler.GetByBranch)
	protected.Post("/sessions", middleware.RequirePrivilege("session:open"), sessionHandler.OpenSession)
	protected.Post("/sessions/:id/close", middleware.RequirePrivilege("session:close"), sessionHandler.CloseSession)

	// Sale Routes
	protected.Get("/sales", middleware.RequirePrivilege("sale:view"), saleHandler.GetSales)
	protected.Get("/sales/:id", middleware.RequirePrivilege("sale:view"), saleHandler.GetSale)
	protected.Post("/sales", middleware.RequirePrivilege(model.PrivSaleCreate), saleHandler.CreateSale)
	protected.Post("/sales/:id/void", saleHandler.VoidSale) // authorization handled in-service (PIN fallback)

	// Fiscal Document Routes
	protected.Get("/invoices", middleware.RequirePrivilege("invoice:view"), invoiceHandler.GetInvoices)
	protected.Get("/invoices/:id", middleware.RequirePrivilege("invoice:view"), invoiceHandler.GetInvoice)
	protected.Get("/invoices/:id/credit-note", middleware.RequirePrivilege("invoice:view"), invoiceHandler.GetCreditNote)
	protected.Get("/sales/:saleId/invoice", middleware.RequirePrivilege("invoice:view"), invoiceHandler.GetInvoiceBySale)
	protected.Post("/invoices/:id/retry", middleware.RequirePrivilege("invoice:retry"), invoiceHandler.RetryInvoice)

	// Alert Routes
	protected.Get("/alerts", middleware.RequirePrivilege("alert:view"), alertHandler.GetAlerts)
	protected.Post("/alerts/:id/read", middleware.RequirePrivilege("alert:view"), alertHandler.MarkRead)

	// Report Routes
	protected.Get("/reports/daily", middleware.RequirePrivilege("report:view"), reportHandler.GetDailySummary)
	protected.Get("/reports/trend", middleware.RequirePrivilege("report:view"), reportHandler.GetSalesTrend)
	protected.Get("/reports/top-products", middleware.RequirePrivilege("report:view"), reportHandler.GetTopProducts)

	// User Management Routes
	protected.Get("/users", userHandler.GetUsers)
	protected.Get("/users/:id", userHandler.GetUser)
	protected.Post("/users", middleware.RequirePrivilege("user:create"), userHandler.CreateUser)
	protected.Put("/users/:id", middleware.RequirePrivilege("user:update"), userHandler.UpdateUser)
	protected.Delete("/users/:id", middleware.RequirePrivilege("user:delete"), userHandler.DeleteUser)
	protected.Put("/users/:id/privileges", middleware.RequirePrivilege("user:update_privilege"), userHandler.UpdateUserPrivileges)

	// Role Routes
	protected.Get("/roles", roleHandler.GetRoles)

	// Privileges Route (list all available privileges)
	protected.Get("/privileges", func(c *fiber.Ctx) error {
		privileges, err := privilegeRepo.FindAll()
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch privileges"})
		}
		return c.JSON(privileges)
	})

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()
	if err := app.Shutdown(); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// seedDefaults creates privileges, roles, the main branch, and the
// admin user if they don't exist
func seedDefaults(db *gorm.DB) {
	privilegeRepo := repository.NewPrivilegeRepo(db)
	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	branchRepo := repository.NewBranchRepo(db)

	if err := privilegeRepo.SeedDefaults(); err != nil {
		log.Printf("Warning: Failed to seed privileges: %v", err)
	}
	if err := roleRepo.SeedDefaults(); err != nil {
		log.Printf("Warning: Failed to seed roles: %v", err)
	}

	allPrivileges, _ := privilegeRepo.FindAll()

	// MASTER_ADMIN gets ALL privileges
	masterRole, err := roleRepo.FindByCode(model.RoleMasterAdmin)
	if err == nil && len(masterRole.Privileges) == 0 {
		db.Model(&masterRole).Association("Privileges").Replace(allPrivileges)
		log.Println("MASTER_ADMIN role assigned all privileges")
	}

	// MANAGER gets everything except user management
	managerRole, err := roleRepo.FindByCode(model.RoleManager)
	if err == nil && len(managerRole.Privileges) == 0 {
		managerPrivileges := []model.Privilege{}
		for _, p := range allPrivileges {
			switch p.Code {
			case "user:create", "user:update", "user:delete", "user:update_privilege":
			default:
				managerPrivileges = append(managerPrivileges, p)
			}
		}
		db.Model(&managerRole).Association("Privileges").Replace(managerPrivileges)
		log.Println("MANAGER role assigned branch privileges")
	}

	// CASHIER gets register and sale operation only
	cashierRole, err := roleRepo.FindByCode(model.RoleCashier)
	if err == nil && len(cashierRole.Privileges) == 0 {
		cashierCodes := map[string]bool{
			model.PrivSaleCreate: true,
			"sale:view":          true,
			"session:open":       true,
			"session:close":      true,
			"session:view":       true,
			"product:view":       true,
			"customer:view":      true,
			"customer:create":    true,
		}
		cashierPrivileges := []model.Privilege{}
		for _, p := range allPrivileges {
			if cashierCodes[p.Code] {
				cashierPrivileges = append(cashierPrivileges, p)
			}
		}
		db.Model(&cashierRole).Association("Privileges").Replace(cashierPrivileges)
		log.Println("CASHIER role assigned register privileges")
	}

	// Default branch
	if _, err := branchRepo.FindByCode("001"); err != nil {
		branch := &model.Branch{
			Code:            "001",
			Name:            "Casa Central",
			PointOfSale:     1,
			FiscalCondition: model.FiscalResponsableInscripto,
			IsActive:        true,
		}
		branch.CreatedBy = "system"
		branch.UpdatedBy = "system"
		if err := branchRepo.Create(branch); err != nil {
			log.Printf("Warning: Failed to create default branch: %v", err)
		} else {
			log.Println("Default branch created: 001 Casa Central")
		}
	}

	// Default admin user with MASTER_ADMIN role
	if _, err := userRepo.FindByEmail("admin@example.com"); err != nil {
		masterRole, _ := roleRepo.FindByCode(model.RoleMasterAdmin)

		admin := &model.User{
			Email:      "admin@example.com",
			FullName:   "Master Administrator",
			RoleID:     &masterRole.ID,
			IsActive:   true,
			Privileges: masterRole.Privileges,
		}
		admin.CreatedBy = "system"
		admin.UpdatedBy = "system"

		if err := admin.SetPassword("admin123"); err != nil {
			log.Printf("Warning: Failed to hash admin password: %v", err)
			return
		}

		if err := userRepo.Create(admin); err != nil {
			log.Printf("Warning: Failed to create admin user: %v", err)
		} else {
			log.Println("Admin user created: admin@example.com / admin123 (MASTER_ADMIN)")
		}
	}
}
