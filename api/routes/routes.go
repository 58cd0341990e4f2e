package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/crm-campaign-backend/internal/config"
	"github.com/ArowuTest/crm-campaign-backend/internal/handlers"
	"github.com/ArowuTest/crm-campaign-backend/internal/middleware"
	"github.com/ArowuTest/crm-campaign-backend/internal/services"
	"github.com/ArowuTest/crm-campaign-backend/pkg/jwt"
)

// Dependencies holds everything the router wires into handlers
type Dependencies struct {
	Auth      services.AuthService
	Customers services.CustomerService
	Orders    services.OrderService
	Audiences services.AudienceService
	Campaigns services.CampaignService
	Delivery  services.DeliveryService
	Vendor    handlers.VendorAcceptor
	Tokens    *jwt.TokenService
	// Limiter guards audience previews and campaign creation; nil disables it
	Limiter middleware.Limiter
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())

	authHandler := handlers.NewAuthHandler(deps.Auth)
	customerHandler := handlers.NewCustomerHandler(deps.Customers)
	orderHandler := handlers.NewOrderHandler(deps.Orders)
	audienceHandler := handlers.NewAudienceHandler(deps.Audiences)
	campaignHandler := handlers.NewCampaignHandler(deps.Campaigns)
	webhookHandler := handlers.NewWebhookHandler(deps.Delivery)

	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if deps.Limiter == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{middleware.RateLimitMiddleware(deps.Limiter, middleware.UserOrIPKey), h}
	}

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := public.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		public.POST("/webhooks/delivery-receipts", webhookHandler.DeliveryReceipt)
		if deps.Vendor != nil {
			public.POST("/vendor/send", handlers.NewVendorHandler(deps.Vendor).Send)
		}
	}

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware(deps.Tokens))
	{
		customers := protected.Group("/customers")
		{
			customers.GET("", customerHandler.ListCustomers)
			customers.GET("/:id", customerHandler.GetCustomer)
			customers.POST("", customerHandler.CreateCustomer)
		}

		orders := protected.Group("/orders")
		{
			orders.GET("", orderHandler.ListOrders)
			orders.POST("", orderHandler.CreateOrder)
		}

		audiences := protected.Group("/audiences")
		{
			audiences.GET("", audienceHandler.ListSegments)
			audiences.GET("/:id", audienceHandler.GetSegment)
			audiences.POST("", audienceHandler.CreateSegment)
			audiences.POST("/preview", limited(audienceHandler.Preview)...)
		}

		campaigns := protected.Group("/campaigns")
		{
			campaigns.GET("", campaignHandler.ListCampaigns)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.GET("/:id/logs", campaignHandler.ListLogs)
			campaigns.POST("", limited(campaignHandler.CreateCampaign)...)
			campaigns.POST("/:id/deliver", campaignHandler.Deliver)
		}
	}

	return router
}
