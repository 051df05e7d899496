package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sharath018/campus-events-backend/config"
	"github.com/sharath018/campus-events-backend/internal/auditlog"
	"github.com/sharath018/campus-events-backend/internal/auth"
	"github.com/sharath018/campus-events-backend/internal/event"
	"github.com/sharath018/campus-events-backend/internal/notification"
	"github.com/sharath018/campus-events-backend/internal/payment"
	"github.com/sharath018/campus-events-backend/internal/registration"
	"github.com/sharath018/campus-events-backend/middleware"
)

// Services are built in main and mounted here.
type Services struct {
	Auth         auth.Service
	Audit        auditlog.Service
	Event        event.Service
	Registration registration.Service
	Payment      payment.Service
	Notification notification.Service
}

func Setup(r *gin.Engine, cfg *config.Config, svc Services, rdb redis.UniversalClient, logger *zap.Logger) {
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Content-Length", "X-Requested-With", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimiter(cfg.RateLimitPerMinute, rdb))
	api.Use(middleware.AuditMiddleware())

	authHandler := auth.NewHandler(svc.Auth)
	eventHandler := event.NewHandler(svc.Event)
	registrationHandler := registration.NewHandler(svc.Registration)
	paymentHandler := payment.NewHandler(svc.Payment)
	notificationHandler := notification.NewHandler(svc.Notification)
	auditHandler := auditlog.NewHandler(svc.Audit)

	// ========== Public ==========
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	api.GET("/events", eventHandler.ListEvents)
	api.GET("/events/:id", eventHandler.GetEvent)

	// Razorpay calls this directly; authenticated by X-Razorpay-Signature.
	api.POST("/payment/webhook", paymentHandler.Webhook)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(svc.Auth))

	protected.GET("/auth/me", authHandler.Me)

	// ========== Events ==========
	organizers := middleware.RBACMiddleware(auth.RoleOrganizer, auth.RoleAdmin)
	admins := middleware.RBACMiddleware(auth.RoleAdmin)
	protected.GET("/events/mine", organizers, eventHandler.ListMine)
	protected.GET("/events/pending", admins, eventHandler.ListPending)
	protected.POST("/events", organizers, eventHandler.CreateEvent)
	protected.PUT("/events/:id", organizers, eventHandler.UpdateEvent)
	protected.DELETE("/events/:id", organizers, eventHandler.DeleteEvent)
	protected.PATCH("/events/:id/status", admins, eventHandler.UpdateStatus)
	protected.DELETE("/events/:id/reject", admins, eventHandler.RejectEvent)

	// ========== Registrations ==========
	protected.POST("/events/:id/register-free", registrationHandler.RegisterFree)
	protected.GET("/events/:id/registrations", organizers, registrationHandler.ListByEvent)
	protected.POST("/events/:id/attendance", organizers, registrationHandler.MarkAttendance)

	selfOrAdmin := middleware.RequireSelfOrRole("userId", auth.RoleAdmin)
	protected.GET("/users/:userId/registrations", selfOrAdmin, registrationHandler.ListRegistered)
	protected.GET("/users/:userId/attended", selfOrAdmin, registrationHandler.ListAttended)

	// ========== Payments ==========
	paymentRoutes := protected.Group("/payment")
	{
		paymentRoutes.POST("/create-order", paymentHandler.CreateOrder)
		paymentRoutes.POST("/verify-payment", paymentHandler.VerifyPayment)
		paymentRoutes.GET("/mine", paymentHandler.ListMine)
		paymentRoutes.GET("/:orderId/receipt", paymentHandler.Receipt)
	}

	// ========== Notifications ==========
	notificationRoutes := protected.Group("/notifications")
	{
		notificationRoutes.GET("", notificationHandler.List)
		notificationRoutes.GET("/stream", notificationHandler.Stream)
		notificationRoutes.PATCH("/read-all", notificationHandler.MarkAllRead)
		notificationRoutes.PATCH("/:id/read", notificationHandler.MarkRead)
		notificationRoutes.POST("/devices", notificationHandler.RegisterDevice)
		notificationRoutes.DELETE("/devices", notificationHandler.RemoveDevice)
	}

	// ========== Audit Logs (Admin Only) ==========
	auditRoutes := protected.Group("/auditlogs")
	auditRoutes.Use(middleware.RBACMiddleware(auth.RoleAdmin))
	{
		auditRoutes.GET("", auditHandler.GetAuditLogs)
		auditRoutes.GET("/:id", auditHandler.GetAuditLogByID)
	}
}
