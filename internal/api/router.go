package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carrental/backend/internal/api/handlers"
	"carrental/backend/internal/api/middleware"
	"carrental/backend/internal/config"
	"carrental/backend/internal/scheduler"
	"carrental/backend/internal/services"
)

// Services bundles what the public routes need.
type Services struct {
	Accounts  services.IAccountService
	Bookings  services.IBookingService
	Billing   services.IBillingService
	Directory services.IDirectoryService
}

// SetupRouter configures the public API engine. The returned rate limiter
// must be closed on shutdown.
func SetupRouter(cfg *config.Config, svc Services, logger *zap.Logger) (*gin.Engine, *middleware.RateLimiterMiddleware) {
	r := gin.New()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, logger)

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	accountHandler := handlers.NewAccountHandler(svc.Accounts, logger)
	bookingHandler := handlers.NewBookingHandler(svc.Bookings, logger)
	billingHandler := handlers.NewBillingHandler(svc.Billing, logger)
	directoryHandler := handlers.NewDirectoryHandler(svc.Directory, logger)

	// Accounts
	r.POST("/register", accountHandler.Register)
	r.POST("/login", accountHandler.Login)
	r.POST("/mechanicLogin", accountHandler.MechanicLogin)
	r.POST("/updateAvailability", accountHandler.UpdateAvailability)

	// Request ledger
	r.POST("/sendRequest", bookingHandler.SendRequest)
	r.GET("/getRequests", bookingHandler.GetRequests)
	r.POST("/getRequestStatus", bookingHandler.GetRequestStatus)
	r.POST("/updateRequestStatus", bookingHandler.UpdateRequestStatus)
	r.POST("/acceptRequest", bookingHandler.AcceptRequest)
	r.POST("/clearRequestStatus", bookingHandler.ClearRequestStatus)
	r.POST("/saveBookingId", bookingHandler.SaveBookingID)
	r.POST("/generateBill", bookingHandler.GetBookingDetails)
	r.POST("/deleteBooking", bookingHandler.DeleteBooking)

	// Billing
	r.POST("/sendBill", billingHandler.SendBill)

	// Directory
	r.POST("/search", directoryHandler.Search)
	r.POST("/fetchMechanicBookings", directoryHandler.FetchMechanicBookings)
	r.GET("/fetchBookings", directoryHandler.FetchBookings)
	r.POST("/getMechanicPincode", directoryHandler.GetMechanicPincode)

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found"})
	})

	return r, rateLimiter
}

// SetupServiceRouter configures the service engine: shutdown, mock mailbox
// reads and on-demand ledger repair. mailbox may be nil.
func SetupServiceRouter(mailbox handlers.IMockMailbox, reconciler scheduler.LedgerReconciler, shutdownChan chan<- struct{}, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("service-api")))

	h := handlers.NewServiceApiHandler(mailbox, reconciler, shutdownChan, logger)
	r.POST("/api", h.HandleRequest)
	return r
}
