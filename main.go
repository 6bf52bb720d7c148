package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vcspos-server/config"
	"vcspos-server/database"
	"vcspos-server/handlers"
	"vcspos-server/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if config.AppConfig.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := database.Connect(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitializeTables(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tables")
	}

	otp := buildOTPService()
	handlers.Init(db.DB, otp)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerRoutes(router)

	srv := &http.Server{
		Addr:    ":" + config.AppConfig.ServerPort,
		Handler: corsHandler.Handler(router),
	}

	go func() {
		log.Info().Str("port", config.AppConfig.ServerPort).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

// buildOTPService assembles the one-time-code service from config:
// Redis-backed challenges when REDIS_URL is set, in-process otherwise.
func buildOTPService() *services.OTPService {
	cfg := config.AppConfig

	var store services.ChallengeStore
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		redisStore, err := services.NewRedisChallengeStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		store = redisStore
		log.Info().Msg("otp challenges stored in redis")
	} else {
		store = services.NewMemoryChallengeStore()
		log.Info().Msg("otp challenges stored in process memory")
	}

	return &services.OTPService{
		Store:  store,
		Secret: []byte(cfg.JWTSecret),
		Email: &services.EmailCodeSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		},
		SMS: &services.SMSCodeSender{
			ProviderURL: cfg.SMSProviderURL,
			Token:       cfg.SMSProviderToken,
			CountryCode: cfg.SMSCountryCode,
		},
		DevEcho:    cfg.OTPDevEcho,
		Production: cfg.IsProduction(),
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func registerRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")

	// Staff authentication
	auth := api.Group("/auth")
	{
		auth.POST("/login", handlers.Login)
		auth.POST("/register", handlers.AuthRequired(), handlers.RequireRoles("admin"), handlers.RegisterUser)
	}

	// Staff loyalty administration
	loyalty := api.Group("/loyalty", handlers.AuthRequired())
	{
		members := loyalty.Group("/members")
		{
			members.GET("", handlers.ListLoyaltyMembers)
			members.GET("/archived", handlers.ListArchivedLoyaltyMembers)
			members.GET("/recent", handlers.ListRecentLoyaltyMembers)
			members.POST("", handlers.EnrollLoyaltyMember)
			members.GET("/scan/:barcode", handlers.ScanLoyaltyMember)
			members.GET("/:id", handlers.GetLoyaltyMember)
			members.PUT("/:id", handlers.UpdateLoyaltyMember)
			members.POST("/:id/archive", handlers.RequireRoles("supervisor", "admin"), handlers.ArchiveLoyaltyMember)
			members.POST("/:id/restore", handlers.RequireRoles("supervisor", "admin"), handlers.RestoreLoyaltyMember)
			members.DELETE("/:id", handlers.RequireRoles("admin"), handlers.DeleteLoyaltyMember)
			members.POST("/:id/renew", handlers.RenewLoyaltyMembership)
			members.POST("/:id/issue-card", handlers.IssueLoyaltyCard)
			members.GET("/:id/card", handlers.GetLoyaltyCardData)
			members.GET("/:id/transactions", handlers.GetLoyaltyMemberTransactions)
			members.POST("/:id/redeem-product", handlers.RedeemLoyaltyProduct)
		}

		loyalty.GET("/rewards", handlers.ListRedeemableProducts)
		loyalty.GET("/dashboard", handlers.GetLoyaltyDashboard)

		tiers := loyalty.Group("/tiers")
		{
			tiers.GET("", handlers.ListLoyaltyTiers)
			tiers.PUT("/:id", handlers.RequireRoles("supervisor", "admin"), handlers.UpdateLoyaltyTier)
		}

		settings := loyalty.Group("/settings")
		{
			settings.GET("", handlers.ListLoyaltySettings)
			settings.GET("/:key", handlers.GetLoyaltySetting)
			settings.PUT("/:key", handlers.RequireRoles("supervisor", "admin"), handlers.UpdateLoyaltySetting)
		}
	}

	// Sales
	transactions := api.Group("/transactions", handlers.AuthRequired())
	{
		transactions.POST("", handlers.CreateTransaction)
		transactions.GET("", handlers.ListTransactions)
		transactions.GET("/:id", handlers.GetTransaction)
		transactions.POST("/:id/void", handlers.RequireRoles("supervisor", "admin"), handlers.VoidTransaction)
	}

	// Refunds
	refunds := api.Group("/refunds", handlers.AuthRequired())
	{
		refunds.POST("", handlers.CreateRefundRequest)
		refunds.GET("/pending", handlers.RequireRoles("supervisor", "admin"), handlers.ListPendingRefundRequests)
		refunds.GET("/mine", handlers.ListMyRefundRequests)
		refunds.POST("/:id/approve", handlers.RequireRoles("supervisor", "admin"), handlers.ApproveRefundRequest)
		refunds.POST("/:id/reject", handlers.RequireRoles("supervisor", "admin"), handlers.RejectRefundRequest)
	}

	// Member app
	app := api.Group("/app")
	{
		app.POST("/login", handlers.MemberLogin)
		app.POST("/request-otp", handlers.RequestLoginCode)

		me := app.Group("", handlers.MemberAuthRequired())
		{
			me.GET("/me", handlers.GetMemberProfile)
			me.GET("/transactions", handlers.GetMemberPointsHistory)
			me.GET("/rewards", handlers.ListMemberRewards)
			me.POST("/rewards/redeem", handlers.MemberRedeemReward)
		}
	}
}
