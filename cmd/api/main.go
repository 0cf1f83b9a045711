package main

import (
    "context"
    "log"
    "net/http"
    "os"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    "github.com/labstack/echo/v4/middleware"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    appmw "github.com/rescuebite/rescuebite/internal/middleware"
    "github.com/rescuebite/rescuebite/internal/alerts"
    "github.com/rescuebite/rescuebite/internal/db"
    "github.com/rescuebite/rescuebite/internal/metrics"
    // handlers
    admin "github.com/rescuebite/rescuebite/internal/admin"
    auth "github.com/rescuebite/rescuebite/internal/auth"
    "github.com/rescuebite/rescuebite/internal/dispatch"
    "github.com/rescuebite/rescuebite/internal/karma"
    "github.com/rescuebite/rescuebite/internal/listing"
    "github.com/rescuebite/rescuebite/internal/messaging"
    "github.com/rescuebite/rescuebite/internal/oracle"
    "github.com/rescuebite/rescuebite/internal/workers"
)

func main() {
    _ = godotenv.Load()

    // Init subsystems
    db.Init()
    alerts.Init()
    metrics.Register()

    ctx := context.Background()

    store := &listing.Store{Pool: db.Conn}

    var vision listing.Vision
    if key := os.Getenv("GEMINI_API_KEY"); key != "" {
        gv, err := oracle.NewGeminiVision(ctx, key, os.Getenv("GEMINI_MODEL"))
        if err != nil {
            log.Printf("vision oracle unavailable: %v", err)
        } else {
            vision = gv
        }
    } else {
        log.Printf("GEMINI_API_KEY not set; listings require a client-side assessment")
    }

    listings := listing.NewHandler(store, vision)
    coordinator := dispatch.NewCoordinator(store, oracle.NewOSRMRouter())
    events := &admin.EventsHandler{Store: store}

    // Background sweeper for shelf-life expiry and stale assignments
    sweeper := workers.NewSweeperFromEnv(store)
    go sweeper.Run(ctx)

    e := echo.New()
    e.HideBanner = true
    e.Use(middleware.Logger())
    e.Use(middleware.Recover())

    // Health and metrics
    e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
    e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

    // Public auth routes
    e.POST("/signup", auth.Signup)
    e.POST("/login", auth.Login)
    e.POST("/admin/bootstrap", auth.BootstrapAdmin)

    // Community
    e.GET("/community/leaderboard", karma.HandleLeaderboard)

    // Authenticated group
    g := e.Group("")
    g.Use(appmw.JWTMiddleware)

    g.GET("/me", auth.Me)

    // Listings
    g.POST("/listings", listings.Create, appmw.RequireRoles("donor"))
    g.GET("/listings", listings.List)
    g.GET("/listings/:id", listings.Get)
    g.GET("/listings/:id/route", listings.Route)
    g.POST("/listings/match", listings.Match, appmw.RequireRoles("ngo"))

    // Dispatch lifecycle
    g.POST("/listings/:id/claim", coordinator.HandleClaim, appmw.RequireRoles("ngo"))
    g.POST("/listings/:id/accept", coordinator.HandleAccept, appmw.RequireRoles("rider"))
    g.POST("/listings/:id/verify-otp", coordinator.HandleVerifyPickup, appmw.RequireRoles("rider"))
    g.POST("/listings/:id/deliver", coordinator.HandleConfirmDelivery, appmw.RequireRoles("rider"))

    // Live tracking
    g.GET("/ws/track/:id", messaging.TrackWS)

    // Admin routes
    adminGroup := e.Group("/admin")
    adminGroup.Use(appmw.JWTMiddleware)
    adminGroup.Use(appmw.RequireRoles("admin"))
    adminGroup.GET("/stats", admin.Stats)
    adminGroup.GET("/listings/:id/events", events.Events)

    port := os.Getenv("PORT")
    if port == "" { port = "8080" }
    log.Printf("API server listening on :%s", port)
    if err := e.Start(":" + port); err != nil {
        log.Fatalf("server error: %v", err)
    }
}
