// Package mmarathon serves marathons, their participants and the organizer
// moderation tools. It also runs the periodic governance repair job.
package mmarathon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kyri56xcaesar/marathon-proj/internal/apierr"
	auth "kyri56xcaesar/marathon-proj/internal/authmw"
	"kyri56xcaesar/marathon-proj/internal/config"
	"kyri56xcaesar/marathon-proj/internal/governance"
	"kyri56xcaesar/marathon-proj/internal/logger"
	"kyri56xcaesar/marathon-proj/internal/scheduler"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	apiVersion  = "/api/v1"
	marathonKey = "marathon"
)

// userDirectory resolves Keycloak usernames to user ids.
type userDirectory interface {
	ResolveUsername(ctx context.Context, username string) (string, error)
}

var (
	cfg       config.Config
	engine    *gin.Engine
	svc       *governance.Service
	directory userDirectory
)

func setCors() {
	corsconfig := cors.DefaultConfig()
	corsconfig.AllowOrigins = cfg.AllowedOrigins
	corsconfig.AllowMethods = cfg.AllowedMethods
	corsconfig.AllowHeaders = cfg.AllowedHeaders
	engine.Use(cors.New(corsconfig))
}

func mustInitKcService() *auth.Service {
	s, err := auth.NewService(cfg.AuthAddress, cfg.Realm, cfg.ClientID, cfg.Issuer, cfg.Audience, cfg.ClientSecret)
	if err != nil {
		logger.Fatalf("failed to init the keycloak service: %v", err)
	}
	return s
}

func withMarathon(c *gin.Context) {
	m, err := svc.GetMarathon(c.Request.Context(), c.Param("slug"))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.Set(marathonKey, m)
	c.Next()
}

func marathonOf(c *gin.Context) *governance.Marathon {
	return c.MustGet(marathonKey).(*governance.Marathon)
}

func setRoutes(authenticate gin.HandlerFunc) {
	root := engine.Group("/")
	{
		root.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "alive"})
		})
	}

	api := root.Group(apiVersion+"/marathons", authenticate)
	api.GET("", listMarathonsHandler)
	api.POST("", createMarathonHandler)

	m := api.Group("/:slug", withMarathon)
	{
		m.GET("", getMarathonHandler)
		m.DELETE("", deleteMarathonHandler)

		m.POST("/join", joinHandler)
		m.POST("/leave", leaveHandler)
		m.GET("/my-status", myStatusHandler)
		m.GET("/my-profile", myProfileHandler)
		m.PATCH("/my-profile", updateProfileHandler)

		m.GET("/participants", listParticipantsHandler)
		m.GET("/participants/:id", getParticipantHandler)
		m.POST("/participants/:id/suspend", suspendParticipantHandler)
		m.POST("/participants/:id/unsuspend", unsuspendParticipantHandler)
		m.POST("/participants/:id/ban", banParticipantHandler)

		m.GET("/organizers", listOrganizersHandler)
		m.POST("/organizers", addOrganizerHandler)
		m.DELETE("/organizers/:userId", removeOrganizerHandler)

		m.POST("/teams/:teamId/suspend", suspendTeamHandler)
		m.POST("/teams/:teamId/unsuspend", unsuspendTeamHandler)
		m.POST("/teams/:teamId/delete", deleteTeamHandler)

		m.POST("/requests/:requestId/execute", executeRequestHandler)
	}
}

func InitAndServe(confPath string) {
	cfg = config.Load(confPath, "mmarathon")

	log := logger.New(cfg.LogLevel, cfg.LogFile)
	logger.SetDefault(log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := mustOpenStore(ctx, log)
	defer closeStore()
	svc = governance.NewService(store, governance.WithLogger(log.Named("governance")))

	jobs, err := scheduler.NewManager(log.Named("scheduler"))
	if err != nil {
		logger.Fatalf("failed to create the scheduler: %v", err)
	}
	if cfg.RepairIntervalSeconds > 0 {
		interval := time.Duration(cfg.RepairIntervalSeconds) * time.Second
		if err := jobs.Register(scheduler.NewRepairJob(svc, interval, log.Named("repair"))); err != nil {
			logger.Fatalf("failed to register the repair job: %v", err)
		}
	}
	jobs.Start()
	defer jobs.Stop()

	setGinMode(cfg.ApiGinMode)
	engine = gin.Default()

	kc := mustInitKcService()
	defer kc.KCAuth.Close()
	directory = kc

	setCors()
	setRoutes(kc.KCAuth.Authenticate())

	// serve http
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: time.Second * 5,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s", err)
		}
	}()

	<-ctx.Done()

	stop()
	logger.Info("shutting down gracefully, press Ctrl+C again to force")

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exiting")
}

func setGinMode(mode string) {
	switch strings.ToLower(mode) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "envgin":
		gin.SetMode(os.Getenv(gin.EnvGinMode))
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
}
