// Package mteam serves the team side of a marathon: teams, the caller's
// team and its requests, applications and invitations.
package mteam

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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	apiVersion  = "/api/v1"
	marathonKey = "marathon"
)

var (
	cfg    config.Config
	engine *gin.Engine
	svc    *governance.Service
)

func setCors() {
	corsconfig := cors.DefaultConfig()
	corsconfig.AllowOrigins = cfg.AllowedOrigins
	corsconfig.AllowMethods = cfg.AllowedMethods
	corsconfig.AllowHeaders = cfg.AllowedHeaders
	engine.Use(cors.New(corsconfig))
}

func mustInitKcAuth() *auth.KeycloakAuth {
	issuer := fmt.Sprintf("http://%s/realms/%s", cfg.AuthAddress, cfg.Realm)
	jwksURL := fmt.Sprintf("http://%s/realms/%s/protocol/openid-connect/certs", cfg.AuthAddress, cfg.Realm)

	a, err := auth.NewKeycloakAuth(jwksURL, issuer, cfg.Audience, cfg.ClientID)
	if err != nil {
		logger.Fatalf("failed to init the keycloak authenticator: %v", err)
	}
	return a
}

// withMarathon resolves the :slug path parameter.
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

	m := root.Group(apiVersion+"/marathons/:slug", authenticate, withMarathon)
	{
		m.GET("/teams", listTeamsHandler)
		m.POST("/teams", createTeamHandler)
		m.GET("/teams/:teamId", getTeamHandler)
		m.POST("/teams/:teamId/applications", applyHandler)

		m.GET("/my-team", myTeamHandler)
		m.POST("/my-team/leave", leaveTeamHandler)
		m.GET("/my-team/requests", listRequestsHandler)
		m.POST("/my-team/requests", createRequestHandler)
		m.POST("/my-team/requests/:requestId/vote", voteHandler)
		m.POST("/my-team/requests/:requestId/decide", decideHandler)
		m.GET("/my-team/applications", teamApplicationsHandler)

		m.GET("/my-applications", myApplicationsHandler)
		m.DELETE("/my-applications/:applicationId", cancelApplicationHandler)

		m.GET("/my-invitations", myInvitationsHandler)
		m.POST("/my-invitations/:invitationId/accept", acceptInvitationHandler)
		m.POST("/my-invitations/:invitationId/decline", declineInvitationHandler)
	}
}

func InitAndServe(confPath string) {
	cfg = config.Load(confPath, "mteam")

	log := logger.New(cfg.LogLevel, cfg.LogFile)
	logger.SetDefault(log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := mustOpenStore(ctx, log)
	defer closeStore()
	svc = governance.NewService(store, governance.WithLogger(log.Named("governance")))

	setGinMode(cfg.ApiGinMode)
	engine = gin.Default()

	kcAuth := mustInitKcAuth()
	defer kcAuth.Close()

	setCors()
	setRoutes(kcAuth.Authenticate())

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
