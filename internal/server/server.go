package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/instrument-market/internal/auth"
	"github.com/shinyyama/instrument-market/internal/events"
	"github.com/shinyyama/instrument-market/internal/handler"
	appmw "github.com/shinyyama/instrument-market/internal/middleware"
	"github.com/shinyyama/instrument-market/internal/repository"
	"github.com/shinyyama/instrument-market/internal/service"
	"github.com/shinyyama/instrument-market/internal/storage"
	"gorm.io/gorm"
)

type Deps struct {
	DB        *gorm.DB
	Issuer    *auth.Issuer
	Store     storage.Store
	Publisher events.Publisher
	Logger    *slog.Logger

	// Firebase is optional; nil disables Firebase ID tokens.
	Firebase appmw.IDTokenVerifier

	// UploadDir is served under /uploads when set.
	UploadDir      string
	AllowedOrigins []string

	GitSHA    string
	BuildTime string
}

type Server struct {
	e          *echo.Echo
	categories service.CategoryService
}

func allowOrigin(allowed []string) func(string) (bool, error) {
	return func(origin string) (bool, error) {
		low := strings.ToLower(origin)
		if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
			strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
			return true, nil
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false, nil
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false, nil
		}
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimRight(a, "/"), low) {
				return true, nil
			}
		}
		return false, nil
	}
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestLogger(d.Logger))
	e.Use(middleware.BodyLimit("16M"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin(d.AllowedOrigins),
	}))

	tx := repository.NewTransactor(d.DB)
	userRepo := repository.NewUserRepository(d.DB)
	categoryRepo := repository.NewCategoryRepository(d.DB)
	instrumentRepo := repository.NewInstrumentRepository(d.DB)
	favoriteRepo := repository.NewFavoriteRepository(d.DB)
	cartRepo := repository.NewCartRepository(d.DB)
	orderRepo := repository.NewOrderRepository(d.DB)
	notificationRepo := repository.NewNotificationRepository(d.DB)

	notificationSvc := service.NewNotificationService(notificationRepo)
	userSvc := service.NewUserService(userRepo, d.Issuer)
	categorySvc := service.NewCategoryService(categoryRepo)
	instrumentSvc := service.NewInstrumentService(tx, instrumentRepo, categoryRepo, userRepo, favoriteRepo, orderRepo, d.Store, notificationSvc)
	favoriteSvc := service.NewFavoriteService(tx, favoriteRepo, instrumentRepo)
	cartSvc := service.NewCartService(cartRepo, instrumentRepo)
	orderSvc := service.NewOrderService(tx, orderRepo, instrumentRepo, cartRepo, notificationSvc, d.Publisher)
	statsSvc := service.NewStatsService(userRepo, instrumentRepo, orderRepo)

	userHandler := handler.NewUserHandler(userSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	instrumentHandler := handler.NewInstrumentHandler(instrumentSvc)
	favoriteHandler := handler.NewFavoriteHandler(favoriteSvc)
	cartHandler := handler.NewCartHandler(cartSvc)
	orderHandler := handler.NewOrderHandler(orderSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)

	authMw := appmw.NewAuthMiddleware(d.Issuer, d.Firebase, userSvc)
	requireAuth := authMw.RequireAuth

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    d.GitSHA,
			"build_time": d.BuildTime,
		})
	})
	if d.UploadDir != "" {
		e.Static("/uploads", d.UploadDir)
	}

	api := e.Group("/api")

	api.POST("/auth/register", userHandler.Register)
	api.POST("/auth/login", userHandler.Login)
	api.POST("/auth/logout", userHandler.Logout, requireAuth)
	api.GET("/auth/check_auth", userHandler.CheckAuth, requireAuth)
	api.PUT("/auth/update_profile", userHandler.UpdateProfile, requireAuth)
	api.POST("/auth/change_password", userHandler.ChangePassword, requireAuth)

	api.GET("/categories", categoryHandler.List)

	api.GET("/instruments", instrumentHandler.List)
	api.GET("/instruments/hot", instrumentHandler.Hot)
	api.GET("/instruments/:id", instrumentHandler.Get, authMw.OptionalAuth)
	api.POST("/instruments", instrumentHandler.Create, requireAuth)
	api.PUT("/instruments/:id", instrumentHandler.Update, requireAuth)
	api.DELETE("/instruments/:id", instrumentHandler.Delete, requireAuth)
	api.POST("/instruments/:id/images", instrumentHandler.UploadImages, requireAuth)
	api.POST("/instruments/:id/contact", instrumentHandler.Contact, requireAuth)
	api.POST("/instruments/:id/favorite", favoriteHandler.Toggle, requireAuth)
	api.GET("/search/suggestions", instrumentHandler.Suggestions)

	api.POST("/cart/add", cartHandler.Add, requireAuth)
	api.DELETE("/cart/:id", cartHandler.Remove, requireAuth)
	api.GET("/cart", cartHandler.List, requireAuth)

	api.POST("/orders", orderHandler.Create, requireAuth)
	api.GET("/orders", orderHandler.List, requireAuth)
	api.GET("/orders/:id", orderHandler.Get, requireAuth)
	api.PUT("/orders/:id", orderHandler.UpdateStatus, requireAuth)
	api.PATCH("/orders/:id/meeting", orderHandler.UpdateMeeting, requireAuth)

	api.GET("/users/profile", userHandler.Profile, requireAuth)
	api.GET("/users/instruments", instrumentHandler.ListMine, requireAuth)
	api.GET("/users/favorites", favoriteHandler.List, requireAuth)
	api.GET("/users/:id/instruments", instrumentHandler.ListByUser)

	api.GET("/statistics/dashboard", statsHandler.Dashboard, requireAuth)

	api.GET("/notifications", notificationHandler.List, requireAuth)
	api.POST("/notifications/read", notificationHandler.MarkRead, requireAuth)

	return &Server{e: e, categories: categorySvc}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// SeedCategories inserts the default categories that are missing.
func (s *Server) SeedCategories(ctx context.Context) (int64, error) {
	return s.categories.EnsureDefaults(ctx)
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
