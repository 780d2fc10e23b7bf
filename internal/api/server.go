// Package api exposes the booking flow over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"salonbook/internal/access"
	"salonbook/internal/booking"
	"salonbook/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server is the HTTP front-end.
type Server struct {
	booking  *booking.Service
	access   *access.Service
	verifier *access.TokenVerifier
	engine   *gin.Engine
	srv      *http.Server
	logger   zerolog.Logger
}

// NewServer builds the router.
func NewServer(
	cfg config.HTTPConfig,
	bookingSvc *booking.Service,
	accessSvc *access.Service,
	verifier *access.TokenVerifier,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		booking:  bookingSvc,
		access:   accessSvc,
		verifier: verifier,
		engine:   gin.New(),
		logger:   logger.With().Str("component", "api").Logger(),
	}
	s.routes(cfg)
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(cfg config.HTTPConfig) {
	r := s.engine
	r.Use(gin.Recovery())
	r.Use(RequestLogger(s.logger))
	r.Use(RateLimitMiddleware(cfg.RateLimitPerSecond, cfg.RateLimitBurst, s.logger))

	api := r.Group("/api")
	api.GET("/services", s.listServices)
	api.GET("/calendar", s.getCalendar)

	authed := api.Group("")
	authed.Use(AuthMiddleware(s.verifier, s.access))
	authed.GET("/availability", s.getAvailability)
	authed.POST("/bookings", s.createBooking)
	authed.GET("/bookings", s.listBookings)
	authed.GET("/admin/bookings/export", s.exportBookings)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("HTTP API listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
