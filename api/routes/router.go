package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ricolancheros/movie-reservation-system/api/controllers"
	"github.com/ricolancheros/movie-reservation-system/api/middleware"
	"github.com/ricolancheros/movie-reservation-system/internal/coordinator"
	"github.com/ricolancheros/movie-reservation-system/internal/showtimes"
	"github.com/ricolancheros/movie-reservation-system/pkg/config"
	"github.com/ricolancheros/movie-reservation-system/pkg/db"
	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
	"github.com/ricolancheros/movie-reservation-system/pkg/logger"
	"github.com/ricolancheros/movie-reservation-system/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	showtimeService showtimes.Service,
	reservationService coordinator.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Browsing is public; reserving is not.
	r.Route("/api/v1/showtimes", func(r chi.Router) {
		r.Get("/", controllers.BrowseShowtimes(showtimeService, logg))
		r.Get("/{showtimeId}", controllers.ShowtimeDetail(showtimeService, logg))
	})

	r.Route("/api/v1/reservations", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, cfg.Saga.IdempotencyRecordTTL, logg))

		r.Post("/", controllers.CreateReservation(reservationService, logg))
		r.Get("/", controllers.ListReservations(reservationService, logg))
		r.Get("/{reservationId}", controllers.ReservationDetail(reservationService, logg))
		r.Post("/{reservationId}/cancel", controllers.CancelReservation(reservationService, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.RoleAdmin), logg))
		r.Use(middleware.Idempotency(redisClient, cfg.Saga.IdempotencyRecordTTL, logg))

		r.Route("/showtimes", func(r chi.Router) {
			r.Post("/", controllers.ScheduleShowtime(showtimeService, logg))
			r.Put("/{showtimeId}", controllers.RescheduleShowtime(showtimeService, logg))
			r.Delete("/{showtimeId}", controllers.RetireShowtime(showtimeService, logg))
			r.Get("/{showtimeId}/reservations", controllers.ShowtimeReservations(reservationService, logg))
		})
	})

	return r
}
