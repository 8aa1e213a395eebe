package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ricolancheros/movie-reservation-system/api/responses"
	"github.com/ricolancheros/movie-reservation-system/api/validators"
	"github.com/ricolancheros/movie-reservation-system/internal/coordinator"
	"github.com/ricolancheros/movie-reservation-system/internal/showtimes"
	pkgerrors "github.com/ricolancheros/movie-reservation-system/pkg/errors"
	"github.com/ricolancheros/movie-reservation-system/pkg/logger"
)

type scheduleShowtimeRequest struct {
	MovieID    string `json:"movie_id" validate:"required"`
	MovieTitle string `json:"movie_title" validate:"required"`
	HallID     string `json:"hall_id" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string `json:"time" validate:"required,datetime=15:04"`
	PriceCents int    `json:"price_cents" validate:"min=0"`
	TotalSeats int    `json:"total_seats" validate:"omitempty,min=1"`
}

type rescheduleShowtimeRequest struct {
	HallID     *string `json:"hall_id" validate:"omitempty,min=1"`
	Date       *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time       *string `json:"time" validate:"omitempty,datetime=15:04"`
	PriceCents *int    `json:"price_cents" validate:"omitempty,min=0"`
}

// BrowseShowtimes lists active showtimes with live seat availability,
// optionally narrowed by movie and date.
func BrowseShowtimes(svc showtimes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "showtimes service unavailable"))
			return
		}

		date, err := validators.ParseQueryDate(r, "date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := showtimes.BrowseFilters{
			MovieID: strings.TrimSpace(r.URL.Query().Get("movie_id")),
			Date:    date,
		}

		views, err := svc.Browse(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"showtimes": views})
	}
}

// ShowtimeDetail returns one showtime joined with its seat availability.
func ShowtimeDetail(svc showtimes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "showtimes service unavailable"))
			return
		}

		id, err := parseShowtimeID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ScheduleShowtime creates a showtime and its full seat inventory.
func ScheduleShowtime(svc showtimes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "showtimes service unavailable"))
			return
		}

		var req scheduleShowtimeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Schedule(r.Context(), showtimes.ScheduleShowtimeInput{
			MovieID:    req.MovieID,
			MovieTitle: req.MovieTitle,
			HallID:     req.HallID,
			Date:       req.Date,
			Time:       req.Time,
			PriceCents: req.PriceCents,
			TotalSeats: req.TotalSeats,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// RescheduleShowtime updates the mutable fields of a showtime.
func RescheduleShowtime(svc showtimes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "showtimes service unavailable"))
			return
		}

		id, err := parseShowtimeID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req rescheduleShowtimeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Reschedule(r.Context(), id, showtimes.RescheduleShowtimeInput{
			HallID:     req.HallID,
			Date:       req.Date,
			Time:       req.Time,
			PriceCents: req.PriceCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// RetireShowtime closes a showtime to new reservations. Retiring twice is a no-op.
func RetireShowtime(svc showtimes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "showtimes service unavailable"))
			return
		}

		id, err := parseShowtimeID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Retire(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "retired"})
	}
}

// ShowtimeReservations lists every reservation recorded against a showtime.
func ShowtimeReservations(svc coordinator.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservations service unavailable"))
			return
		}

		id, err := parseShowtimeID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListShowtimeReservations(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"reservations": items})
	}
}

func parseShowtimeID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "showtimeId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "showtime id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid showtime id")
	}
	return id, nil
}
