package showtimes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/internal/inventory"
	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
	pkgerrors "github.com/ricolancheros/movie-reservation-system/pkg/errors"
)

// DefaultTotalSeats is the standard hall size used when scheduling omits one.
const DefaultTotalSeats = 100

const cacheScope = "showtimes"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type browseCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(scope, id string) string
}

type service struct {
	repo      Repository
	inventory inventory.Service
	tx        txRunner
	cache     browseCache
	cacheTTL  time.Duration
}

// NewService builds the showtime facade. The cache is optional; passing nil
// disables browse caching.
func NewService(repo Repository, inv inventory.Service, tx txRunner, cache browseCache, cacheTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("showtime repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:      repo,
		inventory: inv,
		tx:        tx,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}, nil
}

func (s *service) Schedule(ctx context.Context, input ScheduleShowtimeInput) (*ShowtimeView, error) {
	if input.MovieID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movie id required")
	}
	if input.MovieTitle == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movie title required")
	}
	if input.HallID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hall id required")
	}
	if err := validateDate(input.Date); err != nil {
		return nil, err
	}
	if err := validateTime(input.Time); err != nil {
		return nil, err
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if input.TotalSeats < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total seats must not be negative")
	}

	totalSeats := input.TotalSeats
	if totalSeats == 0 {
		totalSeats = DefaultTotalSeats
	}

	showtime := &models.Showtime{
		ID:         uuid.New(),
		MovieID:    input.MovieID,
		MovieTitle: input.MovieTitle,
		HallID:     input.HallID,
		Date:       input.Date,
		Time:       input.Time,
		PriceCents: input.PriceCents,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, showtime); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create showtime")
		}
		if _, err := s.inventory.CreateForShowtime(ctx, tx, showtime.ID, totalSeats); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBrowse(ctx, showtime.MovieID, showtime.Date)

	return &ShowtimeView{
		ID:             showtime.ID,
		MovieID:        showtime.MovieID,
		MovieTitle:     showtime.MovieTitle,
		HallID:         showtime.HallID,
		Date:           showtime.Date,
		Time:           showtime.Time,
		PriceCents:     showtime.PriceCents,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
	}, nil
}

func (s *service) Reschedule(ctx context.Context, id uuid.UUID, input RescheduleShowtimeInput) (*ShowtimeView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}

	updates := map[string]any{}
	if input.HallID != nil {
		if *input.HallID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "hall id must not be empty")
		}
		updates["hall_id"] = *input.HallID
	}
	if input.Date != nil {
		if err := validateDate(*input.Date); err != nil {
			return nil, err
		}
		updates["date"] = *input.Date
	}
	if input.Time != nil {
		if err := validateTime(*input.Time); err != nil {
			return nil, err
		}
		updates["time"] = *input.Time
	}
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
		}
		updates["price_cents"] = *input.PriceCents
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	existing, err := s.loadShowtime(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Retired() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "showtime is retired")
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update showtime")
	}

	view, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Both the old and new browse slices are stale now.
	s.invalidateBrowse(ctx, existing.MovieID, existing.Date)
	s.invalidateBrowse(ctx, view.MovieID, view.Date)
	return view, nil
}

func (s *service) Retire(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}

	existing, err := s.loadShowtime(ctx, id)
	if err != nil {
		return err
	}
	if existing.Retired() {
		return nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, id, map[string]any{"retired_at": time.Now().UTC()}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire showtime")
		}
		return s.inventory.Retire(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.invalidateBrowse(ctx, existing.MovieID, existing.Date)
	return nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*ShowtimeView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}
	view, err := s.repo.FindViewByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "showtime not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load showtime")
	}
	return view, nil
}

// Browse lists active showtimes with live availability. Results are cached
// briefly; staleness is bounded by the configured TTL and reservation flows
// never read from this path.
func (s *service) Browse(ctx context.Context, filters BrowseFilters) ([]ShowtimeView, error) {
	if filters.Date != "" {
		if err := validateDate(filters.Date); err != nil {
			return nil, err
		}
	}

	// Cache trouble never fails a read; any miss or error falls through to the DB.
	key := s.browseKey(filters.MovieID, filters.Date)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var views []ShowtimeView
			if jerr := json.Unmarshal([]byte(cached), &views); jerr == nil {
				return views, nil
			}
		}
	}

	views, err := s.repo.ListActive(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list showtimes")
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if payload, jerr := json.Marshal(views); jerr == nil {
			_ = s.cache.Set(ctx, key, payload, s.cacheTTL)
		}
	}
	return views, nil
}

func (s *service) loadShowtime(ctx context.Context, id uuid.UUID) (*models.Showtime, error) {
	showtime, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "showtime not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load showtime")
	}
	return showtime, nil
}

func (s *service) browseKey(movieID, date string) string {
	if s.cache == nil {
		return ""
	}
	switch {
	case movieID != "" && date != "":
		return s.cache.CacheKey(cacheScope, "movie:"+movieID+":date:"+date)
	case movieID != "":
		return s.cache.CacheKey(cacheScope, "movie:"+movieID)
	case date != "":
		return s.cache.CacheKey(cacheScope, "date:"+date)
	default:
		return s.cache.CacheKey(cacheScope, "all")
	}
}

// invalidateBrowse drops every cached browse slice a mutation could have
// touched. Misses are fine; the next read repopulates.
func (s *service) invalidateBrowse(ctx context.Context, movieID, date string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx,
		s.cache.CacheKey(cacheScope, "all"),
		s.cache.CacheKey(cacheScope, "movie:"+movieID),
		s.cache.CacheKey(cacheScope, "date:"+date),
		s.cache.CacheKey(cacheScope, "movie:"+movieID+":date:"+date),
	)
}

func validateDate(value string) error {
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "date must be YYYY-MM-DD")
	}
	return nil
}

func validateTime(value string) error {
	if _, err := time.Parse("15:04", value); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "time must be HH:MM")
	}
	return nil
}
