package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ricolancheros/movie-reservation-system/api/middleware"
	"github.com/ricolancheros/movie-reservation-system/internal/coordinator"
	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
	pkgerrors "github.com/ricolancheros/movie-reservation-system/pkg/errors"
	"github.com/ricolancheros/movie-reservation-system/pkg/logger"
	"github.com/ricolancheros/movie-reservation-system/pkg/pagination"
)

type testCoordinatorService struct {
	createFn       func(ctx context.Context, actor coordinator.Actor, input coordinator.CreateReservationInput) (*models.Reservation, error)
	cancelFn       func(ctx context.Context, actor coordinator.Actor, id uuid.UUID) (*models.Reservation, error)
	getFn          func(ctx context.Context, actor coordinator.Actor, id uuid.UUID) (*models.Reservation, error)
	listUserFn     func(ctx context.Context, actor coordinator.Actor, params pagination.Params) (*coordinator.ReservationPage, error)
	listShowtimeFn func(ctx context.Context, showtimeID uuid.UUID) ([]models.Reservation, error)
}

func (s *testCoordinatorService) CreateReservation(ctx context.Context, actor coordinator.Actor, input coordinator.CreateReservationInput) (*models.Reservation, error) {
	if s.createFn != nil {
		return s.createFn(ctx, actor, input)
	}
	return nil, nil
}

func (s *testCoordinatorService) CancelReservation(ctx context.Context, actor coordinator.Actor, id uuid.UUID) (*models.Reservation, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, actor, id)
	}
	return nil, nil
}

func (s *testCoordinatorService) GetReservation(ctx context.Context, actor coordinator.Actor, id uuid.UUID) (*models.Reservation, error) {
	if s.getFn != nil {
		return s.getFn(ctx, actor, id)
	}
	return nil, nil
}

func (s *testCoordinatorService) ListUserReservations(ctx context.Context, actor coordinator.Actor, params pagination.Params) (*coordinator.ReservationPage, error) {
	if s.listUserFn != nil {
		return s.listUserFn(ctx, actor, params)
	}
	return &coordinator.ReservationPage{}, nil
}

func (s *testCoordinatorService) ListShowtimeReservations(ctx context.Context, showtimeID uuid.UUID) ([]models.Reservation, error) {
	if s.listShowtimeFn != nil {
		return s.listShowtimeFn(ctx, showtimeID)
	}
	return nil, nil
}

func (s *testCoordinatorService) RecoverStalledAttempts(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *testCoordinatorService) ProcessReconciliationItems(ctx context.Context) (int, error) {
	return 0, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func authedRequest(method, target string, body io.Reader, userID uuid.UUID, role enums.Role) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func withReservationParam(req *http.Request, id uuid.UUID) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("reservationId", id.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestCreateReservationSuccess(t *testing.T) {
	userID := uuid.New()
	showtimeID := uuid.New()
	svc := &testCoordinatorService{
		createFn: func(ctx context.Context, actor coordinator.Actor, input coordinator.CreateReservationInput) (*models.Reservation, error) {
			if actor.UserID != userID {
				t.Fatalf("unexpected actor %s", actor.UserID)
			}
			if input.ShowtimeID != showtimeID {
				t.Fatalf("unexpected showtime %s", input.ShowtimeID)
			}
			if input.SeatCount != 2 {
				t.Fatalf("unexpected seat count %d", input.SeatCount)
			}
			if input.IdempotencyKey == nil || *input.IdempotencyKey != "key-1" {
				t.Fatalf("expected idempotency key propagated, got %v", input.IdempotencyKey)
			}
			return &models.Reservation{
				ID:         uuid.New(),
				UserID:     actor.UserID,
				ShowtimeID: input.ShowtimeID,
				SeatCount:  input.SeatCount,
				Status:     enums.ReservationStatusConfirmed,
			}, nil
		},
	}

	body := strings.NewReader(`{"showtime_id":"` + showtimeID.String() + `","seat_count":2}`)
	req := authedRequest(http.MethodPost, "/api/v1/reservations", body, userID, enums.RoleCustomer)
	req.Header.Set("Idempotency-Key", "key-1")
	resp := httptest.NewRecorder()
	CreateReservation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data models.Reservation `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != enums.ReservationStatusConfirmed {
		t.Fatalf("expected confirmed reservation, got %s", envelope.Data.Status)
	}
}

func TestCreateReservationRejectsBadBody(t *testing.T) {
	svc := &testCoordinatorService{
		createFn: func(ctx context.Context, actor coordinator.Actor, input coordinator.CreateReservationInput) (*models.Reservation, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	body := strings.NewReader(`{"showtime_id":"not-a-uuid","seat_count":0}`)
	req := authedRequest(http.MethodPost, "/api/v1/reservations", body, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	CreateReservation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateReservationRequiresUserContext(t *testing.T) {
	svc := &testCoordinatorService{}
	body := strings.NewReader(`{"showtime_id":"` + uuid.NewString() + `","seat_count":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", body)
	resp := httptest.NewRecorder()
	CreateReservation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCreateReservationSurfacesCapacityConflict(t *testing.T) {
	svc := &testCoordinatorService{
		createFn: func(ctx context.Context, actor coordinator.Actor, input coordinator.CreateReservationInput) (*models.Reservation, error) {
			return nil, pkgerrors.New(pkgerrors.CodeCapacity, "only 1 seat left").
				WithDetails(map[string]any{"requested": 3, "available": 1})
		},
	}

	body := strings.NewReader(`{"showtime_id":"` + uuid.NewString() + `","seat_count":3}`)
	req := authedRequest(http.MethodPost, "/api/v1/reservations", body, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	CreateReservation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeCapacity) {
		t.Fatalf("expected capacity code got %s", envelope.Error.Code)
	}
}

func TestCancelReservationSuccess(t *testing.T) {
	userID := uuid.New()
	reservationID := uuid.New()
	svc := &testCoordinatorService{
		cancelFn: func(ctx context.Context, actor coordinator.Actor, id uuid.UUID) (*models.Reservation, error) {
			if id != reservationID {
				t.Fatalf("unexpected reservation %s", id)
			}
			return &models.Reservation{ID: id, UserID: actor.UserID, Status: enums.ReservationStatusCancelled}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/reservations/"+reservationID.String()+"/cancel", nil, userID, enums.RoleCustomer)
	req = withReservationParam(req, reservationID)
	resp := httptest.NewRecorder()
	CancelReservation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestReservationDetailInvalidID(t *testing.T) {
	req := authedRequest(http.MethodGet, "/api/v1/reservations/nope", nil, uuid.New(), enums.RoleCustomer)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("reservationId", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	resp := httptest.NewRecorder()
	ReservationDetail(&testCoordinatorService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListReservationsPassesPagination(t *testing.T) {
	userID := uuid.New()
	svc := &testCoordinatorService{
		listUserFn: func(ctx context.Context, actor coordinator.Actor, params pagination.Params) (*coordinator.ReservationPage, error) {
			if params.Limit != 10 {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			if params.Cursor != "abc" {
				t.Fatalf("unexpected cursor %q", params.Cursor)
			}
			return &coordinator.ReservationPage{
				Items:      []models.Reservation{{ID: uuid.New(), UserID: actor.UserID}},
				NextCursor: "def",
			}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/reservations?limit=10&cursor=abc", nil, userID, enums.RoleCustomer)
	resp := httptest.NewRecorder()
	ListReservations(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Reservations []models.Reservation `json:"reservations"`
			NextCursor   string               `json:"next_cursor"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Reservations) != 1 || envelope.Data.NextCursor != "def" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}
