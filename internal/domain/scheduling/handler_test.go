package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _ := newTestService(1)
	return NewHandler(svc), svc, echo.New()
}

func asUser(req *http.Request, userID int64, role string) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: userID, Role: role}))
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_Create(t *testing.T) {
	h, _, e := newTestHandler()
	req := asUser(jsonRequest(http.MethodPost, "/", `{"doctor_id":1,"date":"2025-03-10","slot_index":3}`), 100, auth.RoleUser)
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var a Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.UserID != 100 || a.SlotIndex != 3 || a.Status != StatusPlanned || a.Date.String() != "2025-03-10" {
		t.Errorf("unexpected appointment: %+v", a)
	}
}

func TestHandler_Create_BadDate(t *testing.T) {
	h, _, e := newTestHandler()
	req := asUser(jsonRequest(http.MethodPost, "/", `{"doctor_id":1,"date":"tomorrow","slot_index":3}`), 100, auth.RoleUser)

	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Create_SlotOutOfRange(t *testing.T) {
	h, _, e := newTestHandler()
	req := asUser(jsonRequest(http.MethodPost, "/", `{"doctor_id":1,"date":"2025-03-10","slot_index":24}`), 100, auth.RoleUser)

	if err := h.Create(e.NewContext(req, httptest.NewRecorder())); !errors.Is(err, apperr.ErrInvalidSlot) {
		t.Errorf("expected invalid slot, got %v", err)
	}
}

func TestHandler_ChangeStatus(t *testing.T) {
	h, svc, e := newTestHandler()
	a, err := svc.Create(asUser(httptest.NewRequest(http.MethodPost, "/", nil), 100, auth.RoleUser).Context(), 100, booking(1, 3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPatch, "/", `{"status":"FINISHED"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(a.ID, 10))

	if err := h.ChangeStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != StatusFinished {
		t.Errorf("expected FINISHED, got %s", got.Status)
	}

	c = e.NewContext(jsonRequest(http.MethodPatch, "/", `{"status":"FINISHED"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(a.ID, 10))
	if err := h.ChangeStatus(c); !errors.Is(err, apperr.ErrInvalidStatusTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestHandler_Cancel_OtherUser(t *testing.T) {
	h, svc, e := newTestHandler()
	req := asUser(httptest.NewRequest(http.MethodPatch, "/", nil), 200, auth.RoleUser)
	a, err := svc.Create(req.Context(), 100, booking(1, 3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(a.ID, 10))
	if err := h.Cancel(c); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestHandler_ListMine(t *testing.T) {
	h, svc, e := newTestHandler()
	req := asUser(httptest.NewRequest(http.MethodGet, "/", nil), 100, auth.RoleUser)
	if _, err := svc.Create(req.Context(), 100, booking(1, 3)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(req.Context(), 200, booking(1, 4)); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := h.ListMine(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].UserID != 100 {
		t.Errorf("expected only own appointments, got %+v", items)
	}
}

func TestHandler_List_Filters(t *testing.T) {
	h, svc, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?doctor_id=1&slot_index=4&status=PLANNED&date=2025-03-10", nil)
	if _, err := svc.Create(req.Context(), 100, booking(1, 3)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(req.Context(), 200, booking(1, 4)); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].UserID != 200 {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestHandler_List_InvalidQuery(t *testing.T) {
	h, _, e := newTestHandler()
	for _, q := range []string{"?user_id=abc", "?date=03/10/2025", "?slot_index=x"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+q, nil), httptest.NewRecorder())
		err := h.List(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %v", q, err)
		}
	}

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?status=DONE", nil), httptest.NewRecorder())
	if err := h.List(c); !errors.Is(err, apperr.ErrInvalidStatus) {
		t.Errorf("expected invalid status, got %v", err)
	}
}

func TestHandler_DaySchedule(t *testing.T) {
	h, svc, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?date=2025-03-10", nil)
	if _, err := svc.Create(req.Context(), 100, booking(1, 2)); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.DaySchedule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var slots []SlotAvailability
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(slots) != SlotsPerDay || slots[2].Available || !slots[3].Available {
		t.Errorf("unexpected schedule: %+v", slots)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")
	err := h.DaySchedule(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without date, got %v", err)
	}
}
