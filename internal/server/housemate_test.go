package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	housematedomain "github.com/hearthshare/hearth/internal/housemate/domain"
)

type fakeHousemateService struct {
	createCalls int
	lastInput   housematedomain.CreateHousemateInput
	createErr   error
	housemate   housematedomain.Housemate
}

func (f *fakeHousemateService) Create(ctx context.Context, input housematedomain.CreateHousemateInput) (housematedomain.Housemate, error) {
	f.createCalls++
	f.lastInput = input
	_ = ctx
	if f.createErr != nil {
		return housematedomain.Housemate{}, f.createErr
	}
	return f.housemate, nil
}

func (f *fakeHousemateService) Get(ctx context.Context, id snowflake.ID) (housematedomain.Housemate, error) {
	_ = ctx
	if id != f.housemate.ID {
		return housematedomain.Housemate{}, housematedomain.ErrHousemateNotFound
	}
	return f.housemate, nil
}

func (f *fakeHousemateService) GetByAccount(ctx context.Context, accountID snowflake.ID) (housematedomain.Housemate, error) {
	_ = ctx
	_ = accountID
	return f.housemate, nil
}

func (f *fakeHousemateService) List(ctx context.Context, activeOnly bool) ([]housematedomain.Housemate, error) {
	_ = ctx
	_ = activeOnly
	return []housematedomain.Housemate{f.housemate}, nil
}

func (f *fakeHousemateService) Deactivate(ctx context.Context, id snowflake.ID) error {
	_ = ctx
	if id != f.housemate.ID {
		return housematedomain.ErrHousemateNotFound
	}
	return nil
}

func newHousemateRouter(svc housematedomain.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)

	srv := &Server{hmSvc: svc}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/housemates", srv.CreateHousemate)
	router.GET("/housemates/:id", srv.GetHousemate)
	router.POST("/housemates/:id/deactivate", srv.DeactivateHousemate)
	return router
}

func TestCreateHousemateHandler(t *testing.T) {
	svc := &fakeHousemateService{
		housemate: housematedomain.Housemate{ID: snowflake.ID(1), Name: "Alice", Email: "alice@example.com"},
	}
	router := newHousemateRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/housemates", bytes.NewBufferString(`{"name":"  Alice ","email":"alice@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.createCalls != 1 {
		t.Fatalf("expected 1 create call, got %d", svc.createCalls)
	}
	if svc.lastInput.Name != "Alice" {
		t.Fatalf("expected trimmed name, got %q", svc.lastInput.Name)
	}

	var body struct {
		Data housematedomain.Housemate `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", body.Data.Email)
	}
}

func TestCreateHousemateHandlerValidationError(t *testing.T) {
	svc := &fakeHousemateService{createErr: housematedomain.ErrEmailRequired}
	router := newHousemateRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/housemates", bytes.NewBufferString(`{"name":"Alice"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCreateHousemateHandlerDuplicateEmail(t *testing.T) {
	svc := &fakeHousemateService{createErr: housematedomain.ErrDuplicateEmail}
	router := newHousemateRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/housemates", bytes.NewBufferString(`{"name":"Alice","email":"alice@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}

	var body errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error.Type != "conflict" {
		t.Fatalf("unexpected error type %q", body.Error.Type)
	}
}

func TestGetHousemateHandlerNotFound(t *testing.T) {
	svc := &fakeHousemateService{housemate: housematedomain.Housemate{ID: snowflake.ID(1)}}
	router := newHousemateRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/housemates/999", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestGetHousemateHandlerBadID(t *testing.T) {
	svc := &fakeHousemateService{}
	router := newHousemateRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/housemates/not-a-number", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}
