package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	mw "github.com/edvin/vdesk/internal/api/middleware"
	"github.com/edvin/vdesk/internal/model"
)

type mockBackupService struct {
	mock.Mock
}

func (m *mockBackupService) Create(ctx context.Context, callerID, instanceID, name string) (*model.Backup, error) {
	args := m.Called(ctx, callerID, instanceID, name)
	b, _ := args.Get(0).(*model.Backup)
	return b, args.Error(1)
}

func (m *mockBackupService) Get(ctx context.Context, callerID, id string) (*model.BackupWithCost, error) {
	args := m.Called(ctx, callerID, id)
	b, _ := args.Get(0).(*model.BackupWithCost)
	return b, args.Error(1)
}

func (m *mockBackupService) List(ctx context.Context, callerID string) ([]model.BackupWithCost, error) {
	args := m.Called(ctx, callerID)
	b, _ := args.Get(0).([]model.BackupWithCost)
	return b, args.Error(1)
}

func (m *mockBackupService) Delete(ctx context.Context, callerID, id string) (*model.Backup, error) {
	args := m.Called(ctx, callerID, id)
	b, _ := args.Get(0).(*model.Backup)
	return b, args.Error(1)
}

type mockCostService struct {
	mock.Mock
}

func (m *mockCostService) Summary(ctx context.Context, ownerID string) (*model.CostSummary, error) {
	args := m.Called(ctx, ownerID)
	s, _ := args.Get(0).(*model.CostSummary)
	return s, args.Error(1)
}

type mockInstanceService struct {
	mock.Mock
}

func (m *mockInstanceService) ListByOwner(ctx context.Context, ownerID string) ([]model.Instance, error) {
	args := m.Called(ctx, ownerID)
	i, _ := args.Get(0).([]model.Instance)
	return i, args.Error(1)
}

func (m *mockInstanceService) ComputeCosts(instances []model.Instance) []model.InstanceCost {
	args := m.Called(instances)
	c, _ := args.Get(0).([]model.InstanceCost)
	return c
}

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// asUser injects an authenticated caller into the request context.
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(mw.WithIdentity(r.Context(), &model.Identity{UserID: userID, Email: userID + "@example.com"}))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}
