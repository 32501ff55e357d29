package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// mockEngine implements core.Engine for testing.
type mockEngine struct {
	registerFunc       func(ctx context.Context, pairingID string, reportTime time.Time) (*core.Plan, error)
	planFunc           func(ctx context.Context, pairingID string, reportTime time.Time) (*core.Plan, error)
	acknowledgeFunc    func(ctx context.Context, pairingID string, reportTime, at time.Time) (*core.AckResult, error)
	summariesFunc      func(ctx context.Context, now time.Time) ([]core.PairingSummary, error)
	policyFunc         func(ctx context.Context) (*core.Policy, error)
	savePolicyFunc     func(ctx context.Context, p *core.Policy) error
	registerDeviceFunc func(ctx context.Context, token string) error
	healthFunc         func(ctx context.Context) (*core.HealthResponse, error)
}

func (m *mockEngine) Register(ctx context.Context, pairingID string, reportTime time.Time) (*core.Plan, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, pairingID, reportTime)
	}
	plan := core.BuildPlan(core.PairingKey{PairingID: pairingID, ReportTime: reportTime}, core.DefaultPolicy())
	return &plan, nil
}

func (m *mockEngine) Plan(ctx context.Context, pairingID string, reportTime time.Time) (*core.Plan, error) {
	if m.planFunc != nil {
		return m.planFunc(ctx, pairingID, reportTime)
	}
	return nil, core.NewNotFoundError("Plan", pairingID)
}

func (m *mockEngine) Acknowledge(ctx context.Context, pairingID string, reportTime, at time.Time) (*core.AckResult, error) {
	if m.acknowledgeFunc != nil {
		return m.acknowledgeFunc(ctx, pairingID, reportTime, at)
	}
	return &core.AckResult{OK: true, Acknowledged: true, AckTime: at}, nil
}

func (m *mockEngine) Summaries(ctx context.Context, now time.Time) ([]core.PairingSummary, error) {
	if m.summariesFunc != nil {
		return m.summariesFunc(ctx, now)
	}
	return []core.PairingSummary{}, nil
}

func (m *mockEngine) Policy(ctx context.Context) (*core.Policy, error) {
	if m.policyFunc != nil {
		return m.policyFunc(ctx)
	}
	p := core.DefaultPolicy()
	return &p, nil
}

func (m *mockEngine) SavePolicy(ctx context.Context, p *core.Policy) error {
	if m.savePolicyFunc != nil {
		return m.savePolicyFunc(ctx, p)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return nil
}

func (m *mockEngine) RegisterDevice(ctx context.Context, token string) error {
	if m.registerDeviceFunc != nil {
		return m.registerDeviceFunc(ctx, token)
	}
	return nil
}

func (m *mockEngine) Health(ctx context.Context) (*core.HealthResponse, error) {
	if m.healthFunc != nil {
		return m.healthFunc(ctx)
	}
	return &core.HealthResponse{
		Status:  "ok",
		Version: core.Version,
		Backend: core.BackendHealth{Type: "nats", Status: "connected"},
	}, nil
}

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

func testClock(t *testing.T) stubClock {
	t.Helper()
	now, err := core.ParseTime("2024-01-10T04:30:00Z")
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	return stubClock{now: now}
}

func withPairingID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("pairingID", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// --- Acknowledge ---

func TestAcknowledge_Success(t *testing.T) {
	clock := testClock(t)
	h := NewHandler(&mockEngine{}, clock)

	body := `{"pairing_id":"W3086","report_time":"2024-01-10T06:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/acknowledge", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Acknowledge(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp core.AckResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.OK || !resp.Acknowledged {
		t.Errorf("resp = %+v, want ok and acknowledged", resp)
	}
	if !resp.AckTime.Equal(clock.now) {
		t.Errorf("ack_time = %v, want clock instant %v", resp.AckTime, clock.now)
	}
}

func TestAcknowledge_RepeatKeepsOriginalInstant(t *testing.T) {
	original, _ := core.ParseTime("2024-01-10T04:00:00Z")
	engine := &mockEngine{
		acknowledgeFunc: func(ctx context.Context, pairingID string, reportTime, at time.Time) (*core.AckResult, error) {
			return &core.AckResult{OK: true, Acknowledged: true, AckTime: original}, nil
		},
	}
	h := NewHandler(engine, testClock(t))

	body := `{"pairing_id":"W3086","report_time":"2024-01-10T06:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/acknowledge", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Acknowledge(w, req)

	var resp core.AckResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.AckTime.Equal(original) {
		t.Errorf("ack_time = %v, want original %v", resp.AckTime, original)
	}
}

func TestAcknowledge_MissingPairingID(t *testing.T) {
	h := NewHandler(&mockEngine{}, testClock(t))

	body := `{"report_time":"2024-01-10T06:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/acknowledge", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Acknowledge(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAcknowledge_BadReportTime(t *testing.T) {
	h := NewHandler(&mockEngine{}, testClock(t))

	body := `{"pairing_id":"W3086","report_time":"tomorrow-ish"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/acknowledge", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Acknowledge(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Error.Code != core.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", resp.Error.Code, core.ErrCodeInvalidRequest)
	}
}

func TestAcknowledge_InvalidJSON(t *testing.T) {
	h := NewHandler(&mockEngine{}, testClock(t))

	req := httptest.NewRequest(http.MethodPost, "/v1/acknowledge", bytes.NewBufferString("{invalid"))
	w := httptest.NewRecorder()

	h.Acknowledge(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAcknowledge_UnknownKey(t *testing.T) {
	engine := &mockEngine{
		acknowledgeFunc: func(ctx context.Context, pairingID string, reportTime, at time.Time) (*core.AckResult, error) {
			return nil, core.NewNotFoundError("Pairing", pairingID)
		},
	}
	h := NewHandler(engine, testClock(t))

	body := `{"pairing_id":"nope","report_time":"2024-01-10T06:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/acknowledge", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Acknowledge(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- Plan ---

func TestGetPlan_Found(t *testing.T) {
	engine := &mockEngine{
		planFunc: func(ctx context.Context, pairingID string, reportTime time.Time) (*core.Plan, error) {
			plan := core.BuildPlan(core.PairingKey{PairingID: pairingID, ReportTime: reportTime}, core.DefaultPolicy())
			return &plan, nil
		},
	}
	h := NewHandler(engine, testClock(t))

	req := httptest.NewRequest(http.MethodGet,
		"/v1/pairings/W3086/plan?report_time=2024-01-10T06:00:00Z", nil)
	req = withPairingID(req, "W3086")
	w := httptest.NewRecorder()

	h.GetPlan(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var plan core.Plan
	if err := json.Unmarshal(w.Body.Bytes(), &plan); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if plan.Key.PairingID != "W3086" {
		t.Errorf("pairing_id = %q, want W3086", plan.Key.PairingID)
	}
	if len(plan.Attempts) == 0 {
		t.Error("expected attempts in plan")
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	h := NewHandler(&mockEngine{}, testClock(t))

	req := httptest.NewRequest(http.MethodGet,
		"/v1/pairings/nonexistent/plan?report_time=2024-01-10T06:00:00Z", nil)
	req = withPairingID(req, "nonexistent")
	w := httptest.NewRecorder()

	h.GetPlan(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetPlan_MissingReportTime(t *testing.T) {
	h := NewHandler(&mockEngine{}, testClock(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/pairings/W3086/plan", nil)
	req = withPairingID(req, "W3086")
	w := httptest.NewRecorder()

	h.GetPlan(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- Pairings ---

func TestListPairings(t *testing.T) {
	report, _ := core.ParseTime("2024-01-10T06:00:00Z")
	engine := &mockEngine{
		summariesFunc: func(ctx context.Context, now time.Time) ([]core.PairingSummary, error) {
			return []core.PairingSummary{
				{PairingID: "W3086", ReportTime: report, WindowOpen: true, WindowState: core.WindowOpen},
			}, nil
		},
	}
	h := NewHandler(engine, testClock(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/pairings", nil)
	w := httptest.NewRecorder()

	h.ListPairings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Pairings []core.PairingSummary `json:"pairings"`
		Count    int                   `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Count != 1 || len(resp.Pairings) != 1 {
		t.Fatalf("count = %d, pairings = %d, want 1 each", resp.Count, len(resp.Pairings))
	}
	if resp.Pairings[0].WindowState != core.WindowOpen {
		t.Errorf("window_state = %q, want open", resp.Pairings[0].WindowState)
	}
}

// --- Policy ---

func TestGetPolicy_Defaults(t *testing.T) {
	h := NewHandler(&mockEngine{}, testClock(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/policy", nil)
	w := httptest.NewRecorder()

	h.GetPolicy(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var policy core.Policy
	if err := json.Unmarshal(w.Body.Bytes(), &policy); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if policy.WindowOpenHours != 12 {
		t.Errorf("window_open_hours = %v, want 12", policy.WindowOpenHours)
	}
}

func TestPutPolicy_Valid(t *testing.T) {
	var saved *core.Policy
	engine := &mockEngine{
		savePolicyFunc: func(ctx context.Context, p *core.Policy) error {
			if err := p.Validate(); err != nil {
				return err
			}
			saved = p
			return nil
		},
	}
	h := NewHandler(engine, testClock(t))

	body := `{"window_open_hours":10,"second_push_at_hours":3,"call_start_hours":1,"call_interval_minutes":15,"rings_per_attempt":1}`
	req := httptest.NewRequest(http.MethodPut, "/v1/policy", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.PutPolicy(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if saved == nil || saved.WindowOpenHours != 10 {
		t.Errorf("saved policy = %+v, want window_open_hours 10", saved)
	}
}

func TestPutPolicy_OutOfOrderThresholds(t *testing.T) {
	h := NewHandler(&mockEngine{}, testClock(t))

	// second push earlier than window open
	body := `{"window_open_hours":2,"second_push_at_hours":4,"call_start_hours":1,"call_interval_minutes":15,"rings_per_attempt":1}`
	req := httptest.NewRequest(http.MethodPut, "/v1/policy", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.PutPolicy(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Error.Code != core.ErrCodeInvalidPolicy {
		t.Errorf("code = %q, want %q", resp.Error.Code, core.ErrCodeInvalidPolicy)
	}
}

// --- Devices ---

func TestRegisterDevice_Success(t *testing.T) {
	var gotToken string
	engine := &mockEngine{
		registerDeviceFunc: func(ctx context.Context, token string) error {
			gotToken = token
			return nil
		},
	}
	h := NewHandler(engine, testClock(t))

	body := `{"token":"apns-device-token-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/devices", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.RegisterDevice(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotToken != "apns-device-token-1" {
		t.Errorf("token = %q, want apns-device-token-1", gotToken)
	}
}

func TestRegisterDevice_MissingToken(t *testing.T) {
	h := NewHandler(&mockEngine{}, testClock(t))

	req := httptest.NewRequest(http.MethodPost, "/v1/devices", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	h.RegisterDevice(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- Health ---

func TestHealth_OK(t *testing.T) {
	h := NewHandler(&mockEngine{}, testClock(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()

	h.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp core.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Version != core.Version {
		t.Errorf("version = %q, want %q", resp.Version, core.Version)
	}
}

func TestHealth_Degraded(t *testing.T) {
	engine := &mockEngine{
		healthFunc: func(ctx context.Context) (*core.HealthResponse, error) {
			return &core.HealthResponse{
				Status:  "degraded",
				Version: core.Version,
				Backend: core.BackendHealth{Type: "nats", Status: "disconnected"},
			}, nil
		},
	}
	h := NewHandler(engine, testClock(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()

	h.Health(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
