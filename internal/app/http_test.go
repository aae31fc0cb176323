package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"johari/api/internal/auth"
	"johari/api/internal/store"
)

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func issueTestToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  userID,
		Name: "Pat",
		JTI:  "jti_test",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestIssuedTokenCreatesSession(t *testing.T) {
	dataStore := &fakeStore{
		getUserByIDFn: func(ctx context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Pat"}, nil
		},
	}
	svc := newTestService(dataStore, newMemoryCache(), nil)

	session, err := svc.SessionFromToken(context.Background(), issueTestToken(t, "usr_p1"))
	if err != nil {
		t.Fatalf("SessionFromToken rejected a freshly issued token: %v", err)
	}
	if session.UserID != "usr_p1" {
		t.Errorf("UserID = %s, want usr_p1", session.UserID)
	}
}

func TestHealthEndpoint(t *testing.T) {
	svc := newTestService(&fakeStore{}, newMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	recorder := doRequest(t, handler, http.MethodGet, "/api/health", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if payload := decodeResponse(t, recorder); payload["ok"] != true {
		t.Errorf("payload = %v, want ok=true", payload)
	}
}

func TestCreateAssessmentAnonymous(t *testing.T) {
	svc := newTestService(&fakeStore{}, newMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	recorder := doRequest(t, handler, http.MethodPost, "/api/assessments", map[string]any{
		"adjectives": selfSix,
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	if payload["assessmentId"] == "" || payload["shareToken"] == "" {
		t.Errorf("payload = %v, want assessmentId and shareToken", payload)
	}
}

func TestCreateAssessmentValidationStatus(t *testing.T) {
	svc := newTestService(&fakeStore{}, newMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	recorder := doRequest(t, handler, http.MethodPost, "/api/assessments", map[string]any{
		"adjectives": []string{"witty"},
	}, nil)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", recorder.Code)
	}
	if payload := decodeResponse(t, recorder); payload["code"] != "VALIDATION_ERROR" {
		t.Errorf("code = %v, want VALIDATION_ERROR", payload["code"])
	}
}

func TestSubmitFeedbackRequiresSession(t *testing.T) {
	svc := newTestService(&fakeStore{}, newMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	recorder := doRequest(t, handler, http.MethodPost, "/api/links/sometoken/feedback", map[string]any{
		"adjectives": selfSix,
	}, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestSubmitFeedbackAuthenticated(t *testing.T) {
	dataStore := &fakeStore{
		getUserByIDFn: func(ctx context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Pat"}, nil
		},
		getLinkByTokenHashFn: func(ctx context.Context, tokenHash string) (store.PeerLink, error) {
			return linkFixture(time.Now().Add(time.Hour)), nil
		},
		insertPeerFeedbackFn: func(ctx context.Context, feedback store.PeerFeedback) (int, error) {
			return 1, nil
		},
	}
	svc := newTestService(dataStore, newMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	recorder := doRequest(t, handler, http.MethodPost, "/api/links/sometoken/feedback", map[string]any{
		"adjectives": selfSix,
	}, map[string]string{"Authorization": "Bearer " + issueTestToken(t, "usr_p1")})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	if payload["acceptedCount"] != float64(1) {
		t.Errorf("acceptedCount = %v, want 1", payload["acceptedCount"])
	}
}

func TestLinkStatusUnknownToken(t *testing.T) {
	svc := newTestService(&fakeStore{}, newMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	recorder := doRequest(t, handler, http.MethodGet, "/api/links/unknown/status", nil, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
	if payload := decodeResponse(t, recorder); payload["code"] != "LINK_EXPIRED_OR_INVALID" {
		t.Errorf("code = %v, want LINK_EXPIRED_OR_INVALID", payload["code"])
	}
}

func TestResultInsufficientData(t *testing.T) {
	dataStore := &fakeStore{
		feedbackCountFn: func(ctx context.Context, assessmentID string) (int, error) {
			return 0, nil
		},
	}
	svc := newTestService(dataStore, newMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	recorder := doRequest(t, handler, http.MethodGet, "/api/assessments/asm_1/result", nil, nil)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["code"] != "INSUFFICIENT_PEER_DATA" {
		t.Errorf("code = %v, want INSUFFICIENT_PEER_DATA", payload["code"])
	}
	details, _ := payload["details"].(map[string]any)
	if details["required"] != float64(2) {
		t.Errorf("details = %v, want required=2", details)
	}
}

func TestAdminCleanupGuarded(t *testing.T) {
	dataStore := &fakeStore{
		listExpiredFn: func(ctx context.Context, cutoff time.Time) ([]string, error) {
			return []string{"asm_old"}, nil
		},
	}
	svc := newTestService(dataStore, newMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	recorder := doRequest(t, handler, http.MethodPost, "/api/admin/cleanup", nil, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", recorder.Code)
	}

	recorder = doRequest(t, handler, http.MethodPost, "/api/admin/cleanup", nil, map[string]string{
		"x-johari-sweep-token": "test-sweep",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}
	if payload := decodeResponse(t, recorder); payload["deleted"] != float64(1) {
		t.Errorf("deleted = %v, want 1", payload["deleted"])
	}
}

func TestSessionEndpointUnauthenticated(t *testing.T) {
	svc := newTestService(&fakeStore{}, newMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	recorder := doRequest(t, handler, http.MethodGet, "/api/session", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if payload := decodeResponse(t, recorder); payload["authenticated"] != false {
		t.Errorf("payload = %v, want authenticated=false", payload)
	}
}
