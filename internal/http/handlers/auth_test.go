package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/identityhub/internal/apperr"
	"github.com/geocoder89/identityhub/internal/domain/user"
	"github.com/geocoder89/identityhub/internal/http/handlers"
	"github.com/geocoder89/identityhub/internal/service"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorResponse struct {
	Error handlers.APIError `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error body: %v body=%s", err, w.Body.String())
	}
	return resp
}

type fakeAuthService struct {
	loginFn    func(ctx context.Context, req user.LoginRequest) (service.LoginResult, error)
	registerFn func(ctx context.Context, req user.RegisterRequest) (user.Public, error)
}

func (f *fakeAuthService) Login(ctx context.Context, req user.LoginRequest) (service.LoginResult, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, req)
	}
	return service.LoginResult{}, nil
}

func (f *fakeAuthService) Register(ctx context.Context, req user.RegisterRequest) (user.Public, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, req)
	}
	return user.Public{}, nil
}

type recordingLoginMetrics struct {
	results []string
}

func (m *recordingLoginMetrics) ObserveLogin(result string) {
	m.results = append(m.results, result)
}

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		loginFn        func(ctx context.Context, req user.LoginRequest) (service.LoginResult, error)
		wantStatusCode int
		wantCode       string
		wantMetric     string
	}{
		{
			name: "success",
			body: `{"email":"sam@example.com","password":"Passw0rdOK"}`,
			loginFn: func(ctx context.Context, req user.LoginRequest) (service.LoginResult, error) {
				return service.LoginResult{
					Token: "signed.token.value",
					User:  user.Public{ID: "u-1", Email: req.Email, Name: "Sam", Role: user.RoleUser},
				}, nil
			},
			wantStatusCode: http.StatusOK,
			wantMetric:     "success",
		},
		{
			name:           "malformed email",
			body:           `{"email":"not-an-email","password":"x"}`,
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "invalid_request",
			wantMetric:     "invalid_input",
		},
		{
			name:           "bad json",
			body:           `{"email":`,
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "invalid_request",
			wantMetric:     "invalid_input",
		},
		{
			name: "invalid credentials",
			body: `{"email":"sam@example.com","password":"wrong"}`,
			loginFn: func(ctx context.Context, req user.LoginRequest) (service.LoginResult, error) {
				return service.LoginResult{}, apperr.InvalidCredentials()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantCode:       "invalid_credentials",
			wantMetric:     "invalid_credentials",
		},
		{
			name: "internal fault is generic",
			body: `{"email":"sam@example.com","password":"x"}`,
			loginFn: func(ctx context.Context, req user.LoginRequest) (service.LoginResult, error) {
				return service.LoginResult{}, errors.New("pq: connection refused to 10.0.0.5")
			},
			wantStatusCode: http.StatusInternalServerError,
			wantCode:       "internal_error",
			wantMetric:     "error",
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingLoginMetrics{}
			h := handlers.NewAuthHandler(&fakeAuthService{loginFn: tt.loginFn}, metrics, nil)
			r := setupRouter(http.MethodPost, "/auth/login", h.Login)

			w := doJSON(r, http.MethodPost, "/auth/login", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if len(metrics.results) != 1 || metrics.results[0] != tt.wantMetric {
				t.Fatalf("got metrics %v, want [%s]", metrics.results, tt.wantMetric)
			}

			if tt.wantCode != "" {
				resp := decodeError(t, w)
				if resp.Error.Code != tt.wantCode {
					t.Fatalf("got code %q, want %q", resp.Error.Code, tt.wantCode)
				}
				if bytes.Contains(w.Body.Bytes(), []byte("10.0.0.5")) {
					t.Fatalf("internal error text leaked: %s", w.Body.String())
				}
				return
			}

			var ok struct {
				Token string      `json:"token"`
				User  user.Public `json:"user"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &ok); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if ok.Token == "" || ok.User.ID != "u-1" {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
			if bytes.Contains(w.Body.Bytes(), []byte("password")) {
				t.Fatalf("response must not carry password material: %s", w.Body.String())
			}
		})
	}
}

func TestRegisterHandler_IgnoresRoleInBody(t *testing.T) {
	var got user.RegisterRequest
	svc := &fakeAuthService{
		registerFn: func(ctx context.Context, req user.RegisterRequest) (user.Public, error) {
			got = req
			return user.Public{ID: "u-2", Email: req.Email, Name: req.Name, Role: user.RoleUser}, nil
		},
	}
	h := handlers.NewAuthHandler(svc, nil, nil)
	r := setupRouter(http.MethodPost, "/auth/register", h.Register)

	w := doJSON(r, http.MethodPost, "/auth/register", `{"email":"eve@example.com","password":"Passw0rdOK","name":"Eve","role":"admin"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	if got.Email != "eve@example.com" || got.Name != "Eve" {
		t.Fatalf("unexpected request passed to service: %+v", got)
	}

	var resp struct {
		User user.Public `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.User.Role != user.RoleUser {
		t.Fatalf("got role %q, want user", resp.User.Role)
	}
}

func TestRegisterHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"conflict", apperr.Conflict("User already exists"), http.StatusConflict},
		{"weak password", apperr.FieldValidation("Weak password", apperr.FieldError{Field: "password", Rule: "digit"}), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{
				registerFn: func(ctx context.Context, req user.RegisterRequest) (user.Public, error) {
					return user.Public{}, tt.err
				},
			}
			h := handlers.NewAuthHandler(svc, nil, nil)
			r := setupRouter(http.MethodPost, "/auth/register", h.Register)

			w := doJSON(r, http.MethodPost, "/auth/register", `{"email":"eve@example.com","password":"Passw0rdOK","name":"Eve"}`)
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}
