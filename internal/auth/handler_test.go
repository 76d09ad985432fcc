package auth_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/akademos/akademos/internal/auth"
	"github.com/akademos/akademos/internal/shared"
	_ "github.com/akademos/akademos/testing"
)

type stubRepo struct {
	account  *auth.Account
	sessions []string
	deleted  []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if s.account == nil || s.account.Email != email {
		return nil, shared.ErrInvalidCredentials
	}
	return s.account, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.sessions = append(s.sessions, id)
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func activeAccount(t *testing.T, email, password, role string) *auth.Account {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.Account{
		ID:           1,
		Email:        email,
		Name:         "Test Teacher",
		Role:         role,
		PasswordHash: string(hashed),
		IsActive:     true,
	}
}

func newAuthStack(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(slog.Default(), auth.NewService(repo), sessionManager, csrfManager)
	return handler, sessionManager
}

func serveWithSession(t *testing.T, handler *auth.Handler, sm *shared.SessionManager, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	r := chi.NewRouter()
	handler.MountRoutes(r)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res, sess
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{account: activeAccount(t, "teacher@school.test", "correcthorse", "teacher")}
	handler, sm := newAuthStack(t, repo)

	body := `{"email":"teacher@school.test","password":"correcthorse"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, sess := serveWithSession(t, handler, sm, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var got struct {
		UserID    int64  `json:"user_id"`
		Role      string `json:"role"`
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.UserID != 1 || got.Role != "teacher" {
		t.Fatalf("unexpected identity in response: %+v", got)
	}
	if got.CSRFToken == "" {
		t.Fatal("expected csrf token in login response")
	}
	if sess.Identity().UserID != 1 {
		t.Fatalf("expected session identity to be set, got %+v", sess.Identity())
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("expected session record to be created, got %d", len(repo.sessions))
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubRepo{account: activeAccount(t, "teacher@school.test", "correcthorse", "teacher")}
	handler, sm := newAuthStack(t, repo)

	body := `{"email":"teacher@school.test","password":"wrongwrong"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	res, sess := serveWithSession(t, handler, sm, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if sess.Identity().Authenticated {
		t.Fatal("session must stay anonymous after failed login")
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	account := activeAccount(t, "teacher@school.test", "correcthorse", "teacher")
	account.IsActive = false
	handler, sm := newAuthStack(t, &stubRepo{account: account})

	body := `{"email":"teacher@school.test","password":"correcthorse"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	res, _ := serveWithSession(t, handler, sm, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	handler, sm := newAuthStack(t, &stubRepo{})

	cases := []struct {
		name string
		body string
	}{
		{"malformed", "{not json"},
		{"missing email", `{"password":"correcthorse"}`},
		{"bad email", `{"email":"not-an-email","password":"correcthorse"}`},
		{"short password", `{"email":"a@b.test","password":"short"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tc.body))
			res, _ := serveWithSession(t, handler, sm, req)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", res.Code)
			}
		})
	}
}

func TestLogoutClearsSession(t *testing.T) {
	repo := &stubRepo{account: activeAccount(t, "teacher@school.test", "correcthorse", "teacher")}
	handler, sm := newAuthStack(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	res, sess := serveWithSession(t, handler, sm, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != sess.ID {
		t.Fatalf("expected session %q to be removed, got %v", sess.ID, repo.deleted)
	}
}

func TestMeAnonymous(t *testing.T) {
	handler, sm := newAuthStack(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	res, _ := serveWithSession(t, handler, sm, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"authenticated":false`) {
		t.Fatalf("expected anonymous identity, got %s", res.Body.String())
	}
}

func TestMeAuthenticated(t *testing.T) {
	handler, sm := newAuthStack(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.SetIdentity(7, "registrar")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	r := chi.NewRouter()
	handler.MountRoutes(r)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	if !strings.Contains(res.Body.String(), `"user_id":7`) || !strings.Contains(res.Body.String(), `"role":"registrar"`) {
		t.Fatalf("unexpected identity payload: %s", res.Body.String())
	}
}
