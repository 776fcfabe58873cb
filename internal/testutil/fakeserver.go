// Package testutil provides testing utilities.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tasklist/internal/service"
)

// jwtSecret signs the fake server's tokens. Clients never verify signatures.
var jwtSecret = []byte("tasklist-test-secret")

// naiveLayout is how the server serializes datetimes: no zone offset.
const naiveLayout = "2006-01-02T15:04:05.000000"

// MakeJWT returns an HS256 JWT with the given subject and expiry.
func MakeJWT(t testing.TB, sub string, exp time.Time) string {
	t.Helper()
	tok, err := signToken(sub, exp, "")
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tok
}

func signToken(sub string, exp time.Time, id string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ID:        id,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// FakeServer is an in-memory implementation of the task-list REST API for
// testing. Routes live under /api like the real server.
type FakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]string // email -> password
	access   map[string]string // access token -> email
	refresh  map[string]string // refresh token -> email
	tasks    map[string][]service.Task
	calls    map[string]int
	failures map[string]int // route pattern -> status
	seq      int
	now      time.Time

	omitTokens    bool
	verifyInvalid bool
}

// NewFakeServer starts a fake server that is closed when the test ends.
func NewFakeServer(t testing.TB) *FakeServer {
	t.Helper()
	f := &FakeServer{
		users:    make(map[string]string),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		tasks:    make(map[string][]service.Task),
		calls:    make(map[string]int),
		failures: make(map[string]int),
		now:      time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	f.handle(mux, "POST /api/auth/register", f.register)
	f.handle(mux, "POST /api/auth/login", f.login)
	f.handle(mux, "POST /api/auth/refresh", f.refreshToken)
	f.handle(mux, "POST /api/auth/verify-token", f.authed(f.verify))
	f.handle(mux, "GET /api/auth/profile", f.authed(f.profile))
	f.handle(mux, "GET /api/tasks/{$}", f.authed(f.listTasks))
	f.handle(mux, "POST /api/tasks/{$}", f.authed(f.createTask))
	f.handle(mux, "PUT /api/tasks/{id}", f.authed(f.updateTask))
	f.handle(mux, "DELETE /api/tasks/{id}", f.authed(f.deleteTask))
	f.handle(mux, "PATCH /api/tasks/{id}/toggle", f.authed(f.toggleTask))

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL returns the API base URL of the fake server.
func (f *FakeServer) BaseURL() string {
	return f.URL + "/api"
}

// AddUser registers an account.
func (f *FakeServer) AddUser(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = password
}

// AddTask adds a task for a user.
func (f *FakeServer) AddTask(email, id, text string, completed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[email] = append(f.tasks[email], service.Task{
		ID:        id,
		Text:      text,
		Completed: completed,
		CreatedAt: service.Timestamp{Time: f.now},
	})
}

// Tasks returns a copy of a user's tasks.
func (f *FakeServer) Tasks(email string) []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]service.Task, len(f.tasks[email]))
	copy(out, f.tasks[email])
	return out
}

// Calls returns how often a route pattern was hit, e.g. "POST /api/auth/refresh".
func (f *FakeServer) Calls(pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pattern]
}

// Fail makes a route pattern answer with status and a detail message.
// A status of 0 removes the failure.
func (f *FakeServer) Fail(pattern string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, pattern)
		return
	}
	f.failures[pattern] = status
}

// SetOmitTokens makes register and login answer without tokens.
func (f *FakeServer) SetOmitTokens(omit bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omitTokens = omit
}

// SetVerifyInvalid makes /auth/verify-token answer {"valid": false}.
func (f *FakeServer) SetVerifyInvalid(invalid bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyInvalid = invalid
}

// IssueTokens creates a token pair for email as a login would.
func (f *FakeServer) IssueTokens(email string) (access, refresh string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueLocked(email)
}

// ExpireAccessTokens invalidates every access token. Refresh tokens keep working.
func (f *FakeServer) ExpireAccessTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = make(map[string]string)
}

// RevokeRefreshTokens invalidates every refresh token.
func (f *FakeServer) RevokeRefreshTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh = make(map[string]string)
}

func (f *FakeServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[pattern]++
		status, failing := f.failures[pattern]
		f.mu.Unlock()

		if failing {
			writeDetail(w, status, fmt.Sprintf("injected failure %d", status))
			return
		}
		h(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, email string)

// authed rejects requests without a valid bearer token: 403 when the header
// is missing, 401 when the token is unknown.
func (f *FakeServer) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeDetail(w, http.StatusForbidden, "Not authenticated")
			return
		}
		f.mu.Lock()
		email, ok := f.access[token]
		f.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		h(w, r, email)
	}
}

func (f *FakeServer) issueLocked(email string) (string, string) {
	f.seq++
	access, err := signToken(email, f.now.Add(30*time.Minute), fmt.Sprintf("a%d", f.seq))
	if err != nil {
		panic(err)
	}
	refresh := fmt.Sprintf("refresh-%d", f.seq)
	f.access[access] = email
	f.refresh[refresh] = email
	return access, refresh
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (f *FakeServer) register(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[body.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	f.users[body.Email] = body.Password
	f.writeTokensLocked(w, http.StatusCreated, body.Email)
}

func (f *FakeServer) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.users[body.Email]; !ok || pw != body.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	f.writeTokensLocked(w, http.StatusOK, body.Email)
}

func (f *FakeServer) writeTokensLocked(w http.ResponseWriter, status int, email string) {
	if f.omitTokens {
		writeJSON(w, status, map[string]string{"token_type": "bearer"})
		return
	}
	access, refresh := f.issueLocked(email)
	writeJSON(w, status, map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

func (f *FakeServer) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.refresh[body.RefreshToken]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	f.seq++
	access, err := signToken(email, f.now.Add(30*time.Minute), fmt.Sprintf("a%d", f.seq))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	f.access[access] = email
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access, "token_type": "bearer"})
}

func (f *FakeServer) verify(w http.ResponseWriter, r *http.Request, email string) {
	f.mu.Lock()
	invalid := f.verifyInvalid
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"valid": !invalid, "email": email})
}

func (f *FakeServer) profile(w http.ResponseWriter, r *http.Request, email string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         "user-" + email,
		"email":      email,
		"created_at": f.now.Format(naiveLayout),
	})
}

func (f *FakeServer) listTasks(w http.ResponseWriter, r *http.Request, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.tasks[email]))
	for _, t := range f.tasks[email] {
		out = append(out, taskJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeServer) createTask(w http.ResponseWriter, r *http.Request, email string) {
	var body service.NewTask
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "text is required")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	task := service.Task{
		ID:        fmt.Sprintf("%d", f.seq),
		Text:      body.Text,
		Completed: body.Completed,
		CreatedAt: service.Timestamp{Time: f.now},
	}
	f.tasks[email] = append(f.tasks[email], task)
	writeJSON(w, http.StatusOK, taskJSON(task))
}

func (f *FakeServer) updateTask(w http.ResponseWriter, r *http.Request, email string) {
	var upd service.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	f.mutateTask(w, email, r.PathValue("id"), func(t *service.Task) {
		if upd.Text != nil {
			t.Text = *upd.Text
		}
		if upd.Completed != nil {
			t.Completed = *upd.Completed
		}
	})
}

func (f *FakeServer) toggleTask(w http.ResponseWriter, r *http.Request, email string) {
	f.mutateTask(w, email, r.PathValue("id"), func(t *service.Task) {
		t.Completed = !t.Completed
	})
}

func (f *FakeServer) mutateTask(w http.ResponseWriter, email, id string, mutate func(*service.Task)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks[email] {
		t := &f.tasks[email][i]
		if t.ID != id {
			continue
		}
		mutate(t)
		t.UpdatedAt = service.Timestamp{Time: f.now.Add(time.Minute)}
		writeJSON(w, http.StatusOK, taskJSON(*t))
		return
	}
	writeDetail(w, http.StatusNotFound, "Task not found")
}

func (f *FakeServer) deleteTask(w http.ResponseWriter, r *http.Request, email string) {
	id := r.PathValue("id")

	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.tasks[email]
	for i, t := range list {
		if t.ID == id {
			f.tasks[email] = append(list[:i], list[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Task not found")
}

// taskJSON renders a task the way the server does, with zone-less datetimes.
func taskJSON(t service.Task) map[string]any {
	out := map[string]any{
		"id":         t.ID,
		"text":       t.Text,
		"completed":  t.Completed,
		"created_at": t.CreatedAt.Format(naiveLayout),
		"updated_at": nil,
	}
	if !t.UpdatedAt.IsZero() {
		out["updated_at"] = t.UpdatedAt.Format(naiveLayout)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
