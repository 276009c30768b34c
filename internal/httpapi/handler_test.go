package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"classtrack/internal/attendance"
	"classtrack/internal/config"
	"classtrack/internal/httpapi"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

func newTestRouter(t *testing.T, cfg config.App) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(repo)
	h := httpapi.New(svc, queue.NewInMemory(16), cfg, db, nil)

	r := gin.New()
	h.Register(r)
	return r
}

func testConfig() config.App {
	return config.App{
		JWTIssuer:     "classtrack",
		JWTSigningKey: "test-signing-key",
		AccessTTL:     time.Minute,
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := map[string]any{}
	if ct := w.Header().Get("Content-Type"); strings.Contains(ct, "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v (body %q)", method, path, err, w.Body.String())
		}
	}
	return w, resp
}

func TestLoginEndpoint(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w, resp := doJSON(t, r, http.MethodPost, "/api/login", `{"email":"n.bahajoub@gmail.com","password":"nizar123"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	if resp["status"] != "success" {
		t.Errorf("status field = %v", resp["status"])
	}
	user := resp["user"].(map[string]any)
	if user["role"] != "professor" || user["full_name"] != "Dr. Bahajoub" {
		t.Errorf("unexpected user: %v", user)
	}
	if _, ok := resp["token"].(string); !ok {
		t.Error("expected a token in the login response")
	}

	w, resp = doJSON(t, r, http.MethodPost, "/api/login", `{"email":"n.bahajoub@gmail.com","password":"bad"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d", w.Code)
	}
	if resp["status"] != "error" {
		t.Errorf("status field = %v", resp["status"])
	}
}

func TestGenerateQREndpoint(t *testing.T) {
	r := newTestRouter(t, testConfig())
	body := `{"session_date":"2024-01-10","course_name":"CS101","course_type":"lecture","professor_id":1}`

	w, resp := doJSON(t, r, http.MethodPost, "/api/generate_qr", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	token := resp["qr_code_data"].(string)
	if !strings.Contains(token, "2024-01-10") || !strings.Contains(token, "CS101") {
		t.Errorf("token missing identifying fields: %q", token)
	}
	if id := resp["session_id"].(float64); id < 1 {
		t.Errorf("session_id = %v", id)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/generate_qr", body)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate tuple: status %d, want 409", w.Code)
	}

	varied := `{"session_date":"2024-01-10","course_name":"CS101","course_type":"lab","professor_id":1}`
	w, _ = doJSON(t, r, http.MethodPost, "/api/generate_qr", varied)
	if w.Code != http.StatusOK {
		t.Errorf("varied tuple: status %d, want 200", w.Code)
	}
}

func TestMarkAttendanceEndpoint(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w, _ := doJSON(t, r, http.MethodPost, "/api/mark_attendance", `{"qr_code_data":"bogus","student_id":3}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown token: status %d, want 400", w.Code)
	}

	_, resp := doJSON(t, r, http.MethodPost, "/api/generate_qr",
		`{"session_date":"2024-01-10","course_name":"CS101","course_type":"lecture","professor_id":1}`)
	token := resp["qr_code_data"].(string)
	mark, _ := json.Marshal(map[string]any{"qr_code_data": token, "student_id": 3})

	w, resp = doJSON(t, r, http.MethodPost, "/api/mark_attendance", string(mark))
	if w.Code != http.StatusOK {
		t.Fatalf("mark: status %d, body %s", w.Code, w.Body.String())
	}
	if resp["message"] != "Attendance marked" {
		t.Errorf("message = %v", resp["message"])
	}

	w, resp = doJSON(t, r, http.MethodPost, "/api/mark_attendance", string(mark))
	if w.Code != http.StatusConflict {
		t.Errorf("repeat mark: status %d, want 409", w.Code)
	}
	if resp["message"] != "Already marked" {
		t.Errorf("message = %v", resp["message"])
	}
}

func TestStudentAttendanceEmpty(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w, resp := doJSON(t, r, http.MethodGet, "/api/student_attendance/3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if resp["status"] != "success" {
		t.Errorf("status field = %v", resp["status"])
	}
	list, ok := resp["attendance"].([]any)
	if !ok {
		t.Fatalf("attendance is %T, want JSON array (body %s)", resp["attendance"], w.Body.String())
	}
	if len(list) != 0 {
		t.Errorf("got %d entries, want 0", len(list))
	}
}

func TestProfessorAttendanceZeroMarks(t *testing.T) {
	r := newTestRouter(t, testConfig())

	doJSON(t, r, http.MethodPost, "/api/generate_qr",
		`{"session_date":"2024-01-10","course_name":"CS101","course_type":"lecture","professor_id":1}`)

	w, resp := doJSON(t, r, http.MethodGet, "/api/professor_attendance/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	sessions := resp["sessions"].([]any)
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0].(map[string]any)
	if s["present"].(float64) != 0 || s["total"].(float64) != 0 || s["rate"].(float64) != 0 {
		t.Errorf("zero-attendance session: %v", s)
	}
}

func TestProfileEndpoint(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w, _ := doJSON(t, r, http.MethodGet, "/api/profile/999", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown user: status %d, want 404", w.Code)
	}

	doJSON(t, r, http.MethodPost, "/api/generate_qr",
		`{"session_date":"2024-01-10","course_name":"CS101","course_type":"lecture","professor_id":1}`)

	w, resp := doJSON(t, r, http.MethodGet, "/api/profile/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	stats := resp["stats"].(map[string]any)
	if stats["classes"].(float64) != 1 {
		t.Errorf("classes = %v, want 1", stats["classes"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w, resp := doJSON(t, r, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
	if resp["db"] != true {
		t.Errorf("db = %v, want true", resp["db"])
	}
}

func TestAuthRequired(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRequired = true
	r := newTestRouter(t, cfg)

	body := `{"session_date":"2024-01-10","course_name":"CS101","course_type":"lecture","professor_id":1}`
	w, _ := doJSON(t, r, http.MethodPost, "/api/generate_qr", body)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", w.Code)
	}

	// Login stays open and returns a usable bearer token.
	_, resp := doJSON(t, r, http.MethodPost, "/api/login", `{"email":"n.bahajoub@gmail.com","password":"nizar123"}`)
	token := resp["token"].(string)

	req := httptest.NewRequest(http.MethodPost, "/api/generate_qr", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: status %d, body %s", rec.Code, rec.Body.String())
	}
}
