package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clinic-deploy/internal/stub"
)

var testCreds = Credentials{Email: "admin@clinicafisio.com.br", Password: "AdminTeste123!"}

func setupStubServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	api, err := stub.NewAPI(context.Background(), db, stub.Options{
		AdminEmail:    testCreds.Email,
		AdminPassword: testCreds.Password,
		BcryptCost:    bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("failed to build stub api: %v", err)
	}

	srv := httptest.NewServer(api)
	t.Cleanup(func() {
		srv.Close()
		sqlDB.Close()
	})
	return srv
}

func TestRunner_AllScenariosPassAgainstStub(t *testing.T) {
	srv := setupStubServer(t)
	runner := NewRunner(Env{BaseURL: srv.URL, Timeout: 10 * time.Second, Creds: testCreds})

	report := runner.Run(context.Background())

	if len(report.Results) != len(Scenarios()) {
		t.Fatalf("want %d results, got %d", len(Scenarios()), len(report.Results))
	}
	for _, res := range report.Results {
		if !res.Passed() {
			t.Errorf("scenario %s failed: %v (cleanup: %v)", res.Name, res.Err, res.CleanupErr)
		}
	}
	if !report.Passed() {
		t.Error("report should pass")
	}
}

func TestRunner_SelectedScenarios(t *testing.T) {
	srv := setupStubServer(t)
	runner := NewRunner(Env{BaseURL: srv.URL, Timeout: 10 * time.Second, Creds: testCreds})

	report := runner.Run(context.Background(), "auth-login", "no-such-scenario")

	if len(report.Results) != 2 {
		t.Fatalf("want 2 results, got %d", len(report.Results))
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Name != "no-such-scenario" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	if !errors.Is(failed[0].Err, ErrUnknownScenario) {
		t.Errorf("want ErrUnknownScenario, got %v", failed[0].Err)
	}
}

func TestRunner_WrongPasswordFailsWithAssertion(t *testing.T) {
	srv := setupStubServer(t)
	creds := Credentials{Email: testCreds.Email, Password: "not-the-password"}
	runner := NewRunner(Env{BaseURL: srv.URL, Timeout: 10 * time.Second, Creds: creds})

	report := runner.Run(context.Background(), "auth-profile")

	if report.Passed() {
		t.Fatal("report should fail")
	}
	if !IsAssertion(report.Results[0].Err) {
		t.Errorf("want assertion failure, got %v", report.Results[0].Err)
	}
}

// TestRunner_CleanupRunsAfterFailure は途中のアサーション失敗後もクリーンアップが実行されることを確認する。
func TestRunner_CleanupRunsAfterFailure(t *testing.T) {
	var (
		mu      sync.Mutex
		deleted []string
		creates int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/patients", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		creates++
		mu.Unlock()
		// 不正なCPFでも201を返す壊れたAPI
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"p-1"}`))
	})
	mux.HandleFunc("DELETE /api/patients/{id}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		deleted = append(deleted, r.PathValue("id"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"p-1","active":false}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	runner := NewRunner(Env{BaseURL: srv.URL, Timeout: 5 * time.Second, Creds: testCreds})
	report := runner.Run(context.Background(), "patients-create")

	res := report.Results[0]
	if res.Passed() {
		t.Fatal("scenario should fail against a broken api")
	}
	if !IsAssertion(res.Err) {
		t.Errorf("want assertion failure, got %v", res.Err)
	}
	if res.CleanupErr != nil {
		t.Errorf("cleanup should succeed, got %v", res.CleanupErr)
	}

	mu.Lock()
	defer mu.Unlock()
	if creates != 2 {
		t.Errorf("scenario should stop after the failed assertion, got %d creates", creates)
	}
	if len(deleted) != 1 || deleted[0] != "p-1" {
		t.Errorf("created patient should be archived, got %v", deleted)
	}
}

func TestRunner_CleanupRunsAfterPanic(t *testing.T) {
	var cleaned []string
	s := Scenario{
		Name: "panicking",
		Run: func(ctx context.Context, c *Case) error {
			c.Defer("first", func(ctx context.Context) error {
				cleaned = append(cleaned, "first")
				return nil
			})
			c.Defer("second", func(ctx context.Context) error {
				cleaned = append(cleaned, "second")
				return nil
			})
			panic("boom")
		},
	}

	runner := NewRunner(Env{BaseURL: "http://127.0.0.1:0", Timeout: time.Second, Creds: testCreds})
	res := runner.runScenario(context.Background(), s)

	if !errors.Is(res.Err, ErrScenarioPanicked) {
		t.Errorf("want ErrScenarioPanicked, got %v", res.Err)
	}
	if res.CleanupErr != nil {
		t.Errorf("cleanup should succeed, got %v", res.CleanupErr)
	}
	if len(cleaned) != 2 || cleaned[0] != "second" || cleaned[1] != "first" {
		t.Errorf("cleanups should run in reverse order, got %v", cleaned)
	}
}

func TestRunner_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	runner := NewRunner(Env{BaseURL: url, Timeout: time.Second, Creds: testCreds})
	report := runner.Run(context.Background(), "auth-login")

	res := report.Results[0]
	if res.Passed() {
		t.Fatal("scenario should fail when the server is unreachable")
	}
	if IsAssertion(res.Err) {
		t.Errorf("transport error should not be an assertion failure: %v", res.Err)
	}
}

func TestRandomCPF(t *testing.T) {
	for i := 0; i < 20; i++ {
		cpf := randomCPF()
		if len(cpf) != 11 {
			t.Fatalf("want 11 digits, got %q", cpf)
		}
		for _, r := range cpf {
			if r < '0' || r > '9' {
				t.Fatalf("want digits only, got %q", cpf)
			}
		}
	}
}

func TestExpectStatus(t *testing.T) {
	resp := &Response{Method: http.MethodGet, Path: "/x", StatusCode: http.StatusTeapot, Body: []byte("short and stout")}

	if err := ExpectStatus(resp, http.StatusTeapot); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := ExpectStatus(resp, http.StatusOK, http.StatusCreated)
	if !IsAssertion(err) {
		t.Errorf("want assertion error, got %v", err)
	}
	if err := ExpectClientError(resp); err != nil {
		t.Errorf("418 is a client error: %v", err)
	}
}
