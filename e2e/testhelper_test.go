package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/musichub/api/internal/client"
	"github.com/musichub/api/internal/config"
	"github.com/musichub/api/internal/handler"
	"github.com/musichub/api/internal/middleware"
	"github.com/musichub/api/internal/service"
	"github.com/musichub/api/internal/store"
)

const (
	testJWTSecret    = "test-secret-for-e2e"
	testWorkerSecret = "test-worker-secret"
)

// testApp holds all components needed for testing
type testApp struct {
	app    *fiber.App
	worker *fakeWorkerServer
}

// fakeWorkerServer is a scriptable stand-in for the external split worker.
type fakeWorkerServer struct {
	server *httptest.Server

	mu     sync.Mutex
	nextID int
	jobs   map[string]map[string]interface{}
}

func newFakeWorkerServer(t *testing.T) *fakeWorkerServer {
	t.Helper()
	fw := &fakeWorkerServer{jobs: make(map[string]map[string]interface{})}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/split", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-worker-secret") != testWorkerSecret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}

		fw.mu.Lock()
		fw.nextID++
		jobID := fmt.Sprintf("wjob-%d", fw.nextID)
		fw.jobs[jobID] = map[string]interface{}{"status": "pending"}
		fw.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]string{"jobId": jobID})
	})
	mux.HandleFunc("/v1/status/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-worker-secret") != testWorkerSecret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/v1/status/")

		fw.mu.Lock()
		view, ok := fw.jobs[jobID]
		fw.mu.Unlock()

		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(view)
	})

	fw.server = httptest.NewServer(mux)
	t.Cleanup(fw.server.Close)
	return fw
}

// setView replaces the worker's reported view of a job.
func (fw *fakeWorkerServer) setView(jobID string, view map[string]interface{}) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.jobs[jobID] = view
}

// forget drops a job from the worker, simulating worker-side data loss.
func (fw *fakeWorkerServer) forget(jobID string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	delete(fw.jobs, jobID)
}

// setupApp creates a Fiber app identical to main.go wiring, backed by the
// in-memory store and a fake split worker.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	recordStore := store.NewMemoryStore()
	fw := newFakeWorkerServer(t)

	workerClient := client.NewWorkerClient(&config.WorkerConfig{
		BaseURL: fw.server.URL,
		Secret:  testWorkerSecret,
		Timeout: 5,
	})

	validate := validator.New()

	walletService := service.NewWalletService(recordStore)
	splitService := service.NewSplitService(recordStore, workerClient, nil, nil)

	walletHandler := handler.NewWalletHandler(walletService, validate)
	splitHandler := handler.NewSplitHandler(splitService)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	auth := authMiddleware.Authenticate()

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/wallet", auth, walletHandler.GetWallet)
	app.Post("/wallet/earn", auth, walletHandler.Earn)
	app.Post("/wallet/spend", auth, walletHandler.Spend)

	app.Post("/splitter/split", auth, splitHandler.Split)
	app.Get("/splitter/status/:jobId", auth, splitHandler.Status)

	return &testApp{app: app, worker: fw}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	m := middleware.NewAuthMiddleware(testJWTSecret)
	token, err := m.GenerateToken(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request as the given user.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body, userID string) (*http.Response, error) {
	t.Helper()
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t, userID),
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode digs the error code out of an error envelope.
func errorCode(t *testing.T, result map[string]interface{}) string {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("no error envelope in %v", result)
	}
	code, _ := errObj["code"].(string)
	return code
}
