package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	config "github.com/drummonds/pagevision/config"
	database "github.com/drummonds/pagevision/database"
)

func setupTestServer(t *testing.T, serverConfig config.ServerConfig) http.Handler {
	t.Helper()
	injectGlobals(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})))

	tempDir := t.TempDir()
	serverConfig.DatabaseType = "sqlite"
	serverConfig.DatabaseDbname = filepath.Join(tempDir, "pagevision.sqlite")
	serverConfig.IngressPath = filepath.Join(tempDir, "ingress")
	serverConfig.OutputPath = filepath.Join(tempDir, "prepared")

	db, err := database.NewRepository(serverConfig)
	if err != nil {
		t.Fatalf("Failed to setup database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	serverHandler, err := newServer(serverConfig, db)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(func() { serverHandler.Preparer.Engine.Close() })
	return serverHandler.Echo
}

func TestServerRoutes(t *testing.T) {
	handler := setupTestServer(t, config.ServerConfig{RenderConfig: config.DefaultRenderConfig()})

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var health map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
			t.Fatalf("Failed to decode health: %v", err)
		}
		if health["renderer"] != "fitz" {
			t.Errorf("Expected fitz renderer, got %v", health["renderer"])
		}
	})

	t.Run("unknown api route returns json 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/latest", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Expected JSON body, got %q", rec.Body.String())
		}
		if body["path"] != "/api/documents/latest" {
			t.Errorf("Unexpected 404 body %v", body)
		}
	})

	t.Run("ocr disabled without inference url", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ocr", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", rec.Code)
		}
	})

	t.Run("cors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Origin", "http://example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Origin") == "" {
			t.Error("Expected CORS header on API response")
		}
	})
}

func TestServerWithoutInferenceModel(t *testing.T) {
	cfg := config.ServerConfig{RenderConfig: config.DefaultRenderConfig()}
	cfg.InferenceURL = "http://localhost:1/v1"

	handler := setupTestServer(t, cfg)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ocr", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("A backend without a model should leave OCR disabled, got %d", rec.Code)
	}
}

func TestUnknownRenderer(t *testing.T) {
	injectGlobals(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	cfg := config.ServerConfig{RenderConfig: config.DefaultRenderConfig()}
	cfg.PDFRenderer = "ghostscript"
	if _, err := newServer(cfg, nil); err == nil {
		t.Error("Expected error for unknown renderer")
	}
}

func TestPortHelpers(t *testing.T) {
	if !isAddressInUse(errors.New("listen tcp :8000: bind: address already in use")) {
		t.Error("Expected address in use to be detected")
	}
	if isAddressInUse(nil) || isAddressInUse(errors.New("permission denied")) {
		t.Error("Unexpected address in use detection")
	}
	if got := nextPort("8000"); got != "8001" {
		t.Errorf("Expected 8001, got %s", got)
	}
	if got := nextPort("http"); got != "http" {
		t.Errorf("Non-numeric port should be unchanged, got %s", got)
	}
}
