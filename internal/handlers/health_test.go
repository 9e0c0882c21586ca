package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/chunkfs/internal/models"
)

func TestHandler_Health(t *testing.T) {
	app, _ := setupApp(t)

	code, body := do(t, app, httptest.NewRequest("GET", "/health", nil))
	if code != fiber.StatusOK {
		t.Errorf("Expected status %d, got %d", fiber.StatusOK, code)
	}

	var healthResp models.HealthResponse
	if err := json.Unmarshal(body, &healthResp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if healthResp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", healthResp.Status)
	}
	if healthResp.Version != "test" {
		t.Errorf("Expected version 'test', got '%s'", healthResp.Version)
	}
	if healthResp.Timestamp == "" {
		t.Error("Expected non-empty timestamp")
	}
}

func TestHandler_NotFound(t *testing.T) {
	app, _ := setupApp(t)

	code, body := do(t, app, httptest.NewRequest("GET", "/nonexistent", nil))
	if code != fiber.StatusNotFound {
		t.Errorf("Expected status %d, got %d", fiber.StatusNotFound, code)
	}
	detail := decodeError(t, body)
	if detail.Code != "NOT_FOUND" {
		t.Errorf("Expected code NOT_FOUND, got %s", detail.Code)
	}
	if detail.Path != "/nonexistent" {
		t.Errorf("Expected path /nonexistent, got %s", detail.Path)
	}
}
