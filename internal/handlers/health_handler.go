package handlers

import (
	"context"
	"net/http"
	"time"

	"cvone/interview/internal/llm"
	"cvone/interview/internal/utils"
)

const serviceName = "interview"

type ReadinessCheck struct {
	Status  string `json:"status"` // "ok" | "failed"
	Message string `json:"message,omitempty"`
}

type ReadinessResponse struct {
	Status  string                    `json:"status"`  // "ready" | "not_ready"
	Service string                    `json:"service"` // Service name
	Checks  map[string]ReadinessCheck `json:"checks"`  // Individual check results
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type TemplateLister interface {
	GetTemplates() map[string][]string
}

type HealthHandler struct {
	store         Pinger
	provider      llm.Provider
	promptManager TemplateLister
	version       string
	pingTimeout   time.Duration
}

func NewHealthHandler(store Pinger, provider llm.Provider, promptManager TemplateLister, version string) *HealthHandler {
	return &HealthHandler{
		store:         store,
		provider:      provider,
		promptManager: promptManager,
		version:       version,
		pingTimeout:   2 * time.Second,
	}
}

func (handler *HealthHandler) HealthzHandler(writer http.ResponseWriter, request *http.Request) {
	utils.JSON(writer, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
		"version": handler.version,
	})
}

func (handler *HealthHandler) ReadyzHandler(writer http.ResponseWriter, request *http.Request) {
	checks := make(map[string]ReadinessCheck)
	allChecksPass := true
	fail := func(name, message string) {
		checks[name] = ReadinessCheck{Status: "failed", Message: message}
		allChecksPass = false
	}

	if handler.store == nil {
		fail("store", "Store not initialized")
	} else {
		ctx, cancel := context.WithTimeout(request.Context(), handler.pingTimeout)
		err := handler.store.Ping(ctx)
		cancel()
		if err != nil {
			fail("store", err.Error())
		} else {
			checks["store"] = ReadinessCheck{Status: "ok"}
		}
	}

	if handler.provider == nil {
		fail("provider", "AI provider not initialized")
	} else {
		checks["provider"] = ReadinessCheck{Status: "ok"}
	}

	if handler.promptManager == nil {
		fail("prompt_manager", "Prompt manager not initialized")
	} else if len(handler.promptManager.GetTemplates()) == 0 {
		fail("prompt_manager", "No prompt templates loaded")
	} else {
		checks["prompt_manager"] = ReadinessCheck{Status: "ok"}
	}

	response := ReadinessResponse{
		Service: serviceName,
		Checks:  checks,
	}

	if allChecksPass {
		response.Status = "ready"
		utils.JSON(writer, http.StatusOK, response)
	} else {
		response.Status = "not_ready"
		utils.JSON(writer, http.StatusServiceUnavailable, response)
	}
}
