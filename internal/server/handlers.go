package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Cyclone1070/buildforme/internal/archetype"
	"github.com/Cyclone1070/buildforme/internal/logging"
	"github.com/Cyclone1070/buildforme/internal/metrics"
	"github.com/Cyclone1070/buildforme/internal/provider/models"
	"go.uber.org/zap"
)

const (
	msgForbidden     = "You can't access this"
	msgInternal      = "Internal Server Error"
	fallbackResponse = "No response received."
)

type templateRequest struct {
	Prompt string `json:"prompt"`
}

type chatRequest struct {
	Messages []models.Message `json:"messages"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTemplate classifies the prompt and returns the archetype's seed
// prompts.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	log := logging.WithContext(r.Context())

	var req templateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	a, err := s.classifier.Classify(r.Context(), req.Prompt)
	switch {
	case errors.Is(err, archetype.ErrUnrecognized):
		writeError(w, http.StatusForbidden, msgForbidden)
		return
	case err != nil:
		log.Error("classify failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	tmpl, err := s.catalog.Template(a)
	if err != nil {
		log.Error("template lookup failed", zap.String("archetype", a.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	log.Info("template selected", zap.String("archetype", a.String()))
	writeJSON(w, http.StatusOK, tmpl)
}

// handleChat sends the conversation behind the build system prompt and
// returns the next assistant turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.WithContext(r.Context())

	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("messages[%d]: invalid role %q", i, m.Role))
			return
		}
	}

	start := time.Now()
	text, err := s.provider.Generate(r.Context(), &models.GenerateRequest{
		System:    s.catalog.SystemPrompt,
		Messages:  req.Messages,
		MaxTokens: s.chatTokens,
	})
	metrics.RecordGeneration("chat", time.Since(start), err)
	switch {
	case errors.Is(err, models.ErrEmptyResponse):
		text = ""
	case err != nil:
		log.Error("chat failed", zap.Error(err), zap.String("code", string(models.CodeOf(err))))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if text == "" {
		text = fallbackResponse
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: text})
}

// decode reads a bounded JSON body into v. It writes the error response and
// returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := r.Body
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		}
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}
