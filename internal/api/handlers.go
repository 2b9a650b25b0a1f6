package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coachflow/coachflow/internal/models"
)

// webhookHandler accepts one inbound DM event from the chat-automation
// platform. The platform retries non-2xx deliveries, and a retried
// message would be double-processed, so every decodable request is
// acknowledged with 200 even when the payload is unusable; problems are
// logged and the event is dropped.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload models.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode JSON, dropping event", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Accepted("ignored: invalid JSON"))
		return
	}
	if err := payload.Validate(); err != nil {
		slog.Warn("Server.webhookHandler: invalid payload, dropping event", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Accepted("ignored: "+err.Error()))
		return
	}

	slog.Debug("Server.webhookHandler: enqueuing event", "subscriberID", payload.SubscriberID)
	s.debouncer.Enqueue(payload)
	writeJSONResponse(w, http.StatusOK, models.Accepted("queued"))
}

func (s *Server) usersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	users, err := s.store.ListUsers()
	if err != nil {
		slog.Error("Server.usersHandler: failed to list users", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list users"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(users))
}

func (s *Server) userHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/users/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid subscriber id"))
		return
	}
	user, err := s.store.GetUser(id)
	if err != nil {
		slog.Error("Server.userHandler: failed to load user", "error", err, "subscriberID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load user"))
		return
	}
	if user == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("User not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(userView{
		UserRecord:   user,
		PendingFlags: s.pendingFlags(id),
	}))
}

// userView decorates the stored record with the subscriber's armed
// pending flags for the operator's single-user view.
type userView struct {
	*models.UserRecord
	PendingFlags []string `json:"pending_flags"`
}

func (s *Server) pendingFlags(subscriberID string) []string {
	flags := []string{}
	for _, kind := range []models.PendingKind{models.PendingFormCheck, models.PendingFoodAnalysis} {
		armed, err := s.store.HasPendingFlag(subscriberID, kind)
		if err != nil {
			slog.Error("Server.pendingFlags: flag check failed", "error", err, "subscriberID", subscriberID, "kind", kind)
			continue
		}
		if armed {
			flags = append(flags, string(kind))
		}
	}
	return flags
}

func (s *Server) actionItemsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.store.ListActionItems()
	if err != nil {
		slog.Error("Server.actionItemsHandler: failed to list action items", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list action items"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(items))
}

func (s *Server) trackerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records, err := s.store.ListTrackers()
	if err != nil {
		slog.Error("Server.trackerHandler: failed to list trackers", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list trackers"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(records))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
