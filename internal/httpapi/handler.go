package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Criozon/q-app/internal/store"

	"github.com/google/uuid"
)

const maxNameLength = 80

type Handler struct {
	store store.Store
}

func NewHandler(store store.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/queues", h.handleCreateQueue)
	mux.HandleFunc("/api/queues/join/", h.handleJoinDetails)
	mux.HandleFunc("/api/queues/", h.handleQueueScoped)
	mux.HandleFunc("/api/members/", h.handleMemberScoped)
	mux.HandleFunc("/api/session/resolve", h.handleResolveSession)
	mux.HandleFunc("/api/admin/", h.handleAdmin)
	mux.HandleFunc("/api/windows/", h.handleWindow)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type createQueueRequest struct {
	RequestID   string               `json:"request_id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	WindowCount int                  `json:"window_count"`
	Services    []createQueueService `json:"services"`
}

type createQueueService struct {
	Name          string `json:"name"`
	WindowNumbers []int  `json:"window_numbers"`
}

func (h *Handler) handleCreateQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createQueueRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)

	if req.RequestID == "" || req.Name == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and name are required")
		return
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	if len(req.Name) > maxNameLength {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "name is too long")
		return
	}
	if req.WindowCount < 1 || req.WindowCount > 50 {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "window_count must be between 1 and 50")
		return
	}

	services := make([]store.ServiceSetup, 0, len(req.Services))
	for _, svc := range req.Services {
		name := strings.TrimSpace(svc.Name)
		if name == "" || len(name) > maxNameLength {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "service names must be 1-80 characters")
			return
		}
		for _, number := range svc.WindowNumbers {
			if number < 1 || number > req.WindowCount {
				writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "service window_numbers must reference created windows")
				return
			}
		}
		services = append(services, store.ServiceSetup{Name: name, WindowNumbers: svc.WindowNumbers})
	}

	result, _, err := h.store.CreateQueue(r.Context(), store.CreateQueueInput{
		RequestID:   req.RequestID,
		Name:        req.Name,
		Description: req.Description,
		WindowCount: req.WindowCount,
		Services:    services,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleJoinDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	shortID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/queues/join/"), "/")
	if shortID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "queue code is required")
		return
	}

	details, err := h.store.JoinDetails(r.Context(), shortID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type joinQueueRequest struct {
	RequestID  string `json:"request_id"`
	MemberName string `json:"member_name"`
	ServiceID  string `json:"service_id"`
}

func (h *Handler) handleQueueScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/queues/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "members" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	queueID := parts[0]
	if !isValidUUID(queueID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "queue_id must be a UUID")
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handleJoinQueue(w, r, queueID)
	case http.MethodGet:
		members, err := h.store.ListMembers(r.Context(), queueID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, members)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleJoinQueue(w http.ResponseWriter, r *http.Request, queueID string) {
	var req joinQueueRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.MemberName = strings.TrimSpace(req.MemberName)
	req.ServiceID = strings.TrimSpace(req.ServiceID)

	if req.RequestID == "" || req.MemberName == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and member_name are required")
		return
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	if len(req.MemberName) > maxNameLength {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "member_name is too long")
		return
	}
	if req.ServiceID != "" && !isValidUUID(req.ServiceID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "service_id must be a UUID when provided")
		return
	}

	member, _, err := h.store.JoinQueue(r.Context(), store.JoinQueueInput{
		RequestID:  req.RequestID,
		QueueID:    queueID,
		MemberName: req.MemberName,
		ServiceID:  req.ServiceID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

type memberActionRequest struct {
	RequestID string `json:"request_id"`
}

func (h *Handler) handleMemberScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/members/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	memberID := parts[0]
	if !isValidUUID(memberID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "member_id must be a UUID")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetMember(w, r, memberID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleLeaveQueue(w, r, memberID)
	case len(parts) == 2 && parts[1] == "acknowledge" && r.Method == http.MethodPost:
		h.handleAcknowledge(w, r, memberID)
	case len(parts) == 2 && parts[1] == "events" && r.Method == http.MethodGet:
		h.handleMemberEvents(w, r, memberID)
	case len(parts) == 1 || (len(parts) == 2 && (parts[1] == "acknowledge" || parts[1] == "events")):
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request, memberID string) {
	detail, err := h.store.GetMember(r.Context(), memberID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	// The member detail view travels to the participant's wait screen; the
	// queue's admin secret must never ride along.
	detail.Queue.AdminSecretKey = ""
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request, memberID string) {
	var req memberActionRequest
	if !decodeActionRequest(w, r, &req) {
		return
	}

	member, _, err := h.store.Acknowledge(r.Context(), store.MemberActionInput{
		RequestID:  req.RequestID,
		MemberID:   memberID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) handleLeaveQueue(w http.ResponseWriter, r *http.Request, memberID string) {
	requestID := strings.TrimSpace(r.URL.Query().Get("request_id"))
	if requestID == "" || !isValidUUID(requestID) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "request_id query parameter must be a UUID")
		return
	}

	err := h.store.RemoveMember(r.Context(), store.MemberActionInput{
		RequestID:  requestID,
		MemberID:   memberID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMemberEvents(w http.ResponseWriter, r *http.Request, memberID string) {
	events, err := h.store.ListMemberEvents(r.Context(), memberID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleResolveSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	queueID := strings.TrimSpace(r.URL.Query().Get("queue_id"))
	memberID := strings.TrimSpace(r.URL.Query().Get("member_id"))
	if queueID == "" || memberID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "queue_id and member_id are required")
		return
	}
	if !isValidUUID(queueID) || !isValidUUID(memberID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "queue_id and member_id must be UUIDs")
		return
	}

	state, err := h.store.ResolveSession(r.Context(), queueID, memberID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func decodeActionRequest(w http.ResponseWriter, r *http.Request, req *memberActionRequest) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "request_id is required")
		return false
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrQueueNotFound):
		return http.StatusNotFound, "queue_not_found", "queue not found"
	case errors.Is(err, store.ErrQueuePaused):
		return http.StatusConflict, "queue_paused", "queue is not accepting new members"
	case errors.Is(err, store.ErrWindowNotFound):
		return http.StatusNotFound, "window_not_found", "window not found"
	case errors.Is(err, store.ErrWindowBusy):
		return http.StatusConflict, "window_busy", "window already has an assigned member"
	case errors.Is(err, store.ErrServiceNotFound):
		return http.StatusNotFound, "service_not_found", "service not found"
	case errors.Is(err, store.ErrMemberNotFound):
		return http.StatusNotFound, "member_not_found", "member not found"
	case errors.Is(err, store.ErrNoMember):
		return http.StatusConflict, "queue_empty", "no eligible members waiting"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "member state does not allow this action"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
