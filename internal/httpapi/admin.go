package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Criozon/q-app/internal/models"
	"github.com/Criozon/q-app/internal/store"
)

// adminOverview is the organizer dashboard payload: the queue plus its full
// window and service configuration, including the operator keys.
type adminOverview struct {
	Queue    models.Queue     `json:"queue"`
	Windows  []models.Window  `json:"windows"`
	Services []models.Service `json:"services"`
	Members  []models.Member  `json:"members"`
}

// handleAdmin routes /api/admin/{secret}[/...]. The secret itself is the
// credential: possession of the URL grants organizer access, so every branch
// starts by resolving it to a queue.
func (h *Handler) handleAdmin(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	secret := parts[0]
	if secret == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	queue, err := h.store.GetQueueBySecret(r.Context(), secret)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	switch {
	case len(parts) == 1:
		h.handleAdminRoot(w, r, queue)
	case len(parts) == 2 && parts[1] == "status":
		h.handleAdminStatus(w, r, queue)
	case len(parts) == 2 && parts[1] == "members":
		h.handleAdminMembers(w, r, queue)
	case len(parts) == 2 && parts[1] == "windows":
		h.handleAdminWindows(w, r, queue)
	case len(parts) == 2 && parts[1] == "services":
		h.handleAdminServices(w, r, queue)
	case len(parts) == 3 && parts[1] == "services":
		h.handleAdminService(w, r, queue, parts[2])
	case len(parts) == 4 && parts[1] == "windows" && parts[3] == "services":
		h.handleAdminWindowServices(w, r, queue, parts[2])
	case len(parts) == 4 && parts[1] == "services" && parts[3] == "windows":
		h.handleAdminServiceWindows(w, r, queue, parts[2])
	case len(parts) == 3 && parts[1] == "members":
		h.handleAdminRemoveMember(w, r, queue, parts[2])
	case len(parts) == 4 && parts[1] == "members" && parts[3] == "return":
		h.handleAdminMemberAction(w, r, queue, parts[2], h.store.ReturnToWaiting)
	case len(parts) == 4 && parts[1] == "members" && parts[3] == "complete":
		h.handleAdminMemberAction(w, r, queue, parts[2], h.store.Complete)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleAdminRoot(w http.ResponseWriter, r *http.Request, queue models.Queue) {
	switch r.Method {
	case http.MethodGet:
		windows, err := h.store.ListWindows(r.Context(), queue.QueueID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		services, err := h.store.ListServices(r.Context(), queue.QueueID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		members, err := h.store.ListMembers(r.Context(), queue.QueueID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, adminOverview{
			Queue:    queue,
			Windows:  windows,
			Services: services,
			Members:  members,
		})
	case http.MethodDelete:
		if err := h.store.DeleteQueue(r.Context(), queue.QueueID); err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request, queue models.Queue) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.Status = strings.TrimSpace(req.Status)
	if req.Status != models.QueueActive && req.Status != models.QueuePaused {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "status must be active or paused")
		return
	}

	updated, err := h.store.SetQueueStatus(r.Context(), queue.QueueID, req.Status)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleAdminMembers(w http.ResponseWriter, r *http.Request, queue models.Queue) {
	switch r.Method {
	case http.MethodGet:
		members, err := h.store.ListMembers(r.Context(), queue.QueueID)
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

func (h *Handler) handleAdminWindows(w http.ResponseWriter, r *http.Request, queue models.Queue) {
	switch r.Method {
	case http.MethodGet:
		windows, err := h.store.ListWindows(r.Context(), queue.QueueID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, windows)
	case http.MethodPost:
		var req struct {
			Count int `json:"count"`
		}
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		if req.Count < 1 || req.Count > 50 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "count must be between 1 and 50")
			return
		}
		windows, err := h.store.AddWindows(r.Context(), queue.QueueID, req.Count)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, windows)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAdminServices(w http.ResponseWriter, r *http.Request, queue models.Queue) {
	switch r.Method {
	case http.MethodGet:
		services, err := h.store.ListServices(r.Context(), queue.QueueID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, services)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || len(req.Name) > maxNameLength {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "name must be 1-80 characters")
			return
		}
		service, err := h.store.AddService(r.Context(), queue.QueueID, req.Name)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, service)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAdminService(w http.ResponseWriter, r *http.Request, queue models.Queue, serviceID string) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(serviceID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "service_id must be a UUID")
		return
	}

	if err := h.store.RemoveService(r.Context(), queue.QueueID, serviceID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdminWindowServices(w http.ResponseWriter, r *http.Request, queue models.Queue, windowID string) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(windowID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "window_id must be a UUID")
		return
	}

	var req struct {
		ServiceIDs []string `json:"service_ids"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	for _, serviceID := range req.ServiceIDs {
		if !isValidUUID(serviceID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "service_ids must be UUIDs")
			return
		}
	}

	if err := h.store.SetWindowServices(r.Context(), windowID, req.ServiceIDs); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdminServiceWindows(w http.ResponseWriter, r *http.Request, queue models.Queue, serviceID string) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(serviceID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "service_id must be a UUID")
		return
	}

	var req struct {
		WindowIDs []string `json:"window_ids"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	for _, windowID := range req.WindowIDs {
		if !isValidUUID(windowID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "window_ids must be UUIDs")
			return
		}
	}

	if err := h.store.SetServiceWindows(r.Context(), queue.QueueID, serviceID, req.WindowIDs); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminRemoveMember is the organizer-side removal; unlike a voluntary
// leave it is scoped to the resolved queue so one organizer cannot delete
// another queue's member by id.
func (h *Handler) handleAdminRemoveMember(w http.ResponseWriter, r *http.Request, queue models.Queue, memberID string) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(memberID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "member_id must be a UUID")
		return
	}
	requestID := strings.TrimSpace(r.URL.Query().Get("request_id"))
	if requestID == "" || !isValidUUID(requestID) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "request_id query parameter must be a UUID")
		return
	}

	err := h.store.RemoveMember(r.Context(), store.MemberActionInput{
		RequestID:  requestID,
		QueueID:    queue.QueueID,
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

func (h *Handler) handleAdminMemberAction(w http.ResponseWriter, r *http.Request, queue models.Queue, memberID string, action memberActionFunc) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(memberID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "member_id must be a UUID")
		return
	}

	var req memberActionRequest
	if !decodeActionRequest(w, r, &req) {
		return
	}

	member, _, err := action(r.Context(), store.MemberActionInput{
		RequestID:  req.RequestID,
		QueueID:    queue.QueueID,
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

// handleWindow routes /api/windows/{key}[/...]. The window key is the
// operator's capability, scoped to a single window.
func (h *Handler) handleWindow(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/windows/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	key := parts[0]
	if key == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 1:
		h.handleWindowPanel(w, r, key)
	case len(parts) == 2 && parts[1] == "call-next":
		h.handleCallNext(w, r, key)
	case len(parts) == 3 && parts[1] == "call":
		h.handleCallSpecific(w, r, key, parts[2])
	case len(parts) == 2 && parts[1] == "complete":
		h.handleWindowMemberAction(w, r, key, h.store.Complete)
	case len(parts) == 2 && parts[1] == "return":
		h.handleWindowMemberAction(w, r, key, h.store.ReturnToWaiting)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleWindowPanel(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	panel, err := h.store.WindowPanel(r.Context(), key)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, panel)
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req memberActionRequest
	if !decodeActionRequest(w, r, &req) {
		return
	}

	window, _, err := h.store.GetWindowByKey(r.Context(), key)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	member, _, err := h.store.CallNext(r.Context(), store.CallNextInput{
		RequestID: req.RequestID,
		WindowID:  window.WindowID,
		CalledAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) handleCallSpecific(w http.ResponseWriter, r *http.Request, key, memberID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(memberID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "member_id must be a UUID")
		return
	}

	var req memberActionRequest
	if !decodeActionRequest(w, r, &req) {
		return
	}

	window, _, err := h.store.GetWindowByKey(r.Context(), key)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	member, _, err := h.store.CallSpecific(r.Context(), store.CallSpecificInput{
		RequestID: req.RequestID,
		WindowID:  window.WindowID,
		MemberID:  memberID,
		CalledAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

type windowMemberRequest struct {
	RequestID string `json:"request_id"`
	MemberID  string `json:"member_id"`
}

type memberActionFunc func(ctx context.Context, input store.MemberActionInput) (models.Member, bool, error)

// handleWindowMemberAction serves complete and return-to-queue. Both act on a
// member the operator can see, identified in the body, and both verify that
// the member belongs to this window's queue before applying the transition.
func (h *Handler) handleWindowMemberAction(w http.ResponseWriter, r *http.Request, key string, action memberActionFunc) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req windowMemberRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.MemberID = strings.TrimSpace(req.MemberID)
	if req.RequestID == "" || req.MemberID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and member_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.MemberID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and member_id must be UUIDs")
		return
	}

	window, _, err := h.store.GetWindowByKey(r.Context(), key)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	member, _, err := action(r.Context(), store.MemberActionInput{
		RequestID:  req.RequestID,
		QueueID:    window.QueueID,
		MemberID:   req.MemberID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, member)
}
