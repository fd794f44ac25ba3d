package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/mavkus/internal/service"
)

type handlers struct {
	svc Service
}

type createProfileRequest struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
}

func (h *handlers) createProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.svc.CreateProfile(r.Context(), req.UserID, req.Email, req.DisplayName, req.PhotoURL)
	if err != nil {
		serviceError(w, err)
		return
	}
	action := "aggiornato"
	if created {
		action = "creato"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Profilo " + action,
		"user_id": req.UserID,
		"created": created,
	})
}

type saveKeysRequest struct {
	UserID       string `json:"user_id"`
	GroqAPIKey   string `json:"groq_api_key"`
	GeminiAPIKey string `json:"gemini_api_key"`
}

func (h *handlers) saveKeys(w http.ResponseWriter, r *http.Request) {
	var req saveKeysRequest
	if !decodeBody(w, r, &req) {
		return
	}
	saved, err := h.svc.SaveAPIKeys(r.Context(), req.UserID, service.Keys{Groq: req.GroqAPIKey, Gemini: req.GeminiAPIKey})
	if err != nil {
		serviceError(w, err)
		return
	}
	if saved == nil {
		saved = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "API keys salvate",
		"user_id":    req.UserID,
		"keys_saved": saved,
	})
}

func (h *handlers) getKeys(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	reveal, _ := strconv.ParseBool(r.URL.Query().Get("reveal"))
	keys, err := h.svc.GetAPIKeys(r.Context(), userID, reveal)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"user_id":  userID,
		"api_keys": keys,
		"has_keys": keys.Groq != "" || keys.Gemini != "",
	})
}

type initRequest struct {
	UserID string `json:"user_id"`
}

func (h *handlers) initUser(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Init(r.Context(), req.UserID)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"message":             "MAVKUS inizializzato",
		"user_id":             res.UserID,
		"stats":               res.Stats,
		"gemini_available":    res.SpecialistAvailable,
		"api_keys_configured": res.APIKeysConfigured,
	})
}

type chatRequest struct {
	UserID         string `json:"user_id"`
	Message        string `json:"message"`
	EnableCritique *bool  `json:"enable_critique"`
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	critique := req.EnableCritique == nil || *req.EnableCritique

	res, err := h.svc.ProcessTurn(r.Context(), req.UserID, req.Message, critique)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"response":        res.Response,
		"user_id":         req.UserID,
		"conversation_id": res.ConversationID,
		"metadata": map[string]any{
			"routed_to_gemini":  res.Metadata.RoutedToSpecialist,
			"gemini_used":       res.Metadata.SpecialistUsed,
			"has_critique":      res.Metadata.Critique != nil,
			"generation_failed": res.Metadata.GenerationFailed,
		},
		"timestamp": res.Timestamp.Format(time.RFC3339),
	})
}

func (h *handlers) conversations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", v)
			return
		}
		limit = n
	}
	convs, err := h.svc.Conversations(r.Context(), userID, limit)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"user_id":       userID,
		"conversations": convs,
		"count":         len(convs),
	})
}

func (h *handlers) deleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	convID := chi.URLParam(r, "conversation_id")
	if err := h.svc.DeleteConversation(r.Context(), userID, convID); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Conversazione eliminata",
		"user_id":         userID,
		"conversation_id": convID,
	})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	st, err := h.svc.GetStats(r.Context(), userID)
	if err != nil {
		serviceError(w, err)
		return
	}
	var ai any = map[string]any{}
	if st.AI != nil {
		ai = st.AI
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"user_id":   userID,
		"account":   st.Account,
		"ai_stats":  ai,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *handlers) clearMemory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if err := h.svc.ClearMemory(r.Context(), userID); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Memoria cancellata",
		"user_id": userID,
	})
}
