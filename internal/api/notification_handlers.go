package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/afyalink/referral-service/internal/auth"
	"github.com/afyalink/referral-service/internal/notify"
)

func listNotificationsHandler(repo notify.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		ns, err := repo.ListByUser(r.Context(), actor.ID.String())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		unread, err := repo.UnreadCount(r.Context(), actor.ID.String())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"notifications": toNotificationResponses(ns),
			"unread_count":  unread,
		})
	}
}

func markNotificationReadHandler(repo notify.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.ActorFrom(r.Context()); err != nil {
			handleServiceError(w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_notification_id", "id must be a valid UUID")
			return
		}

		if err := repo.MarkRead(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func markAllNotificationsReadHandler(repo notify.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		n, err := repo.MarkAllRead(r.Context(), actor.ID.String())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "marked": n})
	}
}
