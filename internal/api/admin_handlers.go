package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/auth"
	"github.com/afyalink/referral-service/internal/identity"
)

// listAuditHandler exposes the audit trail to admins, newest first.
// ?limit= caps the page; the store clamps out-of-range values.
func listAuditHandler(logs audit.Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if err := auth.RequireRole(actor, identity.RoleAdmin); err != nil {
			handleServiceError(w, err)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
				return
			}
		}

		entries, err := logs.ListRecent(r.Context(), limit)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAuditEntryResponses(entries))
	}
}

// getPhysicianByLicenseHandler lets admins verify a referring physician
// by the license id printed on the referral paperwork.
func getPhysicianByLicenseHandler(users identity.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if err := auth.RequireRole(actor, identity.RoleAdmin); err != nil {
			handleServiceError(w, err)
			return
		}

		licenseID := strings.TrimSpace(chi.URLParam(r, "licenseID"))
		if licenseID == "" {
			writeError(w, http.StatusBadRequest, "invalid_license_id", "license id is required")
			return
		}

		p, err := users.GetPhysicianByLicense(r.Context(), licenseID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPhysicianResponse(p))
	}
}
