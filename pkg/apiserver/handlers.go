package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/folio-sites/folio-domains/pkg/db"
	"github.com/folio-sites/folio-domains/pkg/lifecycle"
	"github.com/folio-sites/folio-domains/pkg/model"
	"github.com/folio-sites/folio-domains/pkg/version"
	"github.com/gorilla/mux"
)

type handler struct {
	controller *lifecycle.Controller
}

func newHandler(c *lifecycle.Controller) *handler {
	return &handler{
		controller: c,
	}
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func (h *handler) createDomain(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Hostname         string `json:"hostname"`
		VerificationType string `json:"verificationType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tenantID := tenantIDFromContext(r.Context())

	d, err := h.controller.Create(r.Context(), tenantID, input.Hostname, model.VerificationType(input.VerificationType))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, d.Response())
}

func (h *handler) listDomains(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromContext(r.Context())

	domains, err := h.controller.List(r.Context(), tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	out := make([]interface{}, 0, len(domains))
	for _, d := range domains {
		out = append(out, d.Response())
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getDomain(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromContext(r.Context())
	domainID, ok := domainIDFromVars(r)
	if !ok {
		writeError(w, http.StatusNotFound, db.ErrNotFound)
		return
	}

	d, err := h.controller.Get(r.Context(), tenantID, domainID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d.Response())
}

func (h *handler) checkDomain(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromContext(r.Context())
	domainID, ok := domainIDFromVars(r)
	if !ok {
		writeError(w, http.StatusNotFound, db.ErrNotFound)
		return
	}

	d, err := h.controller.Check(r.Context(), tenantID, domainID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d.Response())
}

func (h *handler) setPrimaryDomain(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromContext(r.Context())
	domainID, ok := domainIDFromVars(r)
	if !ok {
		writeError(w, http.StatusNotFound, db.ErrNotFound)
		return
	}

	d, err := h.controller.SetPrimary(r.Context(), tenantID, domainID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d.Response())
}

func (h *handler) removeDomain(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromContext(r.Context())
	domainID, ok := domainIDFromVars(r)
	if !ok {
		writeError(w, http.StatusNotFound, db.ErrNotFound)
		return
	}

	if err := h.controller.Remove(r.Context(), tenantID, domainID); err != nil {
		handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func domainIDFromVars(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["domain"], 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// handleDomainError keeps the error taxonomy at the boundary: invariant
// violations are client errors, everything else is a 500. Not-found never
// reveals whether the hostname exists for a different tenant.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, db.ErrDuplicateHostname):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, db.ErrInvalidState):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, lifecycle.ErrInvalidHostname), errors.Is(err, lifecycle.ErrInvalidVerificationType):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
