package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/schemagate/schemagate/domain/clp"
	"github.com/schemagate/schemagate/domain/fieldtype"
	"github.com/schemagate/schemagate/pkg/serr"
)

// schemaRequest is the wire shape of schema create/update bodies. Field
// values are either a type declaration or a Delete operator.
type schemaRequest struct {
	ClassName   string                     `json:"className"`
	Fields      map[string]json.RawMessage `json:"fields"`
	Permissions *clp.Permissions           `json:"classLevelPermissions"`
}

// parseFieldChanges decodes submitted fields into additions (a concrete
// type) and deletions (nil), per the {"__op": "Delete"} marker.
func parseFieldChanges(raw map[string]json.RawMessage) (map[string]*fieldtype.Type, error) {
	out := make(map[string]*fieldtype.Type, len(raw))
	for name, msg := range raw {
		var marker struct {
			Op string `json:"__op"`
		}
		if err := json.Unmarshal(msg, &marker); err == nil && marker.Op == "Delete" {
			out[name] = nil
			continue
		}
		var t fieldtype.Type
		if err := json.Unmarshal(msg, &t); err != nil || t.Kind == "" {
			return nil, serr.Newf(serr.InvalidJSON, "invalid type declaration for field %q", name)
		}
		out[name] = &t
	}
	return out, nil
}

// requireMaster guards the schema API; only master requests may read or
// mutate schemas directly.
func (h *Handler) requireMaster(w http.ResponseWriter, r *http.Request) bool {
	if h.isMaster(r) {
		return true
	}
	writeError(w, serr.New(serr.OperationForbidden, "master key required"))
	return false
}

// ListSchemas returns every class schema.
func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	if !h.requireMaster(w, r) {
		return
	}
	classes, err := h.controller.GetAllClasses(r.Context(), r.URL.Query().Get("refresh") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": classes})
}

// GetSchema returns one class schema.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	if !h.requireMaster(w, r) {
		return
	}
	className := chi.URLParam(r, "className")
	c, err := h.controller.GetOneSchema(r.Context(), className, true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateSchema creates a class. Deletion markers make no sense here and are
// rejected before validation.
func (h *Handler) CreateSchema(w http.ResponseWriter, r *http.Request) {
	if !h.requireMaster(w, r) {
		return
	}
	className := chi.URLParam(r, "className")

	var req schemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, serr.New(serr.InvalidJSON, "request body is not valid JSON"))
		return
	}
	if req.ClassName != "" && req.ClassName != className {
		writeError(w, serr.Newf(serr.InvalidClassName, "class name %q does not match URL", req.ClassName))
		return
	}

	changes, err := parseFieldChanges(req.Fields)
	if err != nil {
		writeError(w, err)
		return
	}
	fields := make(map[string]fieldtype.Type, len(changes))
	for name, t := range changes {
		if t == nil {
			writeError(w, serr.Newf(serr.InvalidJSON, "cannot delete field %q on a new class", name))
			return
		}
		fields[name] = *t
	}

	var perms clp.Permissions
	if req.Permissions != nil {
		perms = *req.Permissions
	}
	created, err := h.controller.CreateClassIfAbsent(r.Context(), className, fields, perms)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateSchema applies field additions/deletions and a CLP replacement.
func (h *Handler) UpdateSchema(w http.ResponseWriter, r *http.Request) {
	if !h.requireMaster(w, r) {
		return
	}
	className := chi.URLParam(r, "className")

	var req schemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, serr.New(serr.InvalidJSON, "request body is not valid JSON"))
		return
	}
	changes, err := parseFieldChanges(req.Fields)
	if err != nil {
		writeError(w, err)
		return
	}
	updated, err := h.controller.UpdateClass(r.Context(), className, changes, req.Permissions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteSchema removes a class.
func (h *Handler) DeleteSchema(w http.ResponseWriter, r *http.Request) {
	if !h.requireMaster(w, r) {
		return
	}
	if err := h.controller.DeleteClass(r.Context(), chi.URLParam(r, "className")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

// DeleteSchemaField removes one field from a class.
func (h *Handler) DeleteSchemaField(w http.ResponseWriter, r *http.Request) {
	if !h.requireMaster(w, r) {
		return
	}
	className := chi.URLParam(r, "className")
	fieldName := chi.URLParam(r, "fieldName")
	if err := h.controller.DeleteField(r.Context(), fieldName, className); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}
