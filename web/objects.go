package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schemagate/schemagate/pkg/serr"
)

// Object writes flow through permission check, schema validation, and the
// public-to-adapter value transforms. Persistence of the rows themselves is
// owned by the data layer behind this service; these endpoints return the
// transformed object it would store.

// ValidateCreate validates an object create against the live schema,
// creating the class lazily when needed.
func (h *Handler) ValidateCreate(w http.ResponseWriter, r *http.Request) {
	className := chi.URLParam(r, "className")

	var object map[string]any
	if err := json.NewDecoder(r.Body).Decode(&object); err != nil {
		writeError(w, serr.New(serr.InvalidJSON, "request body is not valid JSON"))
		return
	}

	if !h.isMaster(r) {
		if err := h.controller.CheckPermission(r.Context(), className, accessGroup(r), "create"); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := h.controller.ValidateObject(r.Context(), className, object, ""); err != nil {
		writeError(w, err)
		return
	}

	transformed, err := h.transformObject(className, object)
	if err != nil {
		writeError(w, err)
		return
	}
	objectID := h.idgen.ObjectID()
	transformed["objectId"] = objectID

	writeJSON(w, http.StatusCreated, map[string]any{
		"objectId":  objectID,
		"createdAt": h.clock.Now().UTC().Format(time.RFC3339Nano),
		"object":    transformed,
	})
}

// ValidateUpdate validates an object update. Required columns are only
// violated when the update deletes them.
func (h *Handler) ValidateUpdate(w http.ResponseWriter, r *http.Request) {
	className := chi.URLParam(r, "className")
	objectID := chi.URLParam(r, "objectId")

	var object map[string]any
	if err := json.NewDecoder(r.Body).Decode(&object); err != nil {
		writeError(w, serr.New(serr.InvalidJSON, "request body is not valid JSON"))
		return
	}

	if !h.isMaster(r) {
		if err := h.controller.CheckPermission(r.Context(), className, accessGroup(r), "update"); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := h.controller.ValidateObject(r.Context(), className, object, objectID); err != nil {
		writeError(w, err)
		return
	}

	transformed, err := h.transformObject(className, object)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"updatedAt": h.clock.Now().UTC().Format(time.RFC3339Nano),
		"object":    transformed,
	})
}

// transformObject applies the public-to-adapter value transforms: user
// passwords are stored hashed, never plain.
func (h *Handler) transformObject(className string, object map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(object))
	for k, v := range object {
		out[k] = v
	}
	if className == "_User" {
		if password, ok := out["password"].(string); ok && password != "" {
			hashed, err := h.hasher.Hash(password)
			if err != nil {
				return nil, serr.New(serr.ScriptFailure, "password hashing failed")
			}
			delete(out, "password")
			out["_hashed_password"] = string(hashed)
		}
	}
	return out, nil
}
