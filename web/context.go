package web

import (
	"net/http"
	"strings"
)

// accessGroup derives the caller's identity/role tokens from request
// headers. Session resolution happens upstream of this service; the gateway
// forwards the resolved identity in plain headers.
func accessGroup(r *http.Request) []string {
	var group []string
	if id := r.Header.Get("X-User-Id"); id != "" {
		group = append(group, id)
	}
	for _, role := range strings.Split(r.Header.Get("X-User-Roles"), ",") {
		role = strings.TrimSpace(role)
		if role != "" {
			group = append(group, "role:"+role)
		}
	}
	return group
}

// isMaster reports whether the request presented the configured master key.
// Master requests bypass class-level permissions.
func (h *Handler) isMaster(r *http.Request) bool {
	return h.masterKey != "" && r.Header.Get("X-Master-Key") == h.masterKey
}
