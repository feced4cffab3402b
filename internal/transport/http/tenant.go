package http

import "net/http"

const tenantHeader = "X-Tenant-ID"

// tenantID pulls the calling tenant from the request header. Every
// tenant-scoped handler rejects requests without it before touching a service.
func tenantID(r *http.Request) string {
	return r.Header.Get(tenantHeader)
}

func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, codeTenantRequired, "X-Tenant-ID header is required")
		return "", false
	}
	return tenant, true
}
