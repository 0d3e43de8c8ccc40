package audit

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type moduleRoute struct {
	prefix string
	module string
}

// moduleRoutes is evaluated top to bottom; more specific prefixes come first.
var moduleRoutes = []moduleRoute{
	{"/auth/admin", "Admin Authentication"},
	{"/auth", "Authentication"},
	{"/api/church/branches", "Branches"},
	{"/api/church", "Church Profile"},
	{"/api/users", "Users"},
	{"/api/members", "Members"},
	{"/api/tithes", "Tithe"},
	{"/api/offerings", "Offerings"},
	{"/api/pledges", "Pledges"},
	{"/api/welfare", "Welfare"},
	{"/api/business-ventures", "Business Ventures"},
	{"/api/expenses", "Expenses"},
	{"/api/church-projects", "Church Projects"},
	{"/api/special-funds", "Special Funds"},
	{"/api/financial-statement", "Financial Statement"},
	{"/api/billing", "Billing"},
	{"/api/audit-logs", "Audit Logs"},
}

// UnknownModule labels paths no route prefix matches.
const UnknownModule = "Other"

// InferModule maps a request path to the module it belongs to.
func InferModule(path string) string {
	for _, r := range moduleRoutes {
		if path == r.prefix || strings.HasPrefix(path, r.prefix+"/") {
			return r.module
		}
	}
	return UnknownModule
}

// InferAction derives a human-readable action from the verb, the path and the decoded request body.
func InferAction(method, path string, body map[string]interface{}) string {
	p := strings.ToLower(path)
	switch {
	case strings.Contains(p, "/login"):
		return "Login"
	case strings.Contains(p, "/register"):
		return "Register"
	case strings.Contains(p, "/logout"):
		return "Logout"
	case strings.Contains(p, "convert"):
		return "Convert"
	case strings.Contains(p, "approve"):
		return "Approve"
	case strings.Contains(p, "reject"):
		return "Reject"
	}

	if method == http.MethodPatch || method == http.MethodPut {
		for _, k := range []string{"isActive", "is_active"} {
			if v, ok := body[k].(bool); ok {
				if v {
					return "Activate"
				}
				return "Deactivate"
			}
		}
		if _, ok := body["status"]; ok {
			return "StatusChange"
		}
	}

	switch method {
	case http.MethodPost:
		return "Create"
	case http.MethodPut, http.MethodPatch:
		return "Update"
	case http.MethodDelete:
		return "Delete"
	}
	return method
}

var resourceParams = []string{"id", "memberId", "userId", "entryId", "branchId", "churchId"}

// InferResourceID returns the first path parameter that names a resource.
func InferResourceID(params gin.Params) string {
	for _, name := range resourceParams {
		if v, ok := params.Get(name); ok && v != "" {
			return v
		}
	}
	return ""
}
