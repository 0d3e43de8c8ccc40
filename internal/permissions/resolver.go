package permissions

import "encoding/json"

// Actions is the expanded capability set for one module.
type Actions struct {
	Read   bool `json:"read"`
	Create bool `json:"create"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// Has reports whether a is granted.
func (a Actions) Has(action Action) bool {
	switch action {
	case ActionRead:
		return a.Read
	case ActionCreate:
		return a.Create
	case ActionUpdate:
		return a.Update
	case ActionDelete:
		return a.Delete
	}
	return false
}

// Matrix is a fully expanded permission matrix. Super collapses every check to allowed.
type Matrix struct {
	Super   bool
	Modules map[string]Actions
}

// Allows reports whether the matrix grants action on module.
func (m Matrix) Allows(module string, action Action) bool {
	if m.Super {
		return true
	}
	return m.Modules[module].Has(action)
}

// MarshalJSON renders the wildcard matrix as {"super":true} and everything else as module -> actions.
func (m Matrix) MarshalJSON() ([]byte, error) {
	if m.Super {
		return json.Marshal(map[string]bool{"super": true})
	}
	if m.Modules == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.Modules)
}

// Resolve expands role into a permission matrix. Unknown roles get an empty, all-denied matrix.
func Resolve(role string) Matrix {
	cfg, ok := roleTable[NormalizeRole(role)]
	if !ok {
		return Matrix{Modules: map[string]Actions{}}
	}
	if cfg.All {
		return Matrix{Super: true}
	}
	out := make(map[string]Actions, len(Registry))
	for _, module := range Registry {
		var a Actions
		for _, act := range cfg.Modules[module] {
			switch act {
			case ActionRead:
				a.Read = true
			case ActionCreate:
				a.Create = true
			case ActionUpdate:
				a.Update = true
			case ActionDelete:
				a.Delete = true
			}
		}
		out[module] = a
	}
	return Matrix{Modules: out}
}

// ActionForMethod maps an HTTP verb to the CRUD action it needs.
func ActionForMethod(method string) Action {
	switch method {
	case "POST":
		return ActionCreate
	case "PUT", "PATCH":
		return ActionUpdate
	case "DELETE":
		return ActionDelete
	}
	return ActionRead
}

// IsMutating reports whether method writes data.
func IsMutating(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

// IsSystemRole reports whether raw normalizes to a system role.
func IsSystemRole(raw string) bool {
	return NormalizeRole(raw).IsSystem()
}
