package acl

import "time"

// AdminGroupName is the bootstrap administrative group. It must be
// seeded before any resource is created: CreateResource auto-assigns
// every new resource to it.
const AdminGroupName = "Admin"

// PermissionGroup is a named role. Users reference it by id, and
// resources are linked to it through group-resource links.
type PermissionGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Resource describes a protected API endpoint as a (URL prefix, HTTP
// method) pair.
type Resource struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Method      string    `json:"method"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GroupResources pairs a group with the resources assigned to it.
type GroupResources struct {
	Group     PermissionGroup `json:"group"`
	Resources []Resource      `json:"resources"`
}
