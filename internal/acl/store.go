package acl

import "context"

// Store is the persistence boundary for groups, resources and their
// links. Implementations return the status-coded errors from the auth
// package: NotFound for missing rows, Conflict for duplicate names.
type Store interface {
	InsertGroup(ctx context.Context, g *PermissionGroup) error
	FindGroupByID(ctx context.Context, id string) (*PermissionGroup, error)
	FindGroupByName(ctx context.Context, name string) (*PermissionGroup, error)
	ListGroups(ctx context.Context) ([]*PermissionGroup, error)
	UpdateGroup(ctx context.Context, id string, upd GroupUpdate) error
	DeleteGroup(ctx context.Context, id string) error

	InsertResource(ctx context.Context, r *Resource) error
	FindResourceByID(ctx context.Context, id string) (*Resource, error)
	ListResources(ctx context.Context) ([]*Resource, error)
	UpdateResource(ctx context.Context, id string, upd ResourceUpdate) error
	DeleteResource(ctx context.Context, id string) error

	// AssignResource inserts a (group, resource) link. Duplicate links
	// are tolerated; the evaluator is idempotent over them.
	AssignResource(ctx context.Context, groupID, resourceID string) error
	// RemoveResource deletes the link, failing NotFound when no link
	// row matched.
	RemoveResource(ctx context.Context, groupID, resourceID string) error
	// ResourcesForGroup resolves the group's assigned resources via the
	// link table.
	ResourcesForGroup(ctx context.Context, groupID string) ([]*Resource, error)
}

// GroupUpdate carries the mutable group fields; nil means unchanged.
type GroupUpdate struct {
	Name        *string
	Description *string
}

// ResourceUpdate carries the mutable resource fields; nil means
// unchanged.
type ResourceUpdate struct {
	URL         *string
	Method      *string
	Description *string
}
