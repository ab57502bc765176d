package acl

import (
	"context"
	"net/http"
	"strings"
	"time"

	"fpolysms.io/internal/auth"
	"fpolysms.io/internal/ids"
)

// apiPrefix is the version prefix stripped from request paths before
// the prefix comparison against resource URLs.
const apiPrefix = "/api/v1"

var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// Service implements the permission evaluator plus the administrative
// operations over groups, resources and their links.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the evaluator over the given store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, auth.E(auth.StatusInternal, "acl store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Evaluate decides whether groupID may touch (requestPath,
// requestMethod): allow iff some assigned resource's url is a prefix
// of the path (after stripping the API version prefix) and its method
// matches case-insensitively. An unknown group denies with the store's
// NotFound error.
func (s *Service) Evaluate(ctx context.Context, groupID, requestPath, requestMethod string) (bool, error) {
	if !ids.IsValid(groupID) {
		return false, auth.E(auth.StatusBadRequest, "malformed group id")
	}
	resources, err := s.store.ResourcesForGroup(ctx, groupID)
	if err != nil {
		return false, err
	}

	path := normalizePath(requestPath)
	method := strings.ToUpper(strings.TrimSpace(requestMethod))
	for _, r := range resources {
		if strings.HasPrefix(path, normalizePath(r.URL)) && strings.EqualFold(r.Method, method) {
			return true, nil
		}
	}
	return false, nil
}

// GroupResources returns the group together with its assigned
// resources, resolved through the link table.
func (s *Service) GroupResources(ctx context.Context, groupID string) (GroupResources, error) {
	if !ids.IsValid(groupID) {
		return GroupResources{}, auth.E(auth.StatusBadRequest, "malformed group id")
	}
	group, err := s.store.FindGroupByID(ctx, groupID)
	if err != nil {
		return GroupResources{}, err
	}
	resources, err := s.store.ResourcesForGroup(ctx, groupID)
	if err != nil {
		return GroupResources{}, err
	}
	out := GroupResources{Group: *group, Resources: make([]Resource, 0, len(resources))}
	for _, r := range resources {
		out.Resources = append(out.Resources, *r)
	}
	return out, nil
}

// ResourceInput carries the fields of a new resource.
type ResourceInput struct {
	URL         string `json:"url"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// CreateResource inserts the resource and immediately links it to the
// group named "Admin". The Admin group must already exist; resource
// creation fails NotFound without it.
func (s *Service) CreateResource(ctx context.Context, in ResourceInput) (Resource, error) {
	url := normalizePath(in.URL)
	method := strings.ToUpper(strings.TrimSpace(in.Method))
	if url == "" || url == "/" {
		return Resource{}, auth.E(auth.StatusBadRequest, "resource url is required")
	}
	if _, ok := allowedMethods[method]; !ok {
		return Resource{}, auth.E(auth.StatusBadRequest, "unsupported http method")
	}

	admin, err := s.store.FindGroupByName(ctx, AdminGroupName)
	if err != nil {
		return Resource{}, err
	}

	now := s.now().UTC()
	res := &Resource{
		ID:          ids.New(),
		URL:         url,
		Method:      method,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertResource(ctx, res); err != nil {
		return Resource{}, err
	}
	if err := s.store.AssignResource(ctx, admin.ID, res.ID); err != nil {
		return Resource{}, err
	}
	return *res, nil
}

// ListResources returns every resource.
func (s *Service) ListResources(ctx context.Context) ([]*Resource, error) {
	return s.store.ListResources(ctx)
}

// GetResource looks a resource up by id.
func (s *Service) GetResource(ctx context.Context, resourceID string) (Resource, error) {
	if !ids.IsValid(resourceID) {
		return Resource{}, auth.E(auth.StatusBadRequest, "malformed resource id")
	}
	r, err := s.store.FindResourceByID(ctx, resourceID)
	if err != nil {
		return Resource{}, err
	}
	return *r, nil
}

// UpdateResource applies a partial update to a resource.
func (s *Service) UpdateResource(ctx context.Context, resourceID string, upd ResourceUpdate) error {
	if !ids.IsValid(resourceID) {
		return auth.E(auth.StatusBadRequest, "malformed resource id")
	}
	if upd.URL == nil && upd.Method == nil && upd.Description == nil {
		return auth.E(auth.StatusBadRequest, "nothing to update")
	}
	if upd.URL != nil {
		u := normalizePath(*upd.URL)
		if u == "" || u == "/" {
			return auth.E(auth.StatusBadRequest, "resource url is required")
		}
		upd.URL = &u
	}
	if upd.Method != nil {
		m := strings.ToUpper(strings.TrimSpace(*upd.Method))
		if _, ok := allowedMethods[m]; !ok {
			return auth.E(auth.StatusBadRequest, "unsupported http method")
		}
		upd.Method = &m
	}
	return s.store.UpdateResource(ctx, resourceID, upd)
}

// DeleteResource removes a resource by id.
func (s *Service) DeleteResource(ctx context.Context, resourceID string) error {
	if !ids.IsValid(resourceID) {
		return auth.E(auth.StatusBadRequest, "malformed resource id")
	}
	return s.store.DeleteResource(ctx, resourceID)
}

// GroupInput carries the fields of a new permission group.
type GroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateGroup inserts a new named group.
func (s *Service) CreateGroup(ctx context.Context, in GroupInput) (PermissionGroup, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return PermissionGroup{}, auth.E(auth.StatusBadRequest, "group name is required")
	}
	now := s.now().UTC()
	g := &PermissionGroup{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertGroup(ctx, g); err != nil {
		return PermissionGroup{}, err
	}
	return *g, nil
}

// ListGroups returns every permission group.
func (s *Service) ListGroups(ctx context.Context) ([]*PermissionGroup, error) {
	return s.store.ListGroups(ctx)
}

// UpdateGroup applies a partial update to a group.
func (s *Service) UpdateGroup(ctx context.Context, groupID string, upd GroupUpdate) error {
	if !ids.IsValid(groupID) {
		return auth.E(auth.StatusBadRequest, "malformed group id")
	}
	if upd.Name == nil && upd.Description == nil {
		return auth.E(auth.StatusBadRequest, "nothing to update")
	}
	if upd.Name != nil {
		n := strings.TrimSpace(*upd.Name)
		if n == "" {
			return auth.E(auth.StatusBadRequest, "group name is required")
		}
		upd.Name = &n
	}
	return s.store.UpdateGroup(ctx, groupID, upd)
}

// DeleteGroup removes a group by id.
func (s *Service) DeleteGroup(ctx context.Context, groupID string) error {
	if !ids.IsValid(groupID) {
		return auth.E(auth.StatusBadRequest, "malformed group id")
	}
	return s.store.DeleteGroup(ctx, groupID)
}

// AssignResource links a resource to a group. Both sides must exist;
// a missing one fails NotFound so the caller can correct the input.
func (s *Service) AssignResource(ctx context.Context, resourceID, groupID string) error {
	if !ids.IsValid(resourceID) || !ids.IsValid(groupID) {
		return auth.E(auth.StatusBadRequest, "malformed resource or group id")
	}
	if _, err := s.store.FindGroupByID(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.store.FindResourceByID(ctx, resourceID); err != nil {
		return err
	}
	return s.store.AssignResource(ctx, groupID, resourceID)
}

// RemoveResource deletes the link between a resource and a group. A
// link that is not there fails NotFound.
func (s *Service) RemoveResource(ctx context.Context, resourceID, groupID string) error {
	if !ids.IsValid(resourceID) || !ids.IsValid(groupID) {
		return auth.E(auth.StatusBadRequest, "malformed resource or group id")
	}
	return s.store.RemoveResource(ctx, groupID, resourceID)
}

// normalizePath trims whitespace and the API version prefix, and
// guarantees a leading slash.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, apiPrefix)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
