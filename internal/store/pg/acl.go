package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fpolysms.io/internal/acl"
	"fpolysms.io/internal/auth"
)

// ACL implements the group/resource/link persistence boundary.
type ACL struct {
	db *sql.DB
}

func (s *ACL) InsertGroup(ctx context.Context, g *acl.PermissionGroup) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into permission_groups (id, name, description)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, g.ID, g.Name, nullIfEmpty(g.Description))
	if err := row.Scan(&g.CreatedAt, &g.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.E(auth.StatusConflict, "group name already in use")
		}
		return err
	}
	return nil
}

func (s *ACL) FindGroupByID(ctx context.Context, id string) (*acl.PermissionGroup, error) {
	return s.findGroup(ctx, `where id = $1`, id)
}

func (s *ACL) FindGroupByName(ctx context.Context, name string) (*acl.PermissionGroup, error) {
	return s.findGroup(ctx, `where name = $1`, name)
}

func (s *ACL) findGroup(ctx context.Context, where string, arg any) (*acl.PermissionGroup, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var (
		g    acl.PermissionGroup
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, created_at, updated_at
		from permission_groups `+where, arg).
		Scan(&g.ID, &g.Name, &desc, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.E(auth.StatusNotFound, "could not find permission group")
	}
	if err != nil {
		return nil, err
	}
	g.Description = desc.String
	return &g, nil
}

func (s *ACL) ListGroups(ctx context.Context) ([]*acl.PermissionGroup, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, created_at, updated_at
		from permission_groups
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*acl.PermissionGroup
	for rows.Next() {
		var (
			g    acl.PermissionGroup
			desc sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.Name, &desc, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Description = desc.String
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *ACL) UpdateGroup(ctx context.Context, id string, upd acl.GroupUpdate) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Description))
		idx++
	}
	if len(sets) == 0 {
		return auth.E(auth.StatusBadRequest, "nothing to update")
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update permission_groups set %s where id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.E(auth.StatusConflict, "group name already in use")
		}
		return err
	}
	return oneAffected(res, "could not find permission group")
}

func (s *ACL) DeleteGroup(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from permission_groups where id = $1`, id)
	if err != nil {
		return err
	}
	return oneAffected(res, "could not find permission group")
}

func (s *ACL) InsertResource(ctx context.Context, r *acl.Resource) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into resources (id, url, method, description)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, r.ID, r.URL, r.Method, nullIfEmpty(r.Description))
	return row.Scan(&r.CreatedAt, &r.UpdatedAt)
}

func (s *ACL) FindResourceByID(ctx context.Context, id string) (*acl.Resource, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var (
		r    acl.Resource
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, url, method, description, created_at, updated_at
		from resources where id = $1
	`, id).Scan(&r.ID, &r.URL, &r.Method, &desc, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.E(auth.StatusNotFound, "could not find resource")
	}
	if err != nil {
		return nil, err
	}
	r.Description = desc.String
	return &r, nil
}

func (s *ACL) ListResources(ctx context.Context) ([]*acl.Resource, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, url, method, description, created_at, updated_at
		from resources
		order by url, method
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResources(rows)
}

func (s *ACL) UpdateResource(ctx context.Context, id string, upd acl.ResourceUpdate) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.URL != nil {
		sets = append(sets, fmt.Sprintf("url = $%d", idx))
		args = append(args, *upd.URL)
		idx++
	}
	if upd.Method != nil {
		sets = append(sets, fmt.Sprintf("method = $%d", idx))
		args = append(args, *upd.Method)
		idx++
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Description))
		idx++
	}
	if len(sets) == 0 {
		return auth.E(auth.StatusBadRequest, "nothing to update")
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update resources set %s where id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return oneAffected(res, "could not find resource")
}

func (s *ACL) DeleteResource(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from resources where id = $1`, id)
	if err != nil {
		return err
	}
	return oneAffected(res, "could not find resource")
}

func (s *ACL) AssignResource(ctx context.Context, groupID, resourceID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into group_resources (group_id, resource_id)
		values ($1, $2)
	`, groupID, resourceID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.E(auth.StatusNotFound, "could not find permission group or resource")
		}
		return err
	}
	return nil
}

func (s *ACL) RemoveResource(ctx context.Context, groupID, resourceID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	// Duplicate links are tolerated on assignment; removal deletes one
	// link row at a time.
	res, err := s.db.ExecContext(ctx, `
		delete from group_resources
		where ctid in (
			select ctid from group_resources
			where group_id = $1 and resource_id = $2
			limit 1
		)
	`, groupID, resourceID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.E(auth.StatusNotFound, "resource is not assigned to group")
	}
	return nil
}

func (s *ACL) ResourcesForGroup(ctx context.Context, groupID string) ([]*acl.Resource, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `select 1 from permission_groups where id = $1`, groupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.E(auth.StatusNotFound, "could not find permission group")
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select distinct r.id, r.url, r.method, r.description, r.created_at, r.updated_at
		from group_resources gr
		join resources r on r.id = gr.resource_id
		where gr.group_id = $1
		order by r.url, r.method
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResources(rows)
}

func collectResources(rows *sql.Rows) ([]*acl.Resource, error) {
	var resources []*acl.Resource
	for rows.Next() {
		var (
			r    acl.Resource
			desc sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.URL, &r.Method, &desc, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Description = desc.String
		resources = append(resources, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return resources, nil
}
