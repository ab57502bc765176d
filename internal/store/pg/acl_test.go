package pg

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"fpolysms.io/internal/acl"
	"fpolysms.io/internal/auth"
)

func newMockACL(t *testing.T) (*ACL, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewStore(db).ACL(), mock, func() { _ = db.Close() }
}

func TestACLInsertGroup(t *testing.T) {
	store, mock, done := newMockACL(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("insert into permission_groups").
		WithArgs("b1b2c3d4a1b2c3d4a1b2c3d4", "Admin", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	g := &acl.PermissionGroup{ID: "b1b2c3d4a1b2c3d4a1b2c3d4", Name: "Admin"}
	if err := store.InsertGroup(context.Background(), g); err != nil {
		t.Fatalf("InsertGroup: %v", err)
	}

	mock.ExpectQuery("insert into permission_groups").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	err := store.InsertGroup(context.Background(), &acl.PermissionGroup{ID: "c1b2c3d4a1b2c3d4a1b2c3d4", Name: "Admin"})
	if auth.StatusOf(err) != auth.StatusConflict {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestACLFindGroupByName(t *testing.T) {
	store, mock, done := newMockACL(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("select id, name, description, created_at, updated_at.*from permission_groups where name").
		WithArgs("Admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
			AddRow("b1b2c3d4a1b2c3d4a1b2c3d4", "Admin", nil, now, now))

	g, err := store.FindGroupByName(context.Background(), "Admin")
	if err != nil {
		t.Fatalf("FindGroupByName: %v", err)
	}
	if g.ID != "b1b2c3d4a1b2c3d4a1b2c3d4" || g.Description != "" {
		t.Fatalf("unexpected group: %+v", g)
	}

	mock.ExpectQuery("from permission_groups where name").
		WithArgs("Ghost").
		WillReturnError(sql.ErrNoRows)
	_, err = store.FindGroupByName(context.Background(), "Ghost")
	if auth.StatusOf(err) != auth.StatusNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestACLAssignResource(t *testing.T) {
	store, mock, done := newMockACL(t)
	defer done()
	ctx := context.Background()

	mock.ExpectExec("insert into group_resources").
		WithArgs("b1b2c3d4a1b2c3d4a1b2c3d4", "d1b2c3d4a1b2c3d4a1b2c3d4").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.AssignResource(ctx, "b1b2c3d4a1b2c3d4a1b2c3d4", "d1b2c3d4a1b2c3d4a1b2c3d4"); err != nil {
		t.Fatalf("AssignResource: %v", err)
	}

	// A dangling reference maps the FK violation to NotFound.
	mock.ExpectExec("insert into group_resources").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})
	err := store.AssignResource(ctx, "b1b2c3d4a1b2c3d4a1b2c3d4", "ffffffffffffffffffffffff")
	if auth.StatusOf(err) != auth.StatusNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestACLRemoveResource(t *testing.T) {
	store, mock, done := newMockACL(t)
	defer done()
	ctx := context.Background()

	mock.ExpectExec("delete from group_resources").
		WithArgs("b1b2c3d4a1b2c3d4a1b2c3d4", "d1b2c3d4a1b2c3d4a1b2c3d4").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.RemoveResource(ctx, "b1b2c3d4a1b2c3d4a1b2c3d4", "d1b2c3d4a1b2c3d4a1b2c3d4"); err != nil {
		t.Fatalf("RemoveResource: %v", err)
	}

	mock.ExpectExec("delete from group_resources").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.RemoveResource(ctx, "b1b2c3d4a1b2c3d4a1b2c3d4", "d1b2c3d4a1b2c3d4a1b2c3d4")
	if auth.StatusOf(err) != auth.StatusNotFound {
		t.Fatalf("expected NotFound for absent link, got %v", err)
	}
}

func TestACLResourcesForGroup(t *testing.T) {
	store, mock, done := newMockACL(t)
	defer done()
	ctx := context.Background()
	groupID := "b1b2c3d4a1b2c3d4a1b2c3d4"
	now := time.Now().UTC()

	mock.ExpectQuery("select 1 from permission_groups where id").
		WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("from group_resources gr.*join resources r").
		WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "url", "method", "description", "created_at", "updated_at"}).
			AddRow("d1b2c3d4a1b2c3d4a1b2c3d4", "/subjects", "GET", "list subjects", now, now).
			AddRow("e1b2c3d4a1b2c3d4a1b2c3d4", "/subjects", "POST", nil, now, now))

	resources, err := store.ResourcesForGroup(ctx, groupID)
	if err != nil {
		t.Fatalf("ResourcesForGroup: %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	if resources[1].Description != "" {
		t.Fatalf("null description must map to empty string: %+v", resources[1])
	}

	// Unknown group fails before the join runs.
	mock.ExpectQuery("select 1 from permission_groups where id").
		WithArgs("ffffffffffffffffffffffff").
		WillReturnError(sql.ErrNoRows)
	_, err = store.ResourcesForGroup(ctx, "ffffffffffffffffffffffff")
	if auth.StatusOf(err) != auth.StatusNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestACLUpdateResource(t *testing.T) {
	store, mock, done := newMockACL(t)
	defer done()
	ctx := context.Background()
	id := "d1b2c3d4a1b2c3d4a1b2c3d4"

	url := "/users"
	method := "PATCH"
	mock.ExpectExec(`update resources set url = \$1, method = \$2, updated_at = now\(\) where id = \$3`).
		WithArgs(url, method, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.UpdateResource(ctx, id, acl.ResourceUpdate{URL: &url, Method: &method}); err != nil {
		t.Fatalf("UpdateResource: %v", err)
	}

	mock.ExpectExec("update resources set url").
		WithArgs(url, id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.UpdateResource(ctx, id, acl.ResourceUpdate{URL: &url})
	if auth.StatusOf(err) != auth.StatusNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
