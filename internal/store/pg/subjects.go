package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fpolysms.io/internal/auth"
	"fpolysms.io/internal/subject"
)

// Subjects implements the subject persistence boundary. The teacher
// list is stored as a jsonb array.
type Subjects struct {
	db *sql.DB
}

const subjectColumns = `id, subject_code, name, description, start_date, end_date,
	credit, teachers, department, semester, created_at, updated_at`

func (s *Subjects) Insert(ctx context.Context, sub *subject.Subject) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	teachers, err := json.Marshal(sub.Teachers)
	if err != nil {
		return fmt.Errorf("marshal teachers: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into subjects (id, subject_code, name, description, start_date, end_date,
			credit, teachers, department, semester)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning created_at, updated_at
	`, sub.ID, sub.SubjectCode, sub.Name, sub.Description, sub.StartDate, sub.EndDate,
		sub.Credit, teachers, sub.Department, sub.Semester)
	if err := row.Scan(&sub.CreatedAt, &sub.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.E(auth.StatusConflict, "subject code already in use")
		}
		return err
	}
	return nil
}

func (s *Subjects) FindByID(ctx context.Context, id string) (*subject.Subject, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `select `+subjectColumns+` from subjects where id = $1`, id)
	sub, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.E(auth.StatusNotFound, "could not find subject")
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Subjects) List(ctx context.Context, f subject.Filter, offset, limit int) ([]*subject.Subject, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	where, args := subjectFilter(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from subjects`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from subjects%s order by subject_code limit $%d offset $%d`,
		subjectColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var subjects []*subject.Subject
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, 0, err
		}
		subjects = append(subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return subjects, total, nil
}

func (s *Subjects) Update(ctx context.Context, id string, upd subject.Update) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.StartDate != nil {
		add("start_date", *upd.StartDate)
	}
	if upd.EndDate != nil {
		add("end_date", *upd.EndDate)
	}
	if upd.Credit != nil {
		add("credit", *upd.Credit)
	}
	if upd.Teachers != nil {
		teachers, err := json.Marshal(*upd.Teachers)
		if err != nil {
			return fmt.Errorf("marshal teachers: %w", err)
		}
		add("teachers", teachers)
	}
	if upd.Department != nil {
		add("department", *upd.Department)
	}
	if len(sets) == 0 {
		return auth.E(auth.StatusBadRequest, "nothing to update")
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update subjects set %s where id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return oneAffected(res, "could not find subject")
}

func (s *Subjects) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from subjects where id = $1`, id)
	if err != nil {
		return err
	}
	return oneAffected(res, "could not find subject")
}

func subjectFilter(f subject.Filter) (string, []any) {
	var (
		conds []string
		args  []any
		idx   = 1
	)
	add := func(cond string, val any) {
		conds = append(conds, fmt.Sprintf(cond, idx))
		args = append(args, val)
		idx++
	}
	if f.SubjectCode != "" {
		add("subject_code = $%d", f.SubjectCode)
	}
	if f.Name != "" {
		add("name ilike '%%' || $%d || '%%'", f.Name)
	}
	if f.Credit != 0 {
		add("credit = $%d", f.Credit)
	}
	if f.Department != "" {
		add("department = $%d", f.Department)
	}
	if f.Semester != "" {
		add("semester = $%d", f.Semester)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}

func scanSubject(row scanner) (*subject.Subject, error) {
	var (
		sub      subject.Subject
		teachers []byte
	)
	err := row.Scan(&sub.ID, &sub.SubjectCode, &sub.Name, &sub.Description,
		&sub.StartDate, &sub.EndDate, &sub.Credit, &teachers,
		&sub.Department, &sub.Semester, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(teachers) > 0 {
		if err := json.Unmarshal(teachers, &sub.Teachers); err != nil {
			return nil, fmt.Errorf("decode teachers: %w", err)
		}
	}
	return &sub, nil
}
