package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fpolysms.io/internal/auth"
)

// Users implements the user persistence boundary.
type Users struct {
	db *sql.DB
}

const userColumns = `id, student_code, email, full_name, password_hash, group_id,
	tfa_enabled, tfa_secret, metadata, refresh_token, reset_password_token,
	last_sign_in_at, created_at, updated_at`

func (s *Users) Insert(ctx context.Context, u *auth.User) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	metaJSON, err := marshalIdentity(u.Metadata)
	if err != nil {
		return err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, student_code, email, full_name, password_hash, group_id,
			tfa_enabled, tfa_secret, metadata, refresh_token, reset_password_token)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		returning created_at, updated_at
	`, u.ID, u.StudentCode, u.Email, u.FullName, u.PasswordHash, nullIfEmpty(u.GroupID),
		u.TFA.Enabled, u.TFA.Secret, metaJSON, u.RefreshToken, u.ResetPasswordToken)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.E(auth.StatusConflict, "student code or email already in use")
			case pgErrForeignKeyViolation:
				return auth.E(auth.StatusNotFound, "could not find permission group")
			}
		}
		return err
	}
	return nil
}

func (s *Users) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findUser(ctx, `where id = $1`, id)
}

func (s *Users) FindByStudentCode(ctx context.Context, code string) (*auth.User, error) {
	return s.findUser(ctx, `where lower(student_code) = lower($1)`, code)
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findUser(ctx, `where lower(email) = lower($1)`, email)
}

func (s *Users) FindByRefreshToken(ctx context.Context, token string) (*auth.User, error) {
	return s.findUser(ctx, `where refresh_token = $1 and refresh_token <> ''`, token)
}

func (s *Users) FindByResetToken(ctx context.Context, token string) (*auth.User, error) {
	return s.findUser(ctx, `where reset_password_token = $1 and reset_password_token <> ''`, token)
}

func (s *Users) FindByGoogleUID(ctx context.Context, uid string) (*auth.User, error) {
	return s.findUser(ctx, `where metadata->>'uid' = $1`, uid)
}

func (s *Users) findUser(ctx context.Context, where string, arg any) (*auth.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.E(auth.StatusNotFound, "could not find user")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Users) List(ctx context.Context) ([]*auth.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by student_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Users) RecordSignIn(ctx context.Context, id, refreshToken string, at time.Time) error {
	return s.execOne(ctx, `
		update users set refresh_token = $2, last_sign_in_at = $3, updated_at = now()
		where id = $1
	`, id, refreshToken, at)
}

func (s *Users) ClearRefreshToken(ctx context.Context, id string) error {
	return s.execOne(ctx, `
		update users set refresh_token = '', updated_at = now()
		where id = $1
	`, id)
}

func (s *Users) SetTFASecret(ctx context.Context, id, secret string) error {
	return s.execOne(ctx, `
		update users set tfa_secret = $2, tfa_enabled = false, updated_at = now()
		where id = $1
	`, id, secret)
}

func (s *Users) SetTFAEnabled(ctx context.Context, id string, enabled bool) error {
	if enabled {
		return s.execOne(ctx, `
			update users set tfa_enabled = true, updated_at = now()
			where id = $1
		`, id)
	}
	return s.execOne(ctx, `
		update users set tfa_enabled = false, tfa_secret = '', updated_at = now()
		where id = $1
	`, id)
}

func (s *Users) SetMetadata(ctx context.Context, id string, md *auth.GoogleIdentity) error {
	metaJSON, err := marshalIdentity(md)
	if err != nil {
		return err
	}
	return s.execOne(ctx, `
		update users set metadata = $2, updated_at = now()
		where id = $1
	`, id, metaJSON)
}

func (s *Users) SetResetToken(ctx context.Context, id, resetToken string) error {
	return s.execOne(ctx, `
		update users set reset_password_token = $2, updated_at = now()
		where id = $1
	`, id, resetToken)
}

func (s *Users) ResetPasswordByToken(ctx context.Context, resetToken, passwordHash string) error {
	return s.execOne(ctx, `
		update users set password_hash = $2, reset_password_token = '', updated_at = now()
		where reset_password_token = $1 and reset_password_token <> ''
	`, resetToken, passwordHash)
}

func (s *Users) Update(ctx context.Context, id string, upd auth.UserUpdate) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", idx))
		args = append(args, *upd.Email)
		idx++
	}
	if upd.FullName != nil {
		sets = append(sets, fmt.Sprintf("full_name = $%d", idx))
		args = append(args, *upd.FullName)
		idx++
	}
	if upd.GroupID != nil {
		sets = append(sets, fmt.Sprintf("group_id = $%d", idx))
		args = append(args, nullIfEmpty(*upd.GroupID))
		idx++
	}
	if upd.Password != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.Password)
		idx++
	}
	if len(sets) == 0 {
		return auth.E(auth.StatusBadRequest, "nothing to update")
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.E(auth.StatusConflict, "email already in use")
			case pgErrForeignKeyViolation:
				return auth.E(auth.StatusNotFound, "could not find permission group")
			}
		}
		return err
	}
	return oneAffected(res, "could not find user")
}

func (s *Users) Delete(ctx context.Context, id string) error {
	return s.execOne(ctx, `delete from users where id = $1`, id)
}

func (s *Users) execOne(ctx context.Context, query string, args ...any) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return oneAffected(res, "could not find user")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*auth.User, error) {
	var (
		u        auth.User
		groupID  sql.NullString
		rawMeta  []byte
		lastSeen sql.NullTime
	)
	err := row.Scan(&u.ID, &u.StudentCode, &u.Email, &u.FullName, &u.PasswordHash, &groupID,
		&u.TFA.Enabled, &u.TFA.Secret, &rawMeta, &u.RefreshToken, &u.ResetPasswordToken,
		&lastSeen, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		u.GroupID = groupID.String
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		u.LastSignInAt = &t
	}
	if len(rawMeta) > 0 {
		var md auth.GoogleIdentity
		if err := json.Unmarshal(rawMeta, &md); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		u.Metadata = &md
	}
	return &u, nil
}

func marshalIdentity(md *auth.GoogleIdentity) ([]byte, error) {
	if md == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return bytes, nil
}
