package httpapi

import (
	"context"
	"sort"
	"strings"
	"time"

	"fpolysms.io/internal/acl"
	"fpolysms.io/internal/auth"
	"fpolysms.io/internal/idp"
	"fpolysms.io/internal/subject"
)

// In-memory store fakes backing the handler tests. Behavior mirrors the
// postgres implementations: status-coded errors, NotFound on missing
// records, Conflict on uniqueness violations.

type memUsers struct {
	users map[string]*auth.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*auth.User)}
}

func (m *memUsers) Insert(_ context.Context, u *auth.User) error {
	for _, existing := range m.users {
		if strings.EqualFold(existing.StudentCode, u.StudentCode) || existing.Email == u.Email {
			return auth.E(auth.StatusConflict, "student code or email already in use")
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, auth.E(auth.StatusNotFound, "could not find user")
}

func (m *memUsers) FindByStudentCode(_ context.Context, code string) (*auth.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.StudentCode, code) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.E(auth.StatusNotFound, "could not find user")
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.E(auth.StatusNotFound, "could not find user")
}

func (m *memUsers) FindByRefreshToken(_ context.Context, tok string) (*auth.User, error) {
	for _, u := range m.users {
		if u.RefreshToken != "" && u.RefreshToken == tok {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.E(auth.StatusNotFound, "invalid refresh token")
}

func (m *memUsers) FindByResetToken(_ context.Context, tok string) (*auth.User, error) {
	for _, u := range m.users {
		if u.ResetPasswordToken != "" && u.ResetPasswordToken == tok {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.E(auth.StatusNotFound, "invalid reset token")
}

func (m *memUsers) FindByGoogleUID(_ context.Context, uid string) (*auth.User, error) {
	for _, u := range m.users {
		if u.Metadata != nil && u.Metadata.UID == uid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.E(auth.StatusNotFound, "could not find user")
}

func (m *memUsers) List(_ context.Context) ([]*auth.User, error) {
	out := make([]*auth.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memUsers) mutate(id string, fn func(*auth.User)) error {
	u, ok := m.users[id]
	if !ok {
		return auth.E(auth.StatusNotFound, "could not find user")
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memUsers) RecordSignIn(_ context.Context, id, refreshToken string, at time.Time) error {
	return m.mutate(id, func(u *auth.User) {
		u.RefreshToken = refreshToken
		u.LastSignInAt = &at
	})
}

func (m *memUsers) ClearRefreshToken(_ context.Context, id string) error {
	return m.mutate(id, func(u *auth.User) { u.RefreshToken = "" })
}

func (m *memUsers) SetTFASecret(_ context.Context, id, secret string) error {
	return m.mutate(id, func(u *auth.User) {
		u.TFA = auth.TFAState{Enabled: false, Secret: secret}
	})
}

func (m *memUsers) SetTFAEnabled(_ context.Context, id string, enabled bool) error {
	return m.mutate(id, func(u *auth.User) {
		u.TFA.Enabled = enabled
		if !enabled {
			u.TFA.Secret = ""
		}
	})
}

func (m *memUsers) SetMetadata(_ context.Context, id string, md *auth.GoogleIdentity) error {
	return m.mutate(id, func(u *auth.User) { u.Metadata = md })
}

func (m *memUsers) SetResetToken(_ context.Context, id, resetToken string) error {
	return m.mutate(id, func(u *auth.User) { u.ResetPasswordToken = resetToken })
}

func (m *memUsers) ResetPasswordByToken(_ context.Context, resetToken, passwordHash string) error {
	for id, u := range m.users {
		if u.ResetPasswordToken == resetToken {
			return m.mutate(id, func(u *auth.User) {
				u.PasswordHash = passwordHash
				u.ResetPasswordToken = ""
			})
		}
	}
	return auth.E(auth.StatusNotFound, "invalid reset token")
}

func (m *memUsers) Update(_ context.Context, id string, upd auth.UserUpdate) error {
	return m.mutate(id, func(u *auth.User) {
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		if upd.FullName != nil {
			u.FullName = *upd.FullName
		}
		if upd.GroupID != nil {
			u.GroupID = *upd.GroupID
		}
		if upd.Password != nil {
			u.PasswordHash = *upd.Password
		}
	})
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return auth.E(auth.StatusNotFound, "could not find user")
	}
	delete(m.users, id)
	return nil
}

type aclLink struct {
	groupID    string
	resourceID string
}

type memACL struct {
	groups    map[string]*acl.PermissionGroup
	resources map[string]*acl.Resource
	links     []aclLink
}

func newMemACL() *memACL {
	return &memACL{
		groups:    make(map[string]*acl.PermissionGroup),
		resources: make(map[string]*acl.Resource),
	}
}

func (m *memACL) InsertGroup(_ context.Context, g *acl.PermissionGroup) error {
	for _, existing := range m.groups {
		if existing.Name == g.Name {
			return auth.E(auth.StatusConflict, "group name already in use")
		}
	}
	cp := *g
	m.groups[g.ID] = &cp
	return nil
}

func (m *memACL) FindGroupByID(_ context.Context, id string) (*acl.PermissionGroup, error) {
	if g, ok := m.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, auth.E(auth.StatusNotFound, "could not find permission group")
}

func (m *memACL) FindGroupByName(_ context.Context, name string) (*acl.PermissionGroup, error) {
	for _, g := range m.groups {
		if g.Name == name {
			cp := *g
			return &cp, nil
		}
	}
	return nil, auth.E(auth.StatusNotFound, "could not find permission group")
}

func (m *memACL) ListGroups(_ context.Context) ([]*acl.PermissionGroup, error) {
	out := make([]*acl.PermissionGroup, 0, len(m.groups))
	for _, g := range m.groups {
		cp := *g
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memACL) UpdateGroup(_ context.Context, id string, upd acl.GroupUpdate) error {
	g, ok := m.groups[id]
	if !ok {
		return auth.E(auth.StatusNotFound, "could not find permission group")
	}
	if upd.Name != nil {
		g.Name = *upd.Name
	}
	if upd.Description != nil {
		g.Description = *upd.Description
	}
	return nil
}

func (m *memACL) DeleteGroup(_ context.Context, id string) error {
	if _, ok := m.groups[id]; !ok {
		return auth.E(auth.StatusNotFound, "could not find permission group")
	}
	delete(m.groups, id)
	return nil
}

func (m *memACL) InsertResource(_ context.Context, r *acl.Resource) error {
	cp := *r
	m.resources[r.ID] = &cp
	return nil
}

func (m *memACL) FindResourceByID(_ context.Context, id string) (*acl.Resource, error) {
	if r, ok := m.resources[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, auth.E(auth.StatusNotFound, "could not find resource")
}

func (m *memACL) ListResources(_ context.Context) ([]*acl.Resource, error) {
	out := make([]*acl.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memACL) UpdateResource(_ context.Context, id string, upd acl.ResourceUpdate) error {
	r, ok := m.resources[id]
	if !ok {
		return auth.E(auth.StatusNotFound, "could not find resource")
	}
	if upd.URL != nil {
		r.URL = *upd.URL
	}
	if upd.Method != nil {
		r.Method = *upd.Method
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	return nil
}

func (m *memACL) DeleteResource(_ context.Context, id string) error {
	if _, ok := m.resources[id]; !ok {
		return auth.E(auth.StatusNotFound, "could not find resource")
	}
	delete(m.resources, id)
	return nil
}

func (m *memACL) AssignResource(_ context.Context, groupID, resourceID string) error {
	m.links = append(m.links, aclLink{groupID: groupID, resourceID: resourceID})
	return nil
}

func (m *memACL) RemoveResource(_ context.Context, groupID, resourceID string) error {
	for i, l := range m.links {
		if l.groupID == groupID && l.resourceID == resourceID {
			m.links = append(m.links[:i], m.links[i+1:]...)
			return nil
		}
	}
	return auth.E(auth.StatusNotFound, "resource is not assigned to group")
}

func (m *memACL) ResourcesForGroup(_ context.Context, groupID string) ([]*acl.Resource, error) {
	if _, ok := m.groups[groupID]; !ok {
		return nil, auth.E(auth.StatusNotFound, "could not find permission group")
	}
	var out []*acl.Resource
	for _, l := range m.links {
		if l.groupID != groupID {
			continue
		}
		if r, ok := m.resources[l.resourceID]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memSubjects struct {
	subjects map[string]*subject.Subject
	order    []string
}

func newMemSubjects() *memSubjects {
	return &memSubjects{subjects: make(map[string]*subject.Subject)}
}

func (m *memSubjects) Insert(_ context.Context, s *subject.Subject) error {
	for _, existing := range m.subjects {
		if strings.EqualFold(existing.SubjectCode, s.SubjectCode) {
			return auth.E(auth.StatusConflict, "subject code already in use")
		}
	}
	cp := *s
	m.subjects[s.ID] = &cp
	m.order = append(m.order, s.ID)
	return nil
}

func (m *memSubjects) FindByID(_ context.Context, id string) (*subject.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, auth.E(auth.StatusNotFound, "could not find subject")
}

func (m *memSubjects) List(_ context.Context, f subject.Filter, offset, limit int) ([]*subject.Subject, int, error) {
	var all []*subject.Subject
	ordered := append([]string(nil), m.order...)
	sort.Strings(ordered)
	for _, id := range ordered {
		s, ok := m.subjects[id]
		if !ok || !m.matches(s, f) {
			continue
		}
		cp := *s
		all = append(all, &cp)
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memSubjects) matches(s *subject.Subject, f subject.Filter) bool {
	if f.SubjectCode != "" && s.SubjectCode != f.SubjectCode {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Credit != 0 && s.Credit != f.Credit {
		return false
	}
	if f.Department != "" && s.Department != f.Department {
		return false
	}
	if f.Semester != "" && s.Semester != f.Semester {
		return false
	}
	return true
}

func (m *memSubjects) Update(_ context.Context, id string, upd subject.Update) error {
	s, ok := m.subjects[id]
	if !ok {
		return auth.E(auth.StatusNotFound, "could not find subject")
	}
	if upd.Name != nil {
		s.Name = *upd.Name
	}
	if upd.Description != nil {
		s.Description = *upd.Description
	}
	if upd.StartDate != nil {
		s.StartDate = *upd.StartDate
	}
	if upd.EndDate != nil {
		s.EndDate = *upd.EndDate
	}
	if upd.Credit != nil {
		s.Credit = *upd.Credit
	}
	if upd.Teachers != nil {
		s.Teachers = append([]string(nil), (*upd.Teachers)...)
	}
	if upd.Department != nil {
		s.Department = *upd.Department
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memSubjects) Delete(_ context.Context, id string) error {
	if _, ok := m.subjects[id]; !ok {
		return auth.E(auth.StatusNotFound, "could not find subject")
	}
	delete(m.subjects, id)
	return nil
}

// stubVerifier returns a fixed identity for one accepted token.
type stubVerifier struct {
	accept   string
	identity idp.Identity
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, raw string) (idp.Identity, error) {
	if raw != s.accept {
		return idp.Identity{}, idp.ErrInvalidIDToken
	}
	return s.identity, nil
}
