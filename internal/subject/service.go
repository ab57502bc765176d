package subject

import (
	"context"
	"regexp"
	"strings"
	"time"

	"fpolysms.io/internal/auth"
	"fpolysms.io/internal/ids"
)

var (
	subjectCodeRe = regexp.MustCompile(`^SBJ\d{5}$`)
	semesterRe    = regexp.MustCompile(`^(Summer|Spring|Fall)\s+\d{4}$`)
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service implements subject CRUD and filtered listing.
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

// NewService constructs the subject service over the given store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, auth.E(auth.StatusInternal, "subject store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Input carries the fields of a new subject.
type Input struct {
	SubjectCode string    `json:"subject_code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Credit      int       `json:"credit"`
	Teachers    []string  `json:"teachers"`
	Department  string    `json:"department"`
	Semester    string    `json:"semester"`
}

// Create validates and inserts a new subject. A duplicate subject code
// fails Conflict from the store.
func (s *Service) Create(ctx context.Context, in Input) (Subject, error) {
	in.SubjectCode = strings.TrimSpace(in.SubjectCode)
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Department = strings.TrimSpace(in.Department)
	in.Semester = strings.TrimSpace(in.Semester)

	if !subjectCodeRe.MatchString(in.SubjectCode) {
		return Subject{}, auth.E(auth.StatusBadRequest, "subject code must be SBJ followed by five digits")
	}
	if err := validateName(in.Name); err != nil {
		return Subject{}, err
	}
	if err := validateDescription(in.Description); err != nil {
		return Subject{}, err
	}
	if err := validateDates(in.StartDate, in.EndDate); err != nil {
		return Subject{}, err
	}
	if err := validateCredit(in.Credit); err != nil {
		return Subject{}, err
	}
	if err := validateTeachers(in.Teachers); err != nil {
		return Subject{}, err
	}
	if in.Department == "" {
		return Subject{}, auth.E(auth.StatusBadRequest, "department is required")
	}
	if !semesterRe.MatchString(in.Semester) {
		return Subject{}, auth.E(auth.StatusBadRequest, "semester must look like Summer 2023")
	}

	now := s.now().UTC()
	sub := &Subject{
		ID:          ids.New(),
		SubjectCode: in.SubjectCode,
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Credit:      in.Credit,
		Teachers:    in.Teachers,
		Department:  in.Department,
		Semester:    in.Semester,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, sub); err != nil {
		return Subject{}, err
	}
	return *sub, nil
}

// Get looks a subject up by id.
func (s *Service) Get(ctx context.Context, id string) (Subject, error) {
	if !ids.IsValid(id) {
		return Subject{}, auth.E(auth.StatusBadRequest, "malformed subject id")
	}
	sub, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	return *sub, nil
}

// List returns one page of subjects matching the filter. page starts
// at 1; out-of-range pagination values fall back to defaults.
func (s *Service) List(ctx context.Context, f Filter, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if f.Credit != 0 {
		if err := validateCredit(f.Credit); err != nil {
			return Page{}, err
		}
	}

	subjects, total, err := s.store.List(ctx, f, (page-1)*pageSize, pageSize)
	if err != nil {
		return Page{}, err
	}
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	if subjects == nil {
		subjects = []*Subject{}
	}
	return Page{
		Subjects:   subjects,
		Total:      total,
		TotalPages: totalPages,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Update applies a partial update. The subject code and semester are
// immutable; callers that need either changed recreate the subject.
func (s *Service) Update(ctx context.Context, id string, upd Update) error {
	if !ids.IsValid(id) {
		return auth.E(auth.StatusBadRequest, "malformed subject id")
	}
	if upd == (Update{}) {
		return auth.E(auth.StatusBadRequest, "nothing to update")
	}
	if upd.Name != nil {
		n := strings.TrimSpace(*upd.Name)
		if err := validateName(n); err != nil {
			return err
		}
		upd.Name = &n
	}
	if upd.Description != nil {
		d := strings.TrimSpace(*upd.Description)
		if err := validateDescription(d); err != nil {
			return err
		}
		upd.Description = &d
	}
	if upd.Credit != nil {
		if err := validateCredit(*upd.Credit); err != nil {
			return err
		}
	}
	if upd.Teachers != nil {
		if err := validateTeachers(*upd.Teachers); err != nil {
			return err
		}
	}
	if upd.Department != nil && strings.TrimSpace(*upd.Department) == "" {
		return auth.E(auth.StatusBadRequest, "department is required")
	}

	// Date changes must stay ordered against whichever bound is kept.
	if upd.StartDate != nil || upd.EndDate != nil {
		current, err := s.store.FindByID(ctx, id)
		if err != nil {
			return err
		}
		start, end := current.StartDate, current.EndDate
		if upd.StartDate != nil {
			start = *upd.StartDate
		}
		if upd.EndDate != nil {
			end = *upd.EndDate
		}
		if err := validateDates(start, end); err != nil {
			return err
		}
	}
	return s.store.Update(ctx, id, upd)
}

// Delete removes a subject by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !ids.IsValid(id) {
		return auth.E(auth.StatusBadRequest, "malformed subject id")
	}
	return s.store.Delete(ctx, id)
}

func validateName(name string) error {
	if len(name) < 3 || len(name) > 100 {
		return auth.E(auth.StatusBadRequest, "subject name must be 3 to 100 characters")
	}
	return nil
}

func validateDescription(desc string) error {
	if len(desc) < 10 || len(desc) > 500 {
		return auth.E(auth.StatusBadRequest, "description must be 10 to 500 characters")
	}
	return nil
}

func validateDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return auth.E(auth.StatusBadRequest, "start and end dates are required")
	}
	if !end.After(start) {
		return auth.E(auth.StatusBadRequest, "end date must be after start date")
	}
	return nil
}

func validateCredit(credit int) error {
	if credit < 1 || credit > 5 {
		return auth.E(auth.StatusBadRequest, "credit must be between 1 and 5")
	}
	return nil
}

func validateTeachers(teachers []string) error {
	if len(teachers) == 0 {
		return auth.E(auth.StatusBadRequest, "at least one teacher is required")
	}
	for _, t := range teachers {
		if strings.TrimSpace(t) == "" {
			return auth.E(auth.StatusBadRequest, "teacher ids must be non-empty")
		}
	}
	return nil
}
