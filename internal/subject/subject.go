package subject

import (
	"context"
	"time"
)

// Subject is a course offering. SubjectCode is the human-facing code
// ("SBJ" plus five digits) and is immutable after creation, as is the
// semester the subject belongs to.
type Subject struct {
	ID          string    `json:"id"`
	SubjectCode string    `json:"subject_code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Credit      int       `json:"credit"`
	Teachers    []string  `json:"teachers"`
	Department  string    `json:"department"`
	Semester    string    `json:"semester"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Update carries the mutable subject fields; nil means unchanged.
type Update struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Credit      *int
	Teachers    *[]string
	Department  *string
}

// Filter narrows a listing. Zero values mean "no constraint"; Name is
// a case-insensitive substring match, the rest are exact.
type Filter struct {
	SubjectCode string
	Name        string
	Credit      int
	Department  string
	Semester    string
}

// Page is one page of a filtered listing together with the unfiltered
// total for the same filter.
type Page struct {
	Subjects   []*Subject `json:"subjects"`
	Total      int        `json:"total_subjects"`
	TotalPages int        `json:"total_pages"`
	Page       int        `json:"current_page"`
	PageSize   int        `json:"page_size"`
}

// Store is the persistence boundary for subjects. Implementations
// return the status-coded errors from the auth package.
type Store interface {
	Insert(ctx context.Context, s *Subject) error
	FindByID(ctx context.Context, id string) (*Subject, error)
	// List returns the requested page plus the total row count for the
	// filter. offset/limit are already validated by the service.
	List(ctx context.Context, f Filter, offset, limit int) ([]*Subject, int, error)
	Update(ctx context.Context, id string, upd Update) error
	Delete(ctx context.Context, id string) error
}
