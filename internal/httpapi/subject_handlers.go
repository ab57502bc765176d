package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"fpolysms.io/internal/subject"
)

func (a *API) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var in subject.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.subjects.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"subject": created})
}

func (a *API) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	s, err := a.subjects.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subject": s})
}

func (a *API) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := subject.Filter{
		SubjectCode: q.Get("subjectId"),
		Name:        q.Get("name"),
		Department:  q.Get("department"),
		Semester:    q.Get("semester"),
	}
	if raw := q.Get("credit"); raw != "" {
		credit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "credit must be an integer")
			return
		}
		f.Credit = credit
	}
	page := queryInt(q.Get("page"))
	pageSize := queryInt(q.Get("limit"))

	out, err := a.subjects.List(r.Context(), f, page, pageSize)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type updateSubjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Credit      *int       `json:"credit"`
	Teachers    *[]string  `json:"teachers"`
	Department  *string    `json:"department"`
}

func (a *API) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	var in updateSubjectRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := subject.Update{
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Credit:      in.Credit,
		Teachers:    in.Teachers,
		Department:  in.Department,
	}
	if err := a.subjects.Update(r.Context(), r.PathValue("id"), upd); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Subject updated"})
}

func (a *API) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	if err := a.subjects.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Subject deleted"})
}
