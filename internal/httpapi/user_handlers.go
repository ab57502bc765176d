package httpapi

import (
	"net/http"

	"fpolysms.io/internal/audit"
	"fpolysms.io/internal/auth"
)

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.auth.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.create", map[string]any{"created_id": user.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.auth.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	GroupID  *string `json:"group_id"`
	Password *string `json:"password"`
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var in updateUserRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := auth.UserUpdate{
		Email:    in.Email,
		FullName: in.FullName,
		GroupID:  in.GroupID,
		Password: in.Password,
	}
	id := r.PathValue("id")
	if err := a.auth.UpdateUser(r.Context(), id, upd); err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.update", map[string]any{"updated_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"message": "User updated"})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.auth.DeleteUser(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.delete", map[string]any{"deleted_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"message": "User deleted"})
}
