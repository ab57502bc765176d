package httpapi

import (
	"net/http"

	"fpolysms.io/internal/acl"
	"fpolysms.io/internal/audit"
)

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var in acl.GroupInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	group, err := a.acl.CreateGroup(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"permission_group": group})
}

func (a *API) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.acl.ListGroups(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permission_groups": groups})
}

func (a *API) handleGroupResources(w http.ResponseWriter, r *http.Request) {
	out, err := a.acl.GroupResources(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (a *API) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var in updateGroupRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := acl.GroupUpdate{Name: in.Name, Description: in.Description}
	if err := a.acl.UpdateGroup(r.Context(), r.PathValue("id"), upd); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Permission group updated"})
}

func (a *API) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := a.acl.DeleteGroup(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Permission group deleted"})
}

func (a *API) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var in acl.ResourceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.acl.CreateResource(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "acl.resource_create", map[string]any{
		"resource_id": res.ID,
		"url":         res.URL,
		"method":      res.Method,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"resource": res})
}

func (a *API) handleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := a.acl.ListResources(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

func (a *API) handleGetResource(w http.ResponseWriter, r *http.Request) {
	res, err := a.acl.GetResource(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resource": res})
}

type updateResourceRequest struct {
	URL         *string `json:"url"`
	Method      *string `json:"method"`
	Description *string `json:"description"`
}

func (a *API) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	var in updateResourceRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := acl.ResourceUpdate{URL: in.URL, Method: in.Method, Description: in.Description}
	if err := a.acl.UpdateResource(r.Context(), r.PathValue("id"), upd); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Resource updated"})
}

func (a *API) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := a.acl.DeleteResource(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Resource deleted"})
}

type resourceLinkRequest struct {
	ResourceID string `json:"resource_id"`
	GroupID    string `json:"group_id"`
}

func (a *API) handleAssignResource(w http.ResponseWriter, r *http.Request) {
	var in resourceLinkRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.acl.AssignResource(r.Context(), in.ResourceID, in.GroupID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "acl.resource_assign", map[string]any{
		"resource_id": in.ResourceID,
		"group_id":    in.GroupID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Resource assigned to group"})
}

func (a *API) handleRemoveResource(w http.ResponseWriter, r *http.Request) {
	var in resourceLinkRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.acl.RemoveResource(r.Context(), in.ResourceID, in.GroupID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "acl.resource_remove", map[string]any{
		"resource_id": in.ResourceID,
		"group_id":    in.GroupID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Resource removed from group"})
}
