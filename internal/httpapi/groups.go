package httpapi

import (
	"net/http"

	"github.com/mmynk/cameratogether/internal/groupapi"
	"github.com/mmynk/cameratogether/internal/models"
	"github.com/mmynk/cameratogether/internal/service"
)

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req groupapi.CreateGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := models.ParseGroupKind(req.GroupType)
	if err != nil {
		respondStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	params := service.CreateGroupParams{
		OwnerUserID: req.OwnerUserID,
		Name:        req.Name,
		Kind:        kind,
	}
	if req.ExpiresAt != "" {
		exp, err := groupapi.ParseTimestamp(req.ExpiresAt)
		if err != nil {
			respondStatus(w, http.StatusBadRequest, "expires_at must be an ISO-8601 timestamp")
			return
		}
		params.ExpiresAt = &exp
	}

	group, err := s.groups.CreateGroup(r.Context(), params)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, groupapi.FromGroup(group))
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	groups, err := s.groups.ListGroups(r.Context(), r.URL.Query().Get("owner_user_id"), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := groupapi.GroupList{Groups: make([]groupapi.Group, len(groups)), TotalCount: len(groups)}
	for i := range groups {
		out.Groups[i] = groupapi.FromGroup(&groups[i])
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.groups.GetGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.FromGroup(group))
}

func (s *Server) getGroupByInvitation(w http.ResponseWriter, r *http.Request) {
	group, err := s.groups.GetGroupByInvitation(r.Context(), r.URL.Query().Get("invitation_token"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.FromGroup(group))
}

func (s *Server) joinGroup(w http.ResponseWriter, r *http.Request) {
	var req groupapi.UserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := s.groups.JoinGroup(r.Context(), r.PathValue("token"), req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.FromGroup(group))
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.groups.ListMembers(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := groupapi.MemberList{Members: make([]groupapi.Member, len(members)), Count: len(members)}
	for i := range members {
		out.Members[i] = groupapi.FromMember(&members[i])
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) finalizeGroup(w http.ResponseWriter, r *http.Request) {
	var req groupapi.UserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := s.groups.FinalizeGroup(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.FromGroup(group))
}

func (s *Server) startCountdown(w http.ResponseWriter, r *http.Request) {
	var req groupapi.StartCountdownRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := s.groups.StartCountdown(r.Context(), r.PathValue("id"), req.UserID, req.TemplateID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.FromGroup(group))
}

func (s *Server) markReady(w http.ResponseWriter, r *http.Request) {
	var req groupapi.UserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.groups.MarkReady(r.Context(), r.PathValue("id"), req.UserID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.MessageBody{Message: "ready"})
}

func (s *Server) leaveGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.groups.LeaveGroup(r.Context(), r.PathValue("id"), r.URL.Query().Get("user_id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.MessageBody{Message: "left group"})
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.groups.DeleteGroup(r.Context(), r.PathValue("id"), r.URL.Query().Get("user_id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.MessageBody{Message: "group deleted"})
}
