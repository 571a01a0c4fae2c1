package httpapi

import (
	"net/http"

	"github.com/mmynk/cameratogether/internal/groupapi"
)

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req groupapi.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.users.CreateUser(r.Context(), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, groupapi.FromUser(user))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.FromUser(user))
}
