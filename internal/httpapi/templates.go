package httpapi

import (
	"net/http"

	"github.com/mmynk/cameratogether/internal/groupapi"
	"github.com/mmynk/cameratogether/internal/models"
)

func templateList(tpls []models.Template) []groupapi.Template {
	out := make([]groupapi.Template, len(tpls))
	for i := range tpls {
		out[i] = groupapi.FromTemplate(&tpls[i])
	}
	return out
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	tpls := s.templates.List(r.Context())
	respondJSON(w, http.StatusOK, groupapi.TemplateList{Templates: templateList(tpls), Count: len(tpls)})
}

func (s *Server) filterTemplates(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "photo_count", 0)
	if err != nil {
		respondStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	tpls, err := s.templates.ByPhotoCount(r.Context(), n)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.TemplateList{
		Templates:  templateList(tpls),
		Count:      len(tpls),
		PhotoCount: n,
	})
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupapi.FromTemplate(tpl))
}
