package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/mmynk/cameratogether/internal/groupapi"
	"github.com/mmynk/cameratogether/internal/service"
)

// uploadPhoto accepts multipart/form-data with the fields user_id,
// frame_index and photo.
func (s *Server) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondStatus(w, http.StatusRequestEntityTooLarge, service.ErrPhotoTooLarge.Error())
			return
		}
		respondStatus(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	frame, err := strconv.Atoi(r.FormValue("frame_index"))
	if err != nil {
		respondStatus(w, http.StatusBadRequest, "frame_index must be an integer")
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		respondStatus(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondStatus(w, http.StatusBadRequest, "failed to read photo")
		return
	}

	photo, err := s.photos.Upload(r.Context(), service.UploadParams{
		GroupID:    r.PathValue("id"),
		UserID:     r.FormValue("user_id"),
		FrameIndex: frame,
		Data:       data,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, groupapi.FromPhoto(photo))
}

func (s *Server) listPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := s.photos.ListPhotos(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := groupapi.PhotoList{Photos: make([]groupapi.Photo, len(photos)), Count: len(photos)}
	for i := range photos {
		out.Photos[i] = groupapi.FromPhoto(&photos[i])
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) getCollage(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.photos.Collage(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
