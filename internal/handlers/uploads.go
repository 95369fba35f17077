package handlers

import (
	"net/http"
	"strings"

	"github.com/foodmap/apiserver/internal/services"
)

const (
	maxUploadBytes     = 50 << 20
	maxMultipartMemory = 32 << 20
	formFieldFile      = "file"
)

// uploadMedia handles one multipart media upload under the "file"
// field, enforcing the size cap and the image/video MIME filter before
// handing off to the upload service.
func uploadMedia(w http.ResponseWriter, r *http.Request, uploads *services.UploadService, kind services.UploadKind) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File[formFieldFile]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	fileHeader := files[0]
	if fileHeader.Size > maxUploadBytes {
		writeError(w, http.StatusBadRequest, "uploaded file too large")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		writeError(w, http.StatusBadRequest, "only image and video uploads are allowed")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	defer file.Close()

	media, err := uploads.Upload(r.Context(), kind, fileHeader.Filename, contentType, file, fileHeader.Size)
	if err != nil {
		writeServiceError(w, err, "failed to store upload")
		return
	}

	writeJSON(w, http.StatusCreated, DataResponse{Message: "upload success", Data: media})
}
