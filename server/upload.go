package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"Chroma/core/utils"
	"Chroma/metrics"
)

// multipart 表单本身的开销
const formOverhead = 1 << 20

// upload is an accepted file from a multipart request.
type upload struct {
	file   multipart.File
	header *multipart.FileHeader
	name   string
}

func (u *upload) Close() error {
	return u.file.Close()
}

// readUpload parses the form and returns the file in field, enforcing limit and the
// allowed extensions. The caller closes the returned upload.
func readUpload(w http.ResponseWriter, r *http.Request, field string, limit int64, exts ...string) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			metrics.UploadsRejectedTotal.WithLabelValues("too_large").Inc()
			return nil, tooLarge(limit)
		}
		return nil, badRequest("Failed to parse multipart form")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, badRequest("Missing '" + field + "' in form")
	}
	if header.Size > limit {
		file.Close()
		metrics.UploadsRejectedTotal.WithLabelValues("too_large").Inc()
		return nil, tooLarge(limit)
	}

	name := utils.SanitizeName(header.Filename)
	if !allowedExt(name, exts) {
		file.Close()
		metrics.UploadsRejectedTotal.WithLabelValues("bad_type").Inc()
		return nil, badRequest("Unsupported file type, expected one of: " + strings.Join(exts, ", "))
	}
	return &upload{file: file, header: header, name: name}, nil
}

func allowedExt(name string, exts []string) bool {
	ext := utils.Ext(name)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
