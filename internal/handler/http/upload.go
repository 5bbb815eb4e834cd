package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/timiFoxtrot/main-product-store/internal/service"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/httputil"
)

// UploadField is the multipart field that carries image files.
const UploadField = "files"

const multipartOverhead = 1 << 20

// AttachImages handles PATCH /api/v1/products/{id}/images
//
// Accepts multipart/form-data with up to UploadConfig.MaxFiles files in the
// "files" field. The content type of each file is sniffed from its bytes.
func (h *ProductHandler) AttachImages(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	files, closeAll, err := h.readUploads(w, r)
	defer closeAll()
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	urls, err := h.service.AttachImages(r.Context(), chi.URLParam(r, "id"), files, caller)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string][]string{"images": urls})
}

// readUploads parses the multipart body and checks count, size and type.
// The returned func closes every opened file and must always be called.
func (h *ProductHandler) readUploads(w http.ResponseWriter, r *http.Request) ([]service.UploadFile, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	maxBody := int64(h.upload.MaxFiles)*h.upload.MaxFileBytes + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, closeAll, apperrors.PayloadTooLarge(fmt.Sprintf("request body exceeds %d bytes", maxBody))
		}
		return nil, closeAll, apperrors.InvalidInput("request must be multipart/form-data")
	}

	headers := r.MultipartForm.File[UploadField]
	if len(headers) == 0 {
		return nil, closeAll, apperrors.InvalidInput(fmt.Sprintf("at least one file is required in field %q", UploadField))
	}
	if len(headers) > h.upload.MaxFiles {
		return nil, closeAll, apperrors.InvalidInput(fmt.Sprintf("at most %d files may be uploaded at once", h.upload.MaxFiles))
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.upload.MaxFileBytes {
			return nil, closeAll, apperrors.PayloadTooLarge(fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, h.upload.MaxFileBytes))
		}

		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, apperrors.InvalidInput(fmt.Sprintf("cannot read %s", fh.Filename))
		}
		opened = append(opened, f)

		contentType, err := h.sniff(f)
		if err != nil {
			return nil, closeAll, err
		}
		if contentType == "" {
			return nil, closeAll, apperrors.UnsupportedMediaType(fmt.Sprintf("%s: only JPEG and PNG images are allowed", fh.Filename))
		}

		files = append(files, service.UploadFile{
			Filename:    fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Data:        f,
		})
	}
	return files, closeAll, nil
}

// sniff detects the file type from its leading bytes and rewinds it. It
// returns the matching allowed type, or "" when none matches.
func (h *ProductHandler) sniff(f multipart.File) (string, error) {
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", apperrors.InvalidInput("cannot read uploaded file")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", apperrors.Internal(fmt.Errorf("rewind upload: %w", err))
	}
	for _, allowed := range h.upload.AllowedTypes {
		if mt.Is(allowed) {
			return allowed, nil
		}
	}
	return "", nil
}
