package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/DukeRupert/rentcheck/internal/domain"
)

const (
	// maxJSONBody caps bodies that carry no files.
	maxJSONBody = 1 << 20

	// maxMultipartMemory is how much of a multipart body is held in memory;
	// the rest spills to temporary files.
	maxMultipartMemory = 32 << 20

	payloadField = "payload"
	photosField  = "photos"
)

// decodeJSON reads a JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return decodeBody(r.Body, dst)
}

// decodeSubmission reads a submission that may carry photos. A
// multipart/form-data body holds the JSON in the "payload" field and the
// files in "photos"; any other body is plain JSON with photo URLs only.
// maxPhotos sizes the body cap: that many photos plus room for the payload.
func decodeSubmission(w http.ResponseWriter, r *http.Request, dst any, maxPhotos int) ([]domain.PhotoInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, decodeJSON(w, r, dst)
	}

	r.Body = http.MaxBytesReader(w, r.Body, multipartLimit(maxPhotos))
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.InvalidField("handler.decode", photosField, "request body is too large")
		}
		return nil, domain.InvalidField("handler.decode", "body", "malformed multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	payload := r.MultipartForm.Value[payloadField]
	if len(payload) == 0 {
		return nil, domain.InvalidField("handler.decode", payloadField, "payload field is required")
	}
	if err := json.Unmarshal([]byte(payload[0]), dst); err != nil {
		return nil, domain.InvalidField("handler.decode", payloadField, "payload is not valid JSON")
	}

	files := r.MultipartForm.File[photosField]
	uploads := make([]domain.PhotoInput, 0, len(files))
	for _, fh := range files {
		upload, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, domain.PhotoInput{Upload: upload})
	}
	return uploads, nil
}

func multipartLimit(maxPhotos int) int64 {
	if maxPhotos < domain.MaxReturnPhotos {
		maxPhotos = domain.MaxReturnPhotos
	}
	return int64(maxPhotos+1) * domain.MaxPhotoSize
}

func readUpload(fh *multipart.FileHeader) (*domain.Upload, error) {
	if fh.Size > domain.MaxPhotoSize {
		return nil, domain.InvalidField("handler.decode", photosField,
			fmt.Sprintf("photo %q exceeds %d MB", fh.Filename, domain.MaxPhotoSize/(1024*1024)))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, domain.Internal(err, "handler.decode", "failed to open uploaded photo")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, domain.MaxPhotoSize+1))
	if err != nil {
		return nil, domain.Internal(err, "handler.decode", "failed to read uploaded photo")
	}
	return &domain.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func decodeBody(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.InvalidField("handler.decode", "body", "request body is too large")
		case errors.Is(err, io.EOF):
			return domain.InvalidField("handler.decode", "body", "request body is required")
		default:
			return domain.InvalidField("handler.decode", "body", "request body is not valid JSON")
		}
	}
	return nil
}

// photoInputs puts referenced URLs ahead of new uploads.
func photoInputs(urls []string, uploads []domain.PhotoInput) []domain.PhotoInput {
	out := make([]domain.PhotoInput, 0, len(urls)+len(uploads))
	for _, u := range urls {
		out = append(out, domain.PhotoInput{URL: u})
	}
	return append(out, uploads...)
}
