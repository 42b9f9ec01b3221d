package middleware

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/Jack4Code/pipeline"
)

// MultipartConfig configures Multipart. Sizes are in megabytes.
type MultipartConfig struct {
	// MaxMemoryMB is how much of the form is kept in memory; the rest
	// spills to temporary files. Defaults to 32.
	MaxMemoryMB int64 `mapstructure:"max_memory_mb"`
	// MaxBodyMB caps the request body. Zero means no cap.
	MaxBodyMB int64 `mapstructure:"max_body_mb"`
}

func (c *MultipartConfig) ApplyDefaults() {
	if c.MaxMemoryMB == 0 {
		c.MaxMemoryMB = 32
	}
}

// Multipart returns a unit that parses multipart/form-data bodies before
// the rest of the chain runs, so handlers can call GetUploadedFile.
// Malformed or oversized bodies are answered with 400 or 413. Other content
// types pass through untouched.
//
// Temporary files holding spilled uploads are removed once the rest of the
// chain returns, so uploads must be consumed inside the chain.
func Multipart(cfg MultipartConfig) pipeline.Middleware {
	cfg.ApplyDefaults()

	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (pipeline.Response, error) {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType != "multipart/form-data" {
			return next.Handle(ctx, r)
		}

		if cfg.MaxBodyMB > 0 {
			r.Body = http.MaxBytesReader(nil, r.Body, cfg.MaxBodyMB<<20)
		}
		if err := r.ParseMultipartForm(cfg.MaxMemoryMB << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return pipeline.JSON(http.StatusRequestEntityTooLarge, map[string]string{
					"error": "request body too large",
				}), nil
			}
			return pipeline.JSON(http.StatusBadRequest, map[string]string{
				"error": "invalid multipart form",
			}), nil
		}
		defer r.MultipartForm.RemoveAll()

		return next.Handle(ctx, r)
	})
}

// UploadedFile represents a file from a multipart form
type UploadedFile struct {
	File     multipart.File
	Header   *multipart.FileHeader
	Filename string
	Size     int64
}

// Close closes the underlying file
func (u *UploadedFile) Close() error {
	return u.File.Close()
}

// ReadAll reads all bytes from the file
func (u *UploadedFile) ReadAll() ([]byte, error) {
	return io.ReadAll(u.File)
}

func openUpload(header *multipart.FileHeader) (*UploadedFile, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	return &UploadedFile{
		File:     file,
		Header:   header,
		Filename: header.Filename,
		Size:     header.Size,
	}, nil
}

// GetUploadedFile returns the first file of a form field.
func GetUploadedFile(r *http.Request, fieldName string) (*UploadedFile, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[fieldName]) == 0 {
		return nil, http.ErrMissingFile
	}
	return openUpload(r.MultipartForm.File[fieldName][0])
}

// GetUploadedFiles returns every file of a form field. Files opened before
// a failure are closed.
func GetUploadedFiles(r *http.Request, fieldName string) ([]*UploadedFile, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[fieldName]) == 0 {
		return nil, http.ErrMissingFile
	}

	headers := r.MultipartForm.File[fieldName]
	uploaded := make([]*UploadedFile, 0, len(headers))
	for _, header := range headers {
		u, err := openUpload(header)
		if err != nil {
			for _, opened := range uploaded {
				opened.Close()
			}
			return nil, err
		}
		uploaded = append(uploaded, u)
	}
	return uploaded, nil
}
