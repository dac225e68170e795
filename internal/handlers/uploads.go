package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/media"
)

const (
	maxFieldBytes    = 16 << 10
	multipartOverrun = 1 << 20
)

// fileField describes one accepted file input of a multipart form.
type fileField struct {
	Name     string
	MaxCount int
	MaxBytes int64
}

// UploadConfig controls where multipart files are staged and how large they may be.
type UploadConfig struct {
	TempDir       string
	MaxImageBytes int64
	MaxVideoBytes int64
}

func (c UploadConfig) withDefaults() UploadConfig {
	if strings.TrimSpace(c.TempDir) == "" {
		c.TempDir = os.TempDir()
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = 2 << 20
	}
	if c.MaxVideoBytes <= 0 {
		c.MaxVideoBytes = 200 << 20
	}
	return c
}

func (c UploadConfig) image(name string) fileField {
	return fileField{Name: name, MaxCount: 1, MaxBytes: c.withDefaults().MaxImageBytes}
}

func (c UploadConfig) video(name string) fileField {
	return fileField{Name: name, MaxCount: 1, MaxBytes: c.withDefaults().MaxVideoBytes}
}

// stagedForm holds the text values and staged file paths of a multipart request.
type stagedForm struct {
	values map[string]string
	files  map[string][]string
}

func (f *stagedForm) Value(name string) string {
	if f == nil {
		return ""
	}
	return f.values[name]
}

// File returns the first staged path for the field or "".
func (f *stagedForm) File(name string) string {
	if f == nil || len(f.files[name]) == 0 {
		return ""
	}
	return f.files[name][0]
}

// Cleanup removes every staged file that still exists.
func (f *stagedForm) Cleanup(ctx context.Context) {
	if f == nil {
		return
	}
	for _, paths := range f.files {
		media.RemoveLocal(ctx, paths...)
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// parseMultipart streams a multipart body to the staging directory. Requests
// that are not multipart yield an empty form. On error every file staged so far
// has already been removed.
func (c UploadConfig) parseMultipart(w http.ResponseWriter, r *http.Request, fields ...fileField) (*stagedForm, error) {
	c = c.withDefaults()
	form := &stagedForm{values: map[string]string{}, files: map[string][]string{}}
	if !isMultipart(r) {
		return form, nil
	}

	accepted := make(map[string]fileField, len(fields))
	var budget int64 = multipartOverrun
	for _, field := range fields {
		accepted[field.Name] = field
		budget += int64(field.MaxCount) * field.MaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, budget)

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "Malformed multipart body", err)
	}

	if err := os.MkdirAll(c.TempDir, 0o755); err != nil {
		return nil, apperr.Internal("Something went wrong", fmt.Errorf("create temp dir: %w", err))
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			form.Cleanup(r.Context())
			return nil, classifyBodyError(err, "Malformed multipart body")
		}

		name := part.FormName()
		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			part.Close()
			if err != nil {
				form.Cleanup(r.Context())
				return nil, classifyBodyError(err, "Malformed multipart body")
			}
			if len(value) > maxFieldBytes {
				form.Cleanup(r.Context())
				return nil, apperr.BadRequest(fmt.Sprintf("Field %s is too large", name))
			}
			form.values[name] = string(value)
			continue
		}

		field, ok := accepted[name]
		if !ok {
			part.Close()
			form.Cleanup(r.Context())
			return nil, apperr.BadRequest(fmt.Sprintf("Unexpected file field %s", name))
		}
		if len(form.files[name]) >= field.MaxCount {
			part.Close()
			form.Cleanup(r.Context())
			return nil, apperr.BadRequest(fmt.Sprintf("Too many files for field %s", name))
		}

		path, err := c.stage(part, part.FileName(), field)
		part.Close()
		if path != "" {
			form.files[name] = append(form.files[name], path)
		}
		if err != nil {
			form.Cleanup(r.Context())
			return nil, err
		}
	}
}

func (c UploadConfig) stage(src io.Reader, filename string, field fileField) (string, error) {
	pattern := fmt.Sprintf("%d-*-%s", time.Now().UnixMilli(), sanitizeFilename(filename))
	dst, err := os.CreateTemp(c.TempDir, pattern)
	if err != nil {
		return "", apperr.Internal("Something went wrong", fmt.Errorf("stage upload: %w", err))
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(src, field.MaxBytes+1))
	if err != nil {
		return dst.Name(), classifyBodyError(err, "Upload interrupted")
	}
	if written > field.MaxBytes {
		return dst.Name(), apperr.BadRequest(fmt.Sprintf("File for field %s exceeds %d bytes", field.Name, field.MaxBytes))
	}
	return dst.Name(), nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '*' || r == '/' || r == os.PathSeparator || r < 0x20:
			return '_'
		case r == ' ':
			return '-'
		default:
			return r
		}
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return truncateFilename(name)
}

// Staged names stay well under the usual 255 byte file name limit once the
// timestamp and random infix are added.
const (
	maxStemBytes = 100
	maxExtBytes  = 16
)

// truncateFilename caps the stem at maxStemBytes while keeping the extension,
// which media.Transfer relies on for content type fallback.
func truncateFilename(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > maxExtBytes {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)
	if len(stem) > maxStemBytes {
		stem = stem[:maxStemBytes]
		for !utf8.ValidString(stem) {
			stem = stem[:len(stem)-1]
		}
	}
	return stem + ext
}

func classifyBodyError(err error, message string) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return apperr.Wrap(apperr.KindBadRequest, "Request body too large", err)
	}
	return apperr.Wrap(apperr.KindBadRequest, message, err)
}
