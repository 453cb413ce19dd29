package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fenggwsx/NovaMind/internal/completion"
	"github.com/fenggwsx/NovaMind/internal/protocol"
)

const (
	defaultUploadDir = "uploads"
	// multipartSlack leaves room for form fields and boundaries around the image part.
	multipartSlack = 1 << 20
)

var (
	errNoImage        = errors.New("no image file provided")
	errNotImage       = errors.New("upload is not an image")
	errUploadTooLarge = errors.New("upload too large")
)

// imageUpload is an image spooled to a temporary file for the duration of one request.
type imageUpload struct {
	image  completion.Image
	path   string
	logger *slog.Logger
}

// release removes the temporary file.
func (u *imageUpload) release() {
	if u.path == "" {
		return
	}
	if err := os.Remove(u.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		u.logger.Warn("remove upload", "path", u.path, "error", err)
	}
	u.path = ""
}

// receiveImage spools the multipart image to the upload directory and loads it.
// Callers must release the returned upload.
func (a *App) receiveImage(c *gin.Context) (*imageUpload, error) {
	limit := a.cfg.Uploads.MaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartSlack)

	header, err := c.FormFile(protocol.FieldImage)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, errUploadTooLarge
		case errors.Is(err, http.ErrMissingFile):
			return nil, errNoImage
		default:
			return nil, fmt.Errorf("read multipart form: %w", err)
		}
	}
	if header.Size == 0 {
		return nil, errNoImage
	}
	if header.Size > limit {
		return nil, errUploadTooLarge
	}

	dir, err := a.ensureUploadsDir()
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, "image-*"+safeExt(header.Filename))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	upload := &imageUpload{path: tmp.Name(), logger: a.logger}

	_, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		upload.release()
		return nil, fmt.Errorf("spool upload: %w", err)
	}

	data, err := os.ReadFile(upload.path)
	if err != nil {
		upload.release()
		return nil, fmt.Errorf("read upload: %w", err)
	}

	mimeType := detectImageType(header.Header.Get("Content-Type"), data)
	if mimeType == "" {
		upload.release()
		return nil, errNotImage
	}

	upload.image = completion.Image{Data: data, MIMEType: mimeType}
	return upload, nil
}

func (a *App) respondUploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errUploadTooLarge):
		abortWithError(c, http.StatusRequestEntityTooLarge, "Image is too large")
	case errors.Is(err, errNoImage):
		abortWithError(c, http.StatusBadRequest, "No image file provided")
	case errors.Is(err, errNotImage):
		abortWithError(c, http.StatusBadRequest, "Only image files are allowed")
	default:
		a.respondError(c, err, "Failed to analyze image")
	}
}

func (a *App) ensureUploadsDir() (string, error) {
	dir := strings.TrimSpace(a.cfg.Uploads.Dir)
	if dir == "" {
		dir = defaultUploadDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// detectImageType prefers the sniffed type and falls back to the declared one.
// It returns "" when neither names an image.
func detectImageType(declared string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return ""
}

func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
