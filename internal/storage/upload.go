package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds maximum size")
	ErrEmptyUpload     = errors.New("uploaded file is empty")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Upload is a validated image read fully into memory.
type Upload struct {
	Filename    string
	ContentType string
	Ext         string
	Data        []byte
}

// ReadUpload opens a multipart file, enforces the size limit and checks the
// declared type against the allowed image types. When the declared type is
// missing or generic the content is sniffed instead.
func ReadUpload(fh *multipart.FileHeader, maxBytes int64) (*Upload, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, fh.Size, maxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readLimited(fh.Filename, fh.Header.Get("Content-Type"), f, maxBytes)
}

// ReadImage applies the same checks to raw bytes (CLI path).
func ReadImage(filename string, data []byte, maxBytes int64) (*Upload, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), maxBytes)
	}
	return validate(filename, "", data)
}

func readLimited(filename, declared string, r io.Reader, maxBytes int64) (*Upload, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxBytes)
	}

	return validate(filename, declared, data)
}

func validate(filename, declared string, data []byte) (*Upload, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if contentType == "image/jpg" {
		contentType = "image/jpeg"
	}

	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s (allowed: image/jpeg, image/png, image/webp)", ErrUnsupportedType, contentType)
	}

	return &Upload{
		Filename:    filename,
		ContentType: contentType,
		Ext:         ext,
		Data:        data,
	}, nil
}
