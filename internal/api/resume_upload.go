package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"qrintake/internal/errcode"
	"qrintake/internal/intake"
)

// ObjectStorage is the MinIO subset the API uses.
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// VirusScanner reports whether r is clean.
type VirusScanner interface {
	Scan(r io.Reader) (clean bool, err error)
}

// clamdScanner streams uploads to a clamd daemon.
type clamdScanner struct {
	addr string
}

// NewClamdScanner scans through the clamd daemon at addr, e.g. tcp://clamav:3310.
func NewClamdScanner(addr string) VirusScanner {
	return clamdScanner{addr: addr}
}

func (s clamdScanner) Scan(r io.Reader) (bool, error) {
	abort := make(chan bool)
	defer close(abort)

	results, err := clamd.NewClamd(s.addr).ScanStream(r, abort)
	if err != nil {
		return false, fmt.Errorf("scan stream: %w", err)
	}
	clean := true
	for result := range results {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			clean = false
		default:
			return false, fmt.Errorf("clamd status %s: %s", result.Status, result.Description)
		}
	}
	return clean, nil
}

// extensionsByMIME lists the file extensions accepted for each resume type.
var extensionsByMIME = map[string][]string{
	"application/pdf":    {".pdf"},
	"application/msword": {".doc"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {".docx"},
}

// resumeFilter applies size, type and malware checks before intake sees a file.
type resumeFilter struct {
	maxBytes int64
	allowed  map[string]struct{}
	scanner  VirusScanner
}

func newResumeFilter(maxBytes int64, allowedMIME []string, scanner VirusScanner) *resumeFilter {
	allowed := make(map[string]struct{}, len(allowedMIME))
	for _, m := range allowedMIME {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &resumeFilter{maxBytes: maxBytes, allowed: allowed, scanner: scanner}
}

// Accept opens header and returns an intake upload. The caller closes the
// returned file once the submission finished.
func (f *resumeFilter) Accept(header *multipart.FileHeader) (*intake.Upload, io.Closer, error) {
	if header.Size <= 0 {
		return nil, nil, errcode.Validation("resume is empty")
	}
	if header.Size > f.maxBytes {
		return nil, nil, errcode.Validation("resume exceeds %d MB", f.maxBytes>>20)
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, errcode.Infra("open resume", err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = file.Close()
		}
	}()

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return nil, nil, errcode.Infra("detect resume type", err)
	}
	contentType, ext, err := f.matchType(detected, header.Filename)
	if err != nil {
		return nil, nil, err
	}

	if f.scanner != nil {
		if err := rewind(file); err != nil {
			return nil, nil, err
		}
		clean, err := f.scanner.Scan(file)
		if err != nil {
			return nil, nil, errcode.Infra("scan resume", err)
		}
		if !clean {
			return nil, nil, errcode.Validation("malicious file detected")
		}
	}
	if err := rewind(file); err != nil {
		return nil, nil, err
	}

	ok = true
	return &intake.Upload{
		Filename:    "resume" + ext,
		ContentType: contentType,
		Size:        header.Size,
		Reader:      file,
	}, file, nil
}

func (f *resumeFilter) matchType(detected *mimetype.MIME, filename string) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for m := detected; m != nil; m = m.Parent() {
		mimeType := strings.ToLower(m.String())
		if _, ok := f.allowed[mimeType]; !ok {
			continue
		}
		for _, allowedExt := range extensionsByMIME[mimeType] {
			if ext == allowedExt {
				return mimeType, ext, nil
			}
		}
		return "", "", errcode.Validation("file extension %q does not match its content", ext)
	}
	return "", "", errcode.Validation("unsupported resume type %s", detected.String())
}

func rewind(file multipart.File) error {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return errcode.Infra("rewind resume", err)
	}
	return nil
}

// resumeStore keeps resumes under resumes/<owner>/ in object storage.
type resumeStore struct {
	storage ObjectStorage
}

func (s resumeStore) StoreResume(ctx context.Context, ownerID uint, file intake.Upload) (string, error) {
	if s.storage == nil {
		return "", errors.New("object storage is not configured")
	}
	objectKey := fmt.Sprintf("resumes/%d/%s%s", ownerID, uuid.NewString(), filepath.Ext(file.Filename))
	if _, err := s.storage.UploadFile(ctx, objectKey, file.Reader, file.Size, file.ContentType); err != nil {
		return "", err
	}
	return objectKey, nil
}

func (s resumeStore) DeleteResume(ctx context.Context, path string) error {
	if s.storage == nil {
		return errors.New("object storage is not configured")
	}
	return s.storage.DeleteObject(ctx, path)
}
