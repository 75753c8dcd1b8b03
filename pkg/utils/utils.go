package utils

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNoFile       = errors.New("no file uploaded")
	ErrEmptyFile    = errors.New("uploaded file is empty")
	ErrFileTooLarge = errors.New("file size exceeds limit")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateUploadFile(file *multipart.FileHeader) error
	ReadUploadFile(file *multipart.FileHeader) ([]byte, error)
}

type utils struct {
	maxFileSize int64
}

func New(maxFileSize int64) IUtils {
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	return &utils{
		maxFileSize: maxFileSize,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateUploadFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if file.Size == 0 {
		return ErrEmptyFile
	}

	if file.Size > u.maxFileSize {
		return ErrFileTooLarge
	}

	return nil
}

// ReadUploadFile validates the header and reads at most maxFileSize+1 bytes,
// so a header that understates the size is still caught.
func (u *utils) ReadUploadFile(file *multipart.FileHeader) ([]byte, error) {
	if err := u.ValidateUploadFile(file); err != nil {
		return nil, err
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, u.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Filename, err)
	}

	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > u.maxFileSize {
		return nil, ErrFileTooLarge
	}

	return data, nil
}
