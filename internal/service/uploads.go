package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heif",
	"image/gif":  ".gif",
}

// UploadTicket tells the browser where to PUT a file
type UploadTicket struct {
	StoragePath string    `json:"storagePath"`
	UploadURL   string    `json:"uploadUrl"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// SignedURL is a time-limited read URL
type SignedURL struct {
	StoragePath string    `json:"storagePath"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// UploadService issues signed storage URLs under users/{uid}/
type UploadService struct {
	blobs     BlobStore
	uploadTTL time.Duration
	readTTL   time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

// NewUploadService creates a new UploadService instance
func NewUploadService(blobs BlobStore, uploadTTL, readTTL time.Duration) *UploadService {
	return &UploadService{
		blobs:     blobs,
		uploadTTL: uploadTTL,
		readTTL:   readTTL,
		now:       time.Now,
		log:       logger.Component("uploads"),
	}
}

// UserPrefix is the storage prefix a user owns
func UserPrefix(uid string) string {
	return "users/" + uid + "/"
}

// CheckOwnership rejects paths outside users/{uid}/ and any traversal segment
func CheckOwnership(uid, storagePath string) error {
	if strings.TrimSpace(storagePath) == "" {
		return validationError("storagePath is required")
	}
	if uid == "" || !strings.HasPrefix(storagePath, UserPrefix(uid)) {
		return fmt.Errorf("path %q is outside the user's storage: %w", storagePath, ErrForbidden)
	}
	for _, seg := range strings.Split(storagePath, "/") {
		if seg == ".." || seg == "." {
			return fmt.Errorf("path %q is not canonical: %w", storagePath, ErrForbidden)
		}
	}
	if path.Clean(storagePath) != storagePath {
		return fmt.Errorf("path %q is not canonical: %w", storagePath, ErrForbidden)
	}
	return nil
}

// Init reserves a storage path for a new image upload and signs a PUT URL for it
func (s *UploadService) Init(ctx context.Context, uid, fileName, contentType string) (*UploadTicket, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, validationError("unsupported content type %q", contentType)
	}
	if fe := strings.ToLower(path.Ext(fileName)); fe == ext || (fe == ".jpeg" && contentType == "image/jpeg") {
		ext = fe
	}

	storagePath := UserPrefix(uid) + "uploads/" + uuid.NewString() + ext
	url, err := s.blobs.PresignPut(ctx, storagePath, contentType, s.uploadTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign upload URL: %w", err)
	}

	s.log.WithFields(logrus.Fields{"uid": uid, "path": storagePath}).Debug("upload initialized")
	return &UploadTicket{
		StoragePath: storagePath,
		UploadURL:   url,
		ContentType: contentType,
		ExpiresAt:   s.now().Add(s.uploadTTL).UTC(),
	}, nil
}

// Complete confirms an upload landed and returns a read URL for it
func (s *UploadService) Complete(ctx context.Context, uid, storagePath string) (*SignedURL, error) {
	return s.signRead(ctx, uid, storagePath)
}

// ReadURL signs a read URL for one of the user's files
func (s *UploadService) ReadURL(ctx context.Context, uid, storagePath string) (*SignedURL, error) {
	return s.signRead(ctx, uid, storagePath)
}

func (s *UploadService) signRead(ctx context.Context, uid, storagePath string) (*SignedURL, error) {
	if err := CheckOwnership(uid, storagePath); err != nil {
		return nil, err
	}

	exists, err := s.blobs.ObjectExists(ctx, storagePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("file %s: %w", storagePath, ErrNotFound)
	}

	url, err := s.blobs.PresignGet(ctx, storagePath, s.readTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign read URL: %w", err)
	}
	return &SignedURL{
		StoragePath: storagePath,
		URL:         url,
		ExpiresAt:   s.now().Add(s.readTTL).UTC(),
	}, nil
}
