package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	storage "github.com/supabase-community/storage-go"
	"poster-generator-backend/internal/imagecodec"
)

// objectAPI is the part of the storage backend the client uses.
type objectAPI interface {
	Put(bucket, path string, data io.Reader, contentType string) error
	Remove(bucket string, paths []string) error
}

type storageGoAPI struct {
	client *storage.Client
}

func (a storageGoAPI) Put(bucket, path string, data io.Reader, contentType string) error {
	upsert := false
	_, err := a.client.UploadFile(bucket, path, data, storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	return err
}

func (a storageGoAPI) Remove(bucket string, paths []string) error {
	_, err := a.client.RemoveFile(bucket, paths)
	return err
}

type StorageClient struct {
	objects objectAPI
	// asUser, when set, builds a backend that authenticates with a caller's
	// access token.
	asUser  func(token string) objectAPI
	bucket  string
	baseURL string
	log     zerolog.Logger
	now     func() time.Time
}

// NewStorageClient talks to the bucket with apiKey. When forwardUserTokens is
// set, calls whose context carries an access token are made as that user.
func NewStorageClient(supabaseURL, apiKey, bucket string, forwardUserTokens bool, log zerolog.Logger) (*StorageClient, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	storageURL := baseURL + "/storage/v1"
	client := storage.NewClient(storageURL, apiKey, nil)

	s := newStorageClient(storageGoAPI{client: client}, baseURL, bucket, log)
	if forwardUserTokens {
		s.asUser = func(token string) objectAPI {
			return storageGoAPI{client: storage.NewClient(storageURL, token, map[string]string{"apikey": apiKey})}
		}
	}
	return s, nil
}

func newStorageClient(objects objectAPI, baseURL, bucket string, log zerolog.Logger) *StorageClient {
	return &StorageClient{
		objects: objects,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		log:     log.With().Str("component", "storage").Str("bucket", bucket).Logger(),
		now:     time.Now,
	}
}

// Upload stores file under ownerID/<millis>-<random>.<ext> and returns that path.
func (s *StorageClient) Upload(ctx context.Context, ownerID string, file *imagecodec.File) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", ErrAuthRequired
	}
	if file == nil {
		return "", &UploadError{Err: fmt.Errorf("no file")}
	}
	if err := ctx.Err(); err != nil {
		return "", &UploadError{Err: err}
	}

	storagePath := ownerID + "/" + s.objectName(file.Extension())

	if err := s.objectsFor(ctx).Put(s.bucket, storagePath, bytes.NewReader(file.Data), file.MIMEType); err != nil {
		s.log.Error().Err(err).Str("path", storagePath).Msg("error uploading image")
		return "", &UploadError{Path: storagePath, Err: err}
	}

	s.log.Debug().Str("path", storagePath).Int64("bytes", file.Size()).Msg("image uploaded")
	return storagePath, nil
}

// Remove deletes paths on a best-effort basis: failures are logged, never returned.
func (s *StorageClient) Remove(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := s.objectsFor(ctx).Remove(s.bucket, paths); err != nil {
		s.log.Warn().Err(err).Strs("paths", paths).Msg("error deleting images")
	}
}

// PublicURL derives the public object URL. An empty path yields "".
func (s *StorageClient) PublicURL(storagePath string) string {
	if storagePath == "" {
		return ""
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, strings.TrimPrefix(storagePath, "/"))
}

func (s *StorageClient) objectsFor(ctx context.Context) objectAPI {
	if s.asUser != nil {
		if token := AccessTokenFrom(ctx); token != "" {
			return s.asUser(token)
		}
	}
	return s.objects
}

func (s *StorageClient) objectName(ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if ext == "" {
		ext = "png"
	}
	return fmt.Sprintf("%d-%s.%s", s.now().UnixMilli(), suffix, ext)
}
