// Package store implements the blob-storage access layer: connection string
// and blob URI parsing, SAS token issuing, and container/blob operations
// with bounded retry and idempotent overwrite.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/datalift/datalift/internal/trace"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Store is the façade over a storage account. It owns the credentials parsed
// once from the connection string and holds no other state; every operation
// re-resolves its target, so a single Store may be shared by callers that do
// their own synchronization.
type Store struct {
	creds      Credentials
	connection string
	svc        Service
}

// New builds a Store from a storage connection string. The credentials are
// parsed exactly once here; a connection string without a usable
// AccountName/AccountKey pair is rejected with ErrInvalidConfiguration.
func New(connectionString string) (*Store, error) {
	creds := ParseConnectionString(connectionString)
	if !creds.Valid() {
		return nil, fmt.Errorf("%w: connection string has no usable credentials", ErrInvalidConfiguration)
	}

	svc, err := newAzureService(creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	return &Store{creds: creds, connection: connectionString, svc: svc}, nil
}

// NewWithService builds a Store on an explicit Service implementation.
func NewWithService(connectionString string, svc Service) *Store {
	return &Store{
		creds:      ParseConnectionString(connectionString),
		connection: connectionString,
		svc:        svc,
	}
}

// AccountName returns the account the store was constructed for.
func (s *Store) AccountName() string {
	return s.creds.AccountName
}

// ListContainers returns the names of all containers in the account.
func (s *Store) ListContainers(ctx context.Context) ([]string, error) {
	containers, err := s.svc.ListContainers(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(containers))
	for _, c := range containers {
		names = append(names, c.Name)
	}

	return names, nil
}

// ListContainersWithAccess returns every container with its public access
// level.
func (s *Store) ListContainersWithAccess(ctx context.Context) ([]ContainerInfo, error) {
	return s.svc.ListContainers(ctx)
}

// CreateContainer ensures the named container exists. It checks the current
// container listing first and creates only when missing, so repeated calls
// are safe.
func (s *Store) CreateContainer(ctx context.Context, name string) error {
	names, err := s.ListContainers(ctx)
	if err != nil {
		return err
	}

	if slices.Contains(names, name) {
		return nil
	}

	return s.svc.CreateContainer(ctx, name)
}

// ListBlobs returns the names of all blobs in a container, creating the
// container first when it does not exist.
func (s *Store) ListBlobs(ctx context.Context, container string) ([]string, error) {
	if err := s.CreateContainer(ctx, container); err != nil {
		return nil, err
	}

	return s.svc.ListBlobs(ctx, container)
}

// Upload streams a local file to container/blobPath and returns the fully
// qualified URI carrying a fresh read-only SAS token. A blob already at that
// path is deleted first, so the upload is an overwrite, never a merge.
//
// The whole upload-and-token sequence is retried up to retryCount times with
// no delay between attempts; each attempt re-opens the local file from the
// start. Failures are logged, never returned: after the last attempt the
// result is simply absent (ok=false).
func (s *Store) Upload(ctx context.Context, container, blobPath, localFile string, retryCount int) (string, bool) {
	ctx, span := trace.Start(ctx, "Store.Upload")
	defer span.End()

	span.SetAttributes(
		attribute.String("container", container),
		attribute.String("blob_path", blobPath),
		attribute.Int("retry_count", retryCount),
	)

	if container == "" || blobPath == "" || localFile == "" {
		log.Warn().
			Str("container", container).
			Str("blob_path", blobPath).
			Str("local_file", localFile).
			Msg("upload skipped, missing target or source")
		return "", false
	}

	if err := s.CreateContainer(ctx, container); err != nil {
		log.Warn().Err(err).Str("container", container).Msg("failed to resolve container")
		return "", false
	}

	for attempt := 1; attempt <= retryCount; attempt++ {
		uri, err := s.uploadOnce(ctx, container, blobPath, localFile)
		if err != nil {
			log.Warn().Err(err).
				Int("attempt", attempt).
				Str("blob_path", blobPath).
				Msg("blob upload attempt failed")
			continue
		}

		log.Info().Str("container", container).Str("blob_path", blobPath).Msg("blob uploaded")
		return uri, true
	}

	log.Error().
		Str("container", container).
		Str("blob_path", blobPath).
		Int("retry_count", retryCount).
		Msg("blob upload failed, retries exhausted")

	return "", false
}

func (s *Store) uploadOnce(ctx context.Context, container, blobPath, localFile string) (string, error) {
	file, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localFile, err)
	}
	defer file.Close()

	blobs, err := s.svc.ListBlobs(ctx, container)
	if err != nil {
		return "", err
	}

	// An existing blob at this path is replaced outright.
	if slices.Contains(blobs, blobPath) {
		if err := s.svc.DeleteBlob(ctx, container, blobPath); err != nil {
			return "", err
		}
	}

	if err := s.svc.Upload(ctx, container, blobPath, file); err != nil {
		return "", err
	}

	token, err := s.BlobToken(container, blobPath, 0)
	if err != nil {
		return "", err
	}

	return s.BlobURI(container, blobPath, token), nil
}

// Download streams container/blobPath into localDir, deriving the local
// file name from the final path segment (forward or back slashes). The
// directory is created when missing and any pre-existing file at the target
// is deleted first. The blob is only fetched when a fresh listing confirms
// it exists; a missing blob yields (false, nil), not an error.
func (s *Store) Download(ctx context.Context, container, blobPath, localDir string) (bool, error) {
	ctx, span := trace.Start(ctx, "Store.Download")
	defer span.End()

	span.SetAttributes(
		attribute.String("container", container),
		attribute.String("blob_path", blobPath),
	)

	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", localDir, err)
	}

	dest := filepath.Join(localDir, localName(blobPath))

	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to remove existing file %s: %w", dest, err)
	}

	if err := s.CreateContainer(ctx, container); err != nil {
		return false, err
	}

	blobs, err := s.svc.ListBlobs(ctx, container)
	if err != nil {
		return false, err
	}

	if !slices.Contains(blobs, blobPath) {
		log.Debug().Str("container", container).Str("blob_path", blobPath).Msg("blob not found")
		return false, nil
	}

	file, err := os.Create(dest)
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer file.Close()

	written, err := s.svc.Download(ctx, container, blobPath, file)
	if err != nil {
		return false, err
	}

	log.Info().
		Str("container", container).
		Str("blob_path", blobPath).
		Str("dest", dest).
		Int64("bytes", written).
		Msg("blob downloaded")

	return true, nil
}

// BlobToken mints a read-only SAS token for a blob using the store's
// credentials. A non-positive validFor falls back to DefaultTokenValidity.
func (s *Store) BlobToken(container, blobPath string, validFor time.Duration) (string, error) {
	return BlobToken(s.creds, container, blobPath, validFor)
}

// ContainerToken mints a read/add/create/write/delete SAS token for a whole
// container using the store's credentials.
func (s *Store) ContainerToken(container string, validFor time.Duration) (string, error) {
	return ContainerToken(s.creds, container, validFor)
}

// BlobURI assembles the fully qualified URI for a blob in this account.
func (s *Store) BlobURI(container, blobPath, token string) string {
	return BlobURI(s.creds.AccountName, container, blobPath, token)
}

// localName returns the final path segment of a blob path, accepting both
// forward and back slash separators.
func localName(blobPath string) string {
	if i := strings.LastIndexByte(blobPath, '/'); i != -1 {
		return blobPath[i+1:]
	}
	if i := strings.LastIndexByte(blobPath, '\\'); i != -1 {
		return blobPath[i+1:]
	}
	return blobPath
}
