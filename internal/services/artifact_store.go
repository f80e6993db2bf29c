package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/generation/stream"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/gcp"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

const (
	inlineRefPrefix = "artifact:"
	gcsRefPrefix    = "gs://"
)

// StoredArtifact is an opened artifact. External artifacts (url frames) have
// no body, only a RedirectURL.
type StoredArtifact struct {
	ContentType string
	Body        io.ReadCloser
	RedirectURL string
}

// ArtifactStore turns a complete frame into a durable result_ref and opens
// refs back up for the artifact endpoint.
type ArtifactStore interface {
	Put(ctx context.Context, ownerUserID, subjectID uuid.UUID, attempt int, frame stream.Frame) (string, error)
	Open(ctx context.Context, ref string) (*StoredArtifact, error)
}

type artifactStore struct {
	db     *gorm.DB
	log    *logger.Logger
	bucket gcp.BucketService
	inline repos.ArtifactRepo
}

// NewArtifactStore uploads to bucket when non-nil, otherwise keeps bodies in
// the artifact table.
func NewArtifactStore(db *gorm.DB, baseLog *logger.Logger, bucket gcp.BucketService, inline repos.ArtifactRepo) ArtifactStore {
	return &artifactStore{
		db:     db,
		log:    baseLog.With("service", "ArtifactStore"),
		bucket: bucket,
		inline: inline,
	}
}

func artifactContentType(kind stream.ArtifactKind) string {
	switch kind {
	case stream.ArtifactContent:
		return "application/json"
	default:
		return "text/html; charset=utf-8"
	}
}

func (s *artifactStore) Put(ctx context.Context, ownerUserID, subjectID uuid.UUID, attempt int, frame stream.Frame) (string, error) {
	kind, value := frame.Artifact()
	if kind == stream.ArtifactURL {
		return value, nil
	}
	contentType := artifactContentType(kind)

	if s.bucket != nil {
		ext := "html"
		if kind == stream.ArtifactContent {
			ext = "json"
		}
		key := fmt.Sprintf("artifacts/%s/%d.%s", subjectID, attempt, ext)
		if err := s.bucket.UploadObject(ctx, key, contentType, strings.NewReader(value)); err != nil {
			return "", fmt.Errorf("upload artifact: %w", err)
		}
		return gcsRefPrefix + s.bucket.BucketName() + "/" + key, nil
	}

	if s.inline == nil {
		return "", errors.New("artifact store has no backend")
	}
	row := &content.Artifact{
		OwnerUserID: ownerUserID,
		SubjectID:   subjectID,
		ContentType: contentType,
		Body:        value,
	}
	if err := s.inline.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return inlineRefPrefix + row.ID.String(), nil
}

func (s *artifactStore) Open(ctx context.Context, ref string) (*StoredArtifact, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, ErrNotFound
	case strings.HasPrefix(ref, inlineRefPrefix):
		id, err := uuid.Parse(strings.TrimPrefix(ref, inlineRefPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: bad artifact ref", ErrNotFound)
		}
		if s.inline == nil {
			return nil, ErrNotFound
		}
		row, err := s.inline.GetByID(dbctx.Context{Ctx: ctx}, id)
		if err != nil {
			if errors.Is(err, repos.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return &StoredArtifact{ContentType: row.ContentType, Body: io.NopCloser(strings.NewReader(row.Body))}, nil
	case strings.HasPrefix(ref, gcsRefPrefix):
		if s.bucket == nil {
			return nil, fmt.Errorf("%w: object storage disabled", ErrNotFound)
		}
		bucketName, key, ok := strings.Cut(strings.TrimPrefix(ref, gcsRefPrefix), "/")
		if !ok || bucketName != s.bucket.BucketName() {
			return nil, fmt.Errorf("%w: foreign bucket", ErrNotFound)
		}
		body, err := s.bucket.OpenObject(ctx, key)
		if err != nil {
			if errors.Is(err, gcp.ErrObjectNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		ct := "text/html; charset=utf-8"
		if strings.HasSuffix(key, ".json") {
			ct = "application/json"
		}
		return &StoredArtifact{ContentType: ct, Body: body}, nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return &StoredArtifact{RedirectURL: ref}, nil
	default:
		return nil, fmt.Errorf("%w: unknown artifact ref", ErrNotFound)
	}
}
