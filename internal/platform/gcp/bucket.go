package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

var ErrObjectNotFound = errors.New("object not found")

// BucketService is the artifact bucket. Keys are bucket-relative.
type BucketService interface {
	UploadObject(ctx context.Context, key string, contentType string, body io.Reader) error
	OpenObject(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	PublicURL(key string) string
	BucketName() string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	storageMode   ObjectStorageMode
	emulatorHost  string
	bucketName    string
	cdnDomain     string
	publicBaseURL string
}

func NewBucketService(log *logger.Logger, storageCfg ObjectStorageConfig) (BucketService, error) {
	if err := ValidateObjectStorageConfig(storageCfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	if storageCfg.IsInline() {
		return nil, fmt.Errorf("object storage mode %q has no bucket", storageCfg.Mode)
	}
	serviceLog := log.With("service", "BucketService")

	publicBaseURL, publicBaseSource, err := resolveObjectStoragePublicBaseURL(storageCfg)
	if err != nil {
		return nil, err
	}

	stClient, err := newStorageClientForMode(context.Background(), storageCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info(
		"Object storage initialized",
		"mode", storageCfg.Mode,
		"mode_source", storageCfg.ModeSource(),
		"emulator_host", storageCfg.EmulatorHost,
		"public_base_source", publicBaseSource,
		"public_base_url", publicBaseURL,
		"bucket", storageCfg.BucketName,
	)

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		storageMode:   storageCfg.Mode,
		emulatorHost:  strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/"),
		bucketName:    storageCfg.BucketName,
		cdnDomain:     strings.TrimSpace(os.Getenv("ARTIFACT_CDN_DOMAIN")),
		publicBaseURL: publicBaseURL,
	}, nil
}

func newStorageClientForMode(ctx context.Context, storageCfg ObjectStorageConfig) (*storage.Client, error) {
	switch storageCfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{
			Code: ObjectStorageConfigErrorInvalidMode,
			Mode: string(storageCfg.Mode),
		}
	}
}

func resolveObjectStoragePublicBaseURL(storageCfg ObjectStorageConfig) (baseURL string, source string, err error) {
	raw := strings.TrimSpace(os.Getenv("ARTIFACT_PUBLIC_BASE_URL"))
	if raw != "" {
		parsed, parseErr := url.Parse(raw)
		if parseErr != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
			return "", "", fmt.Errorf(
				"invalid ARTIFACT_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443",
				raw,
			)
		}
		return strings.TrimRight(raw, "/"), "artifact_public_base_url", nil
	}
	if storageCfg.IsEmulatorMode() {
		return strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/"), "storage_emulator_host", nil
	}
	return "", "gcs_default", nil
}

func (bs *bucketService) BucketName() string { return bs.bucketName }

func (bs *bucketService) UploadObject(ctx context.Context, key string, contentType string, body io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".html"), strings.HasSuffix(s, ".htm"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	default:
		return ""
	}
}

func (bs *bucketService) DeleteObject(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bs.storageClient.Bucket(bs.bucketName).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, bs.bucketName, err)
	}
	return nil
}

func (bs *bucketService) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := bs.storageClient.Bucket(bs.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (bs *bucketService) PublicURL(key string) string {
	return publicObjectURL(bs.bucketName, key, bs.cdnDomain, bs.storageMode, bs.publicBaseURL, bs.emulatorHost)
}

func publicObjectURL(bucket, key, cdnDomain string, mode ObjectStorageMode, publicBaseURL, emulatorHost string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", cdnDomain, key)
	}
	if mode == ObjectStorageModeGCSEmulator {
		base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
		if base == "" {
			base = strings.TrimRight(strings.TrimSpace(emulatorHost), "/")
		}
		if base != "" {
			return emulatorMediaURL(base, bucket, key)
		}
	}
	if publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", publicBaseURL, bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}

func emulatorMediaURL(base, bucket, key string) string {
	return fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s?alt=media",
		strings.TrimRight(base, "/"),
		url.PathEscape(bucket),
		url.PathEscape(key),
	)
}

// The reader's context must outlive this call, so cancel is tied to Close.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *bucketService) OpenObject(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if IsEmulatorObjectStorageMode(bs.storageMode) && bs.emulatorHost != "" {
		req, err := http.NewRequestWithContext(ctx2, http.MethodGet, emulatorMediaURL(bs.emulatorHost, bs.bucketName, key), nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed creating emulator download request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed emulator download request: %w", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			_ = resp.Body.Close()
			cancel()
			return nil, ErrObjectNotFound
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return &readCloserWithCancel{ReadCloser: resp.Body, cancel: cancel}, nil
	}

	r, err := bs.storageClient.Bucket(bs.bucketName).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}
