package objectstore

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/shaiso/meshforge/internal/domain"
)

// objectAPI — часть *minio.Client, которой пользуется Store.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store выгружает файлы в один бакет.
type Store struct {
	client objectAPI
	bucket string
	region string
}

// NewStore создаёт Store с MinIO клиентом по конфигурации.
func NewStore(cfg Config) (*Store, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// NewStoreWithClient создаёт Store поверх готового клиента.
func NewStoreWithClient(client objectAPI, bucket, region string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	return &Store{client: client, bucket: bucket, region: region}, nil
}

// Bucket возвращает имя бакета.
func (s *Store) Bucket() string {
	return s.bucket
}

// EnsureBucket создаёт бакет, если его нет.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// UploadFile выгружает локальный файл под ключом key.
func (s *Store) UploadFile(ctx context.Context, key, localPath string) error {
	opts := minio.PutObjectOptions{ContentType: ContentType(localPath)}
	if _, err := s.client.FPutObject(ctx, s.bucket, key, localPath, opts); err != nil {
		return fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Upload выгружает артефакт и возвращает его имя.
func (s *Store) Upload(ctx context.Context, name, localPath string) (string, error) {
	if err := s.UploadFile(ctx, name, localPath); err != nil {
		return "", err
	}
	return name, nil
}

// UploadDir выгружает все файлы dir под префиксом prefix.
// Возвращает число выгруженных файлов.
func (s *Store) UploadDir(ctx context.Context, prefix, dir string) (int, error) {
	keys, err := DirKeys(prefix, dir)
	if err != nil {
		return 0, err
	}

	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.UploadFile(ctx, k.Key, k.Path); err != nil {
			return i, err
		}
	}
	return len(keys), nil
}

// FileKey — локальный файл и его ключ в бакете.
type FileKey struct {
	Path string
	Key  string
}

// DirKeys возвращает файлы dir с ключами prefix/<относительный путь>.
// Ключи всегда через "/".
func DirKeys(prefix, dir string) ([]FileKey, error) {
	var keys []FileKey
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		keys = append(keys, FileKey{
			Path: p,
			Key:  path.Join(prefix, filepath.ToSlash(rel)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return keys, nil
}

// ContentType определяет MIME тип артефакта по расширению.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".glb":
		return "model/gltf-binary"
	case ".ply":
		return "application/x-ply"
	case ".obj":
		return "model/obj"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// RunArchiver выгружает директорию run в бакет под префиксом run_<N>/.
type RunArchiver struct {
	store *Store
}

// NewRunArchiver создаёт RunArchiver.
func NewRunArchiver(store *Store) *RunArchiver {
	return &RunArchiver{store: store}
}

// Archive выгружает run.Dir.
func (a *RunArchiver) Archive(ctx context.Context, run *domain.Run) error {
	if _, err := a.store.UploadDir(ctx, run.Name, run.Dir); err != nil {
		return fmt.Errorf("archive %s: %w", run.Name, err)
	}
	return nil
}
