package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chachabrian/hacktruck-backend/internal/config"
)

const MaxImageSize = 5 << 20

var (
	ErrImageTooLarge    = errors.New("image must be 5MB or smaller")
	ErrUnsupportedImage = errors.New("only jpeg, png, gif and webp images are allowed")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageStore saves listing photos and returns a public URL for them.
type ImageStore interface {
	Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error)
	Delete(ctx context.Context, imageURL string) error
}

// NewImageStore picks the backend named by STORAGE_DRIVER. When no driver is
// set, Cloudinary is used if configured, then S3, then the local disk.
func NewImageStore(cfg *config.Config, log *zap.Logger) (ImageStore, error) {
	driver := cfg.StorageDriver
	if driver == "" {
		switch {
		case cfg.CloudinaryURL != "":
			driver = "cloudinary"
		case cfg.AWSRegion != "" && cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "":
			driver = "s3"
		default:
			driver = "local"
		}
	}

	switch driver {
	case "cloudinary":
		store, err := NewCloudinaryImageStore(cfg.CloudinaryURL)
		if err != nil {
			return nil, err
		}
		log.Info("image storage initialized", zap.String("driver", driver))
		return store, nil
	case "s3":
		store, err := NewS3ImageStore(cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.AWSS3Bucket)
		if err != nil {
			return nil, err
		}
		log.Info("image storage initialized", zap.String("driver", driver), zap.String("bucket", cfg.AWSS3Bucket))
		return store, nil
	default:
		store, err := NewLocalImageStore(cfg.UploadDir, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		log.Warn("using local image storage, not recommended for production", zap.String("dir", cfg.UploadDir))
		return store, nil
	}
}

// readImage loads an uploaded file and checks its size and sniffed type.
func readImage(file *multipart.FileHeader) ([]byte, string, error) {
	if file.Size > MaxImageSize {
		return nil, "", ErrImageTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, "", ErrImageTooLarge
	}

	contentType := http.DetectContentType(data)
	if _, ok := imageExtensions[contentType]; !ok {
		return nil, "", ErrUnsupportedImage
	}
	return data, contentType, nil
}

func objectName(folder, contentType string) string {
	return path.Join(folder, uuid.NewString()+imageExtensions[contentType])
}

type S3ImageStore struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	region   string
}

func NewS3ImageStore(region, accessKey, secretKey, bucket string) (*S3ImageStore, error) {
	if bucket == "" {
		return nil, errors.New("S3 bucket name not configured")
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &S3ImageStore{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   bucket,
		region:   region,
	}, nil
}

func (s *S3ImageStore) Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error) {
	data, contentType, err := readImage(file)
	if err != nil {
		return "", err
	}

	key := objectName(folder, contentType)
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	// The bucket policy grants public read, so the URL is built directly.
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

func (s *S3ImageStore) Delete(ctx context.Context, imageURL string) error {
	key, err := s3KeyFromURL(imageURL)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func s3KeyFromURL(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("invalid image url: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("no object key in %q", imageURL)
	}
	return key, nil
}

type CloudinaryImageStore struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryImageStore(cloudinaryURL string) (*CloudinaryImageStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	return &CloudinaryImageStore{cld: cld}, nil
}

func (s *CloudinaryImageStore) Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error) {
	data, _, err := readImage(file)
	if err != nil {
		return "", err
	}

	result, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:   folder,
		PublicID: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	if result.SecureURL == "" {
		return "", errors.New("cloudinary returned no url")
	}
	return result.SecureURL, nil
}

func (s *CloudinaryImageStore) Delete(ctx context.Context, imageURL string) error {
	publicID, err := cloudinaryPublicID(imageURL)
	if err != nil {
		return err
	}
	if _, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("failed to delete from cloudinary: %w", err)
	}
	return nil
}

// cloudinaryPublicID recovers "folder/name" from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1700000000/listings/abc.jpg.
func cloudinaryPublicID(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("invalid image url: %w", err)
	}
	_, rest, ok := strings.Cut(u.Path, "/upload/")
	if !ok || rest == "" {
		return "", fmt.Errorf("not a cloudinary upload url: %q", imageURL)
	}
	if first, after, found := strings.Cut(rest, "/"); found && len(first) > 1 && first[0] == 'v' && isDigits(first[1:]) {
		rest = after
	}
	return strings.TrimSuffix(rest, path.Ext(rest)), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// LocalImageStore writes files under dir and serves them from /uploads.
type LocalImageStore struct {
	dir     string
	baseURL string
}

func NewLocalImageStore(dir, baseURL string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalImageStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *LocalImageStore) Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error) {
	data, contentType, err := readImage(file)
	if err != nil {
		return "", err
	}

	name := objectName(folder, contentType)
	target := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return s.baseURL + "/uploads/" + name, nil
}

func (s *LocalImageStore) Delete(ctx context.Context, imageURL string) error {
	u, err := url.Parse(imageURL)
	if err != nil {
		return fmt.Errorf("invalid image url: %w", err)
	}
	_, rel, ok := strings.Cut(u.Path, "/uploads/")
	if !ok || rel == "" {
		return fmt.Errorf("not a local upload url: %q", imageURL)
	}
	clean := path.Clean("/" + rel)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("invalid upload path %q", rel)
	}
	if err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(clean))); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
