package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"wileywidget/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Archive 导出文件归档
type Archive interface {
	// Store 保存文件并返回归档键，未配置归档时返回空串
	Store(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// ArchiveKey 归档路径 exports/{yyyy}/{mm}/{filename}
func ArchiveKey(t time.Time, filename string) string {
	return path.Join("exports", t.Format("2006"), t.Format("01"), path.Base(filename))
}

// NewArchive 根据配置创建归档
func NewArchive(cfg config.ExportConfig, l *zap.Logger) (Archive, error) {
	switch strings.ToLower(cfg.Archive) {
	case "", "none":
		return NoopArchive{}, nil
	case "local":
		dir := cfg.LocalDir
		if dir == "" {
			dir = "./archive"
		}
		return NewLocalArchive(dir), nil
	case "s3":
		return NewS3Archive(cfg, l)
	default:
		return nil, fmt.Errorf("不支持的归档类型: %s", cfg.Archive)
	}
}

// NoopArchive 不归档
type NoopArchive struct{}

// Store 不做任何事
func (NoopArchive) Store(context.Context, string, string, []byte) (string, error) {
	return "", nil
}

// LocalArchive 归档到本地目录
type LocalArchive struct {
	dir string
	now func() time.Time
}

// NewLocalArchive 创建本地归档
func NewLocalArchive(dir string) *LocalArchive {
	return &LocalArchive{dir: dir, now: time.Now}
}

// Store 写入 {dir}/exports/{yyyy}/{mm}/{filename}
func (a *LocalArchive) Store(_ context.Context, filename, _ string, data []byte) (string, error) {
	key := ArchiveKey(a.now(), filename)
	full := filepath.Join(a.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("创建归档目录失败: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("写入归档文件失败: %w", err)
	}
	return key, nil
}

// putObjectAPI s3.Client 的上传子集
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive 归档到 S3 兼容存储
type S3Archive struct {
	client putObjectAPI
	bucket string
	now    func() time.Time
	logger *zap.Logger
}

// NewS3Archive 创建 S3 归档
func NewS3Archive(cfg config.ExportConfig, l *zap.Logger) (*S3Archive, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("s3 bucket 未配置")
	}
	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
	})
	return &S3Archive{client: client, bucket: cfg.S3Bucket, now: time.Now, logger: l}, nil
}

// Store 上传文件
func (a *S3Archive) Store(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	key := ArchiveKey(a.now(), filename)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("上传归档失败: %w", err)
	}
	a.logger.Info("导出文件已归档", zap.String("bucket", a.bucket), zap.String("key", key), zap.Int("bytes", len(data)))
	return key, nil
}
