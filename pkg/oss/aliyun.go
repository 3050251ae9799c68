// Package oss 打款对账单的对象存储
package oss

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// ContentTypeCSV 对账单内容类型
const ContentTypeCSV = "text/csv; charset=utf-8"

// Uploader 上传器接口
type Uploader interface {
	// Upload 上传对象，返回访问地址
	Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) (string, error)
	GetURL(objectKey string) string
}

// StatementKey 对账单对象键：prefix/vendor-<id>/2006/01/<payoutNo>.csv
func StatementKey(prefix string, vendorID int64, payoutNo string, periodStart time.Time) string {
	return joinKey(prefix, fmt.Sprintf("vendor-%d/%s/%s.csv", vendorID, periodStart.Format("2006/01"), payoutNo))
}

func joinKey(basePath, objectKey string) string {
	if basePath == "" {
		return objectKey
	}
	return path.Join(basePath, objectKey)
}

// AliyunConfig 阿里云 OSS 配置
type AliyunConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
	Domain          string // 自定义域名，可选
	BasePath        string
}

// AliyunUploader 阿里云 OSS 上传器，对象均为私有读
type AliyunUploader struct {
	bucket  *oss.Bucket
	baseURL string
	prefix  string
}

// NewAliyunUploader 创建阿里云 OSS 上传器
func NewAliyunUploader(cfg *AliyunConfig) (*AliyunUploader, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("create oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", cfg.BucketName, err)
	}
	return &AliyunUploader{bucket: bucket, baseURL: baseURL(cfg), prefix: cfg.BasePath}, nil
}

func baseURL(cfg *AliyunConfig) string {
	if cfg.Domain != "" {
		return strings.TrimSuffix(cfg.Domain, "/")
	}
	return fmt.Sprintf("https://%s.%s", cfg.BucketName, cfg.Endpoint)
}

// Upload 上传对象
func (u *AliyunUploader) Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opts := []oss.Option{oss.ObjectACL(oss.ACLPrivate)}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if err := u.bucket.PutObject(joinKey(u.prefix, objectKey), reader, opts...); err != nil {
		return "", fmt.Errorf("put object %s: %w", objectKey, err)
	}
	return u.GetURL(objectKey), nil
}

// GetURL 对象地址
func (u *AliyunUploader) GetURL(objectKey string) string {
	return u.baseURL + "/" + joinKey(u.prefix, objectKey)
}

// MockUploader 内存上传器，未配置 OSS 时使用
type MockUploader struct {
	mu    sync.Mutex
	files map[string][]byte
	Err   error
}

// NewMockUploader 创建内存上传器
func NewMockUploader() *MockUploader {
	return &MockUploader{files: make(map[string][]byte)}
}

func (u *MockUploader) Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) (string, error) {
	if u.Err != nil {
		return "", u.Err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	u.files[objectKey] = data
	u.mu.Unlock()
	return u.GetURL(objectKey), nil
}

// Get 读取已上传的内容
func (u *MockUploader) Get(objectKey string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.files[objectKey]
	return data, ok
}

func (u *MockUploader) GetURL(objectKey string) string {
	return "memory://statements/" + objectKey
}
