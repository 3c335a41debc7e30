package gallery

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Source 枚举并读取参考图片。List 只返回可索引的图片文件名，顺序即索引顺序。
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
	String() string
}

// DirSource 从本地目录读取图库。
type DirSource struct {
	dir string
}

// NewDirSource 创建本地目录图库来源。
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Dir 返回图库目录，供静态文件服务使用。
func (s *DirSource) Dir() string {
	return s.dir
}

// List 返回目录下的图片文件名（按文件名排序，忽略子目录与隐藏文件）。
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("读取图库目录失败: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Read 读取单个图片的全部字节。
func (s *DirSource) Read(ctx context.Context, name string) ([]byte, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("非法的图片名: %q", name)
	}
	return os.ReadFile(filepath.Join(s.dir, name))
}

func (s *DirSource) String() string {
	return "dir:" + s.dir
}

// MinIOSource 从对象存储的某个前缀下读取图库，只取前缀下第一层对象。
type MinIOSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIOSource 创建对象存储图库来源。
func NewMinIOSource(client *minio.Client, bucket, prefix string) *MinIOSource {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &MinIOSource{client: client, bucket: bucket, prefix: prefix}
}

// ObjectName 返回图片在存储桶中的完整对象名。
func (s *MinIOSource) ObjectName(name string) string {
	return s.prefix + name
}

// List 列出前缀下的图片对象。
func (s *MinIOSource) List(ctx context.Context) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("列出 MinIO 对象失败: %w", obj.Err)
		}
		name := path.Base(obj.Key)
		if strings.HasSuffix(obj.Key, "/") || !IsImageFile(name) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Read 下载单个图片对象。
func (s *MinIOSource) Read(ctx context.Context, name string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, s.ObjectName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("从 MinIO 下载图片失败: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("读取 MinIO 对象流失败: %w", err)
	}
	return data, nil
}

func (s *MinIOSource) String() string {
	return fmt.Sprintf("minio:%s/%s", s.bucket, s.prefix)
}

// Bucket 返回存储桶名。
func (s *MinIOSource) Bucket() string {
	return s.bucket
}
