package model

// GalleryDocument 定义了存储在 Elasticsearch 中的图库向量文档。
type GalleryDocument struct {
	ImageID      string    `json:"image_id"` // 图库文件名，同时作为文档 ID
	Name         string    `json:"name"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}
