package gallery

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const nameMarker = "photo_of_"

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".webp": {},
}

// IsImageFile 判断文件名是否是可索引的图片：扩展名受支持且不是隐藏文件。
func IsImageFile(name string) bool {
	base := filepath.Base(name)
	if base == "" || strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

// DisplayName 从文件名推导展示名。
// "page1_10_photo_of_blondie.jpg" -> "Blondie"；没有标记时返回去掉扩展名的文件名。
func DisplayName(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	i := strings.Index(stem, nameMarker)
	if i < 0 {
		return stem
	}
	name := strings.TrimRight(stem[i+len(nameMarker):], "_")
	if name == "" {
		return stem
	}
	name = strings.ReplaceAll(name, "_", " ")

	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}
