package gallery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"page1_10_photo_of_blondie.jpg", "Blondie"},
		{"random.jpg", "random"},
		{"page2_3_photo_of_mister_bean_.png", "Mister bean"},
		{"photo_of_max.webp", "Max"},
		{"photo_of_.jpg", "photo_of_"},
		{"Rex.JPEG", "Rex"},
		{"photo_of_élan.gif", "Élan"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.file))
		})
	}
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.gif", "e.bmp", "f.WebP"} {
		assert.True(t, IsImageFile(name), name)
	}
	for _, name := range []string{".hidden.jpg", "notes.txt", "archive.tar.gz", "noext", ".DS_Store"} {
		assert.False(t, IsImageFile(name), name)
	}
}
