package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math/rand/v2"
	"testing"
	"time"

	"pet-match-go/internal/gallery"
	"pet-match-go/internal/ranker"
	"pet-match-go/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pixelEmbedder 把缩放后的像素直接展开为向量，相同图片必然得到相同向量。
func pixelEmbedder() embedding.Embedder {
	return embedding.EmbedderFunc(func(ctx context.Context, data []byte) ([]float32, error) {
		img, err := embedding.Decode(data)
		if err != nil {
			return nil, err
		}
		rgb := embedding.Fit(img, 8)
		vec := make([]float32, 0, 8*8*3)
		for i := 0; i < len(rgb.Pix); i += 4 {
			vec = append(vec, float32(rgb.Pix[i])+1, float32(rgb.Pix[i+1])+1, float32(rgb.Pix[i+2])+1)
		}
		return vec, nil
	})
}

func patternPNG(t *testing.T, seed uint64) []byte {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed+1))
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.IntN(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func galleryFrom(t *testing.T, emb embedding.Embedder, images map[string][]byte, order []string) *gallery.Holder {
	t.Helper()
	var entries []gallery.Entry
	for _, id := range order {
		vec, err := emb.Embed(context.Background(), images[id])
		require.NoError(t, err)
		entries = append(entries, gallery.Entry{ID: id, Name: gallery.DisplayName(id), Embedding: vec})
	}
	h := gallery.NewHolder()
	h.Store(gallery.NewIndex("test", entries))
	return h
}

func newTestService(h *gallery.Holder, emb embedding.Embedder) MatchService {
	enricher := NewRandomEnricher(rand.New(rand.NewPCG(7, 7)), 70, 99)
	return NewMatchService(emb, h, ranker.NewMemoryRanker(), enricher, time.Second)
}

func TestMatchIdenticalImageRanksFirst(t *testing.T) {
	emb := pixelEmbedder()
	images := map[string][]byte{
		"page1_10_photo_of_blondie.jpg": patternPNG(t, 1),
		"random.jpg":                    patternPNG(t, 2),
		"photo_of_rex.png":              patternPNG(t, 3),
	}
	h := galleryFrom(t, emb, images, []string{"page1_10_photo_of_blondie.jpg", "random.jpg", "photo_of_rex.png"})
	svc := newTestService(h, emb)

	matches, err := svc.Match(context.Background(), images["random.jpg"], 5)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "random.jpg", matches[0].ID)
	assert.Equal(t, "random", matches[0].Name)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
	for _, m := range matches {
		assert.NotEmpty(t, m.Breed)
		assert.NotEmpty(t, m.Location)
		assert.Contains(t, m.Description, m.Name)
	}
}

func TestMatchTruncatesToTopK(t *testing.T) {
	emb := pixelEmbedder()
	images := map[string][]byte{}
	var order []string
	for i := uint64(0); i < 7; i++ {
		id := string(rune('a'+i)) + ".png"
		images[id] = patternPNG(t, 100+i)
		order = append(order, id)
	}
	svc := newTestService(galleryFrom(t, emb, images, order), emb)

	matches, err := svc.Match(context.Background(), patternPNG(t, 999), 5)
	require.NoError(t, err)
	assert.Len(t, matches, 5)

	none, err := svc.Match(context.Background(), patternPNG(t, 999), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMatchEmptyGalleryReturnsEmptyList(t *testing.T) {
	h := gallery.NewHolder()
	h.Store(gallery.NewIndex("test", nil))
	svc := newTestService(h, pixelEmbedder())

	matches, err := svc.Match(context.Background(), patternPNG(t, 1), 5)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestMatchErrors(t *testing.T) {
	ready := gallery.NewHolder()
	ready.Store(gallery.NewIndex("test", []gallery.Entry{{ID: "a.png", Embedding: []float32{1}}}))

	t.Run("no image", func(t *testing.T) {
		_, err := newTestService(ready, pixelEmbedder()).Match(context.Background(), nil, 5)
		assert.ErrorIs(t, err, ErrNoQueryImage)
	})

	t.Run("not ready", func(t *testing.T) {
		_, err := newTestService(gallery.NewHolder(), pixelEmbedder()).Match(context.Background(), patternPNG(t, 1), 5)
		assert.ErrorIs(t, err, ErrIndexNotReady)
	})

	t.Run("decode failure", func(t *testing.T) {
		_, err := newTestService(ready, pixelEmbedder()).Match(context.Background(), []byte("garbage"), 5)
		assert.ErrorIs(t, err, embedding.ErrDecode)
	})

	t.Run("model failure", func(t *testing.T) {
		failing := embedding.EmbedderFunc(func(ctx context.Context, data []byte) ([]float32, error) {
			return nil, errors.Join(embedding.ErrModel, errors.New("out of memory"))
		})
		matches, err := newTestService(ready, failing).Match(context.Background(), patternPNG(t, 1), 5)
		assert.ErrorIs(t, err, embedding.ErrModel)
		assert.Nil(t, matches)
	})

	t.Run("timeout propagates to embedder", func(t *testing.T) {
		slow := embedding.EmbedderFunc(func(ctx context.Context, data []byte) ([]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		svc := NewMatchService(slow, ready, ranker.NewMemoryRanker(), NewRandomEnricher(nil, 70, 99), 20*time.Millisecond)
		_, err := svc.Match(context.Background(), patternPNG(t, 1), 5)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

type failingRanker struct{}

func (failingRanker) Rank(ctx context.Context, q []float32, idx *gallery.Index, k int) ([]ranker.Result, error) {
	return nil, errors.New("es down")
}

func TestMatchRankerFailureIsAllOrNothing(t *testing.T) {
	h := gallery.NewHolder()
	h.Store(gallery.NewIndex("test", []gallery.Entry{{ID: "a.png", Embedding: []float32{1}}}))
	svc := NewMatchService(pixelEmbedder(), h, failingRanker{}, NewRandomEnricher(nil, 70, 99), 0)

	matches, err := svc.Match(context.Background(), patternPNG(t, 1), 5)
	assert.Error(t, err)
	assert.Nil(t, matches)
}
