package tiffio

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func samplePlane(w, h, seed int) []float32 {
	p := make([]float32, w*h)
	for i := range p {
		p[i] = float32(seed*1000+i) * 0.37
	}
	return p
}

func encodeToReader(t *testing.T, planes [][]float32, w, h int, opt *Options) (*Reader, []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, EncodeFloat32(&buf, planes, w, h, opt))
	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return r, buf.Bytes()
}

func assertSameBits(t *testing.T, want, got []float32) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.Float32bits(want[i]) != math.Float32bits(got[i]) {
			t.Fatalf("sample %d: want %v, got %v", i, want[i], got[i])
		}
	}
}

func TestEncodeFloat32_RoundTrip(t *testing.T) {
	const w, h = 37, 21
	planes := [][]float32{samplePlane(w, h, 1), samplePlane(w, h, 2)}
	planes[0][5] = float32(math.NaN())
	planes[1][w*h-1] = float32(math.Inf(-1))

	for name, opt := range map[string]*Options{
		"plain":         nil,
		"deflate":       {Compress: true},
		"tiled":         {TileSize: 16},
		"tiled deflate": {Compress: true, TileSize: 16},
	} {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			r, _ := encodeToReader(t, planes, w, h, opt)

			assert.Equal(w, r.Width())
			assert.Equal(h, r.Height())
			assert.Equal(2, r.SamplesPerPixel())
			assert.Equal(32, r.BitsPerSample())
			assert.Equal(Float, r.Format())

			for ch, want := range planes {
				got := make([]float32, w*h)
				require.NoError(t, r.ReadRegion(ch, image.Rect(0, 0, w, h), got))
				assertSameBits(t, want, got)
			}
			assert.NoError(r.Close())
		})
	}
}

func TestReader_ReadRegionWindow(t *testing.T) {
	const w, h = 37, 21
	plane := samplePlane(w, h, 3)
	r, _ := encodeToReader(t, [][]float32{plane}, w, h, &Options{Compress: true, TileSize: 16})

	rect := image.Rect(5, 3, 30, 20)
	got := make([]float32, rect.Dx()*rect.Dy())
	require.NoError(t, r.ReadRegion(0, rect, got))

	want := make([]float32, 0, len(got))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		want = append(want, plane[y*w+rect.Min.X:y*w+rect.Max.X]...)
	}
	assertSameBits(t, want, got)
}

type countingReaderAt struct {
	r     *bytes.Reader
	bytes int64
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := c.r.ReadAt(p, off)
	atomic.AddInt64(&c.bytes, int64(n))
	return n, err
}

func TestReader_ReadsOnlyIntersectingTiles(t *testing.T) {
	const w, h = 128, 128
	var buf bytes.Buffer
	require.NoError(t, EncodeFloat32(&buf, [][]float32{samplePlane(w, h, 0)}, w, h, &Options{TileSize: 16}))

	cr := &countingReaderAt{r: bytes.NewReader(buf.Bytes())}
	r, err := NewReader(cr)
	require.NoError(t, err)

	got := make([]float32, 8*8)
	require.NoError(t, r.ReadRegion(0, image.Rect(20, 20, 28, 28), got))

	// One 16x16 tile plus the header and directory.
	assert.Less(t, cr.bytes, int64(16*16*4+2048))
	assert.Greater(t, int64(buf.Len()), int64(w*h*4))
}

func TestReader_ForeignTIFF(t *testing.T) {
	t.Run("gray16 lzw predictor", func(t *testing.T) {
		assert := assert.New(t)
		img := image.NewGray16(image.Rect(0, 0, 9, 4))
		for i := 0; i < 36; i++ {
			img.SetGray16(i%9, i/9, color.Gray16{Y: uint16(i * 1811)})
		}
		var buf bytes.Buffer
		require.NoError(t, tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.LZW, Predictor: true}))

		r, err := NewReader(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(1, r.SamplesPerPixel())
		assert.Equal(16, r.BitsPerSample())
		assert.Equal(Uint, r.Format())

		got := make([]float32, 36)
		require.NoError(t, r.ReadRegion(0, image.Rect(0, 0, 9, 4), got))
		for i, v := range got {
			assert.Equal(float32(i*1811), v)
		}
	})

	t.Run("nrgba deflate", func(t *testing.T) {
		assert := assert.New(t)
		img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
		img.SetNRGBA(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 40})
		var buf bytes.Buffer
		require.NoError(t, tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}))

		r, err := NewReader(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(4, r.SamplesPerPixel())
		assert.Equal(8, r.BitsPerSample())

		px := make([]float32, 1)
		for ch, want := range []float32{10, 20, 30, 40} {
			require.NoError(t, r.ReadRegion(ch, image.Rect(2, 1, 3, 2), px))
			assert.Equal(want, px[0])
		}
	})

	t.Run("paletted", func(t *testing.T) {
		img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
		var buf bytes.Buffer
		require.NoError(t, tiff.Encode(&buf, img, nil))

		_, err := NewReader(bytes.NewReader(buf.Bytes()))
		var unsupported UnsupportedError
		assert.True(t, errors.As(err, &unsupported))
	})
}

func TestNewReader_NotTIFF(t *testing.T) {
	assert := assert.New(t)

	for _, data := range [][]byte{
		[]byte("\x89PNG\r\n\x1a\n0000"),
		[]byte("II"),
		[]byte("II\x2B\x00\x00\x00\x00\x00"),
		nil,
	} {
		_, err := NewReader(bytes.NewReader(data))
		assert.Error(err)
	}
	_, err := NewReader(bytes.NewReader([]byte("GIF89a......")))
	assert.Equal(ErrNotTIFF, err)

	_, err = NewReader(bytes.NewReader([]byte("II\x2B\x00\x08\x00\x00\x00")))
	assert.Equal(UnsupportedError("BigTIFF"), err)
}

func TestReader_ReadRegionArguments(t *testing.T) {
	assert := assert.New(t)
	r, _ := encodeToReader(t, [][]float32{samplePlane(4, 4, 0)}, 4, 4, nil)

	assert.Error(r.ReadRegion(1, image.Rect(0, 0, 1, 1), make([]float32, 1)))
	assert.Error(r.ReadRegion(0, image.Rect(3, 3, 5, 5), make([]float32, 4)))
	assert.Error(r.ReadRegion(0, image.Rect(0, 0, 2, 2), make([]float32, 3)))
	assert.Error(r.ReadRegion(0, image.Rect(1, 1, 1, 1), nil))
}

func TestEncodeFloat32_Arguments(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer

	assert.Error(EncodeFloat32(&buf, nil, 2, 2, nil))
	assert.Error(EncodeFloat32(&buf, [][]float32{make([]float32, 3)}, 2, 2, nil))
	assert.Error(EncodeFloat32(&buf, [][]float32{make([]float32, 4)}, 0, 2, nil))
	assert.Error(EncodeFloat32(&buf, [][]float32{make([]float32, 4)}, 2, 2, &Options{TileSize: 10}))
}

func Benchmark_ReadRegion(b *testing.B) {
	const w, h = 512, 512
	var buf bytes.Buffer
	if err := EncodeFloat32(&buf, [][]float32{samplePlane(w, h, 0)}, w, h, &Options{Compress: true, TileSize: 64}); err != nil {
		b.Fatal(err)
	}
	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		b.Fatal(err)
	}
	dst := make([]float32, 100*100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.ReadRegion(0, image.Rect(200, 200, 300, 300), dst); err != nil {
			b.Fatal(err)
		}
	}
}
