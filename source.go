package homwarp

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/emasquil/homwarp/tiffio"
	"github.com/emasquil/homwarp/utils"
	"github.com/pkg/errors"

	_ "golang.org/x/image/webp"
)

// Source is a raster the rectifier reads regions from.
//
// Implementations must allow concurrent ReadRegion calls on distinct channels.
type Source interface {
	Width() int
	Height() int
	Channels() int
	// ReadRegion reads the r region of channel ch into buf, row by row.
	// buf must hold exactly r.Dx()*r.Dy() samples.
	ReadRegion(ch int, r image.Rectangle, buf []float32) error
	Close() error
}

func checkRegion(s Source, ch int, r image.Rectangle, buf []float32) error {
	if ch < 0 || ch >= s.Channels() {
		return newError(IOFailure, "read region", errors.Errorf("channel %d out of range [0, %d)", ch, s.Channels()))
	}
	if r.Empty() || !r.In(image.Rect(0, 0, s.Width(), s.Height())) {
		return newError(IOFailure, "read region",
			errors.Errorf("region %v outside the %dx%d source", r, s.Width(), s.Height()))
	}
	if len(buf) != r.Dx()*r.Dy() {
		return newError(IOFailure, "read region",
			errors.Errorf("buffer holds %d samples, region needs %d", len(buf), r.Dx()*r.Dy()))
	}
	return nil
}

// MemorySource serves regions of an in-memory raster.
type MemorySource struct {
	raster *Raster
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource wraps r. The raster must not be modified while the source is in use.
func NewMemorySource(r *Raster) *MemorySource {
	return &MemorySource{raster: r}
}

func (s *MemorySource) Width() int    { return s.raster.Width }
func (s *MemorySource) Height() int   { return s.raster.Height }
func (s *MemorySource) Channels() int { return s.raster.Channels() }

// ReadRegion implements Source.
func (s *MemorySource) ReadRegion(ch int, r image.Rectangle, buf []float32) error {
	if err := checkRegion(s, ch, r, buf); err != nil {
		return err
	}
	plane := s.raster.Planes[ch]
	w := r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := y*s.raster.Width + r.Min.X
		copy(buf[(y-r.Min.Y)*w:(y-r.Min.Y+1)*w], plane[off:off+w])
	}
	return nil
}

// Depth returns the depth recorded in the wrapped raster.
func (s *MemorySource) Depth() int { return s.raster.Depth }

func (s *MemorySource) Close() error { return nil }

// ImageSource serves regions of a decoded image. Gray images have one channel,
// opaque color images three (R, G, B) and translucent ones four (R, G, B, A).
// Samples keep the native range of the image: 0..255 for 8-bit and 0..65535 for 16-bit data.
type ImageSource struct {
	img      image.Image
	width    int
	height   int
	channels int
	depth    int
}

var _ Source = (*ImageSource)(nil)

// NewImageSource wraps a decoded image.
func NewImageSource(img image.Image) *ImageSource {
	b := img.Bounds()
	s := &ImageSource{img: img, width: b.Dx(), height: b.Dy(), channels: 3, depth: 8}

	switch img.(type) {
	case *image.Gray:
		s.channels = 1
	case *image.Gray16:
		s.channels, s.depth = 1, 16
	case *image.RGBA64, *image.NRGBA64:
		s.depth = 16
	}
	if s.channels != 1 {
		if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
			s.channels = 4
		}
	}
	return s
}

// OpenSource opens the raster stored at path. The path may also be a URL, in which case
// the file is downloaded first. TIFF files are read region by region, keeping float
// samples; other formats are decoded in full.
func OpenSource(ctx context.Context, path string) (Source, error) {
	cleanup := func() {}
	if utils.IsValidUrl(path) {
		f, err := utils.DownloadImage(ctx, path)
		if err != nil {
			return nil, newError(IOFailure, "open source", err)
		}
		name := f.Name()
		f.Close()
		cleanup = func() { os.Remove(name) }
		path = name
	}

	ts, err := OpenTIFFSource(path)
	if err == nil {
		ts.cleanup = cleanup
		return ts, nil
	}
	defer cleanup()
	if !decodableElsewhere(err) {
		return nil, newError(IOFailure, "open source", errors.Wrapf(err, "cannot open %s", path))
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, newError(IOFailure, "open source", errors.Wrapf(err, "cannot open %s", path))
	}
	return NewImageSource(img), nil
}

// DecodeSource reads a whole raster from r.
func DecodeSource(r io.Reader) (Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newError(IOFailure, "decode source", err)
	}

	tr, err := tiffio.NewReader(bytes.NewReader(data))
	if err == nil {
		return &TIFFSource{r: tr}, nil
	}
	if !decodableElsewhere(err) {
		return nil, newError(IOFailure, "decode source", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, newError(IOFailure, "decode source", err)
	}
	return NewImageSource(img), nil
}

// decodableElsewhere reports whether a TIFF reader error leaves room for the image decoders.
func decodableElsewhere(err error) bool {
	var unsupported tiffio.UnsupportedError
	return errors.Is(err, tiffio.ErrNotTIFF) || errors.As(err, &unsupported)
}

func (s *ImageSource) Width() int    { return s.width }
func (s *ImageSource) Height() int   { return s.height }
func (s *ImageSource) Channels() int { return s.channels }

// Depth returns the bit depth of the samples, 8 or 16.
func (s *ImageSource) Depth() int { return s.depth }

// ReadRegion implements Source.
func (s *ImageSource) ReadRegion(ch int, r image.Rectangle, buf []float32) error {
	if s.img == nil {
		return newError(IOFailure, "read region", errors.New("source is closed"))
	}
	if err := checkRegion(s, ch, r, buf); err != nil {
		return err
	}
	origin := s.img.Bounds().Min
	w := r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := buf[(y-r.Min.Y)*w : (y-r.Min.Y+1)*w]
		for x := r.Min.X; x < r.Max.X; x++ {
			row[x-r.Min.X] = s.sample(origin.X+x, origin.Y+y, ch)
		}
	}
	return nil
}

// sample returns one channel of the pixel at the absolute position (x, y).
func (s *ImageSource) sample(x, y, ch int) float32 {
	switch img := s.img.(type) {
	case *image.Gray:
		return float32(img.Pix[img.PixOffset(x, y)])
	case *image.Gray16:
		i := img.PixOffset(x, y)
		return float32(uint16(img.Pix[i])<<8 | uint16(img.Pix[i+1]))
	case *image.NRGBA:
		return float32(img.Pix[img.PixOffset(x, y)+ch])
	case *image.NRGBA64:
		i := img.PixOffset(x, y) + 2*ch
		return float32(uint16(img.Pix[i])<<8 | uint16(img.Pix[i+1]))
	}

	c := color.NRGBA64Model.Convert(s.img.At(x, y)).(color.NRGBA64)
	v := [4]uint16{c.R, c.G, c.B, c.A}[ch]
	if s.depth == 8 {
		return float32(v >> 8)
	}
	return float32(v)
}

// Close releases the decoded image.
func (s *ImageSource) Close() error {
	s.img = nil
	return nil
}
