package homwarp

import (
	"image"

	"github.com/emasquil/homwarp/tiffio"
)

// TIFFSource reads regions straight from a TIFF file. Only the strips or tiles covering
// a region are decoded, and float or signed samples keep their values.
type TIFFSource struct {
	r       *tiffio.Reader
	cleanup func()
}

var _ Source = (*TIFFSource)(nil)

// OpenTIFFSource opens the TIFF file stored at path.
// The errors are those of tiffio, so callers can tell a non-TIFF file apart.
func OpenTIFFSource(path string) (*TIFFSource, error) {
	r, err := tiffio.Open(path)
	if err != nil {
		return nil, err
	}
	return &TIFFSource{r: r}, nil
}

func (s *TIFFSource) Width() int    { return s.r.Width() }
func (s *TIFFSource) Height() int   { return s.r.Height() }
func (s *TIFFSource) Channels() int { return s.r.SamplesPerPixel() }

// Depth returns 8 or 16 for small integer samples and DepthFloat otherwise.
func (s *TIFFSource) Depth() int {
	if s.r.Format() == tiffio.Float || s.r.BitsPerSample() > 16 {
		return DepthFloat
	}
	return s.r.BitsPerSample()
}

// ReadRegion implements Source.
func (s *TIFFSource) ReadRegion(ch int, r image.Rectangle, buf []float32) error {
	if err := checkRegion(s, ch, r, buf); err != nil {
		return err
	}
	if err := s.r.ReadRegion(ch, r, buf); err != nil {
		return newError(IOFailure, "read region", err)
	}
	return nil
}

// Close closes the file and removes it when it was downloaded.
func (s *TIFFSource) Close() error {
	err := s.r.Close()
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
	if err != nil {
		return ioError("close source", err)
	}
	return nil
}
