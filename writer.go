package homwarp

import (
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Writer persists a finished raster.
type Writer interface {
	Write(r *Raster) error
}

// FileWriter encodes rasters into a file whose format follows the path extension.
type FileWriter struct {
	Path string
	// Depth is the depth of the encoded samples: 8, 16 or DepthFloat (TIFF only).
	// Zero follows the depth of the raster.
	Depth int
}

var _ Writer = (*FileWriter)(nil)

// Write encodes r into a temporary file next to Path and renames it once complete,
// so a failed encode never leaves a partial output behind.
func (fw *FileWriter) Write(r *Raster) (err error) {
	encode, err := rasterEncoder(filepath.Ext(fw.Path), fw.Depth, r)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(fw.Path), ".homwarp-*"+filepath.Ext(fw.Path))
	if err != nil {
		return ioError("write output", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if err = encode(tmp); err != nil {
		err = multierr.Append(err, tmp.Close())
		return ioError("encode output", err)
	}
	if err = tmp.Close(); err != nil {
		return ioError("write output", err)
	}
	if err = os.Rename(tmp.Name(), fw.Path); err != nil {
		return ioError("write output", err)
	}
	return nil
}

// StreamWriter encodes rasters into an arbitrary writer, e.g. a pipe.
type StreamWriter struct {
	W      io.Writer
	Format string
	Depth  int
}

var _ Writer = (*StreamWriter)(nil)

func (sw *StreamWriter) Write(r *Raster) error {
	encode, err := rasterEncoder(sw.Format, sw.Depth, r)
	if err != nil {
		return err
	}
	if err := encode(sw.W); err != nil {
		return ioError("encode output", err)
	}
	return nil
}

// rasterEncoder prepares the encoding of r in format at the requested depth.
func rasterEncoder(format string, depth int, r *Raster) (func(w io.Writer) error, error) {
	enc, err := encoderFor(format)
	if err != nil {
		return nil, err
	}
	floatEnc := floatEncoderFor(format)
	depth, err = resolveDepth(depth, r.Depth, floatEnc != nil)
	if err != nil {
		return nil, err
	}

	if depth == DepthFloat {
		return func(w io.Writer) error { return floatEnc(w, r) }, nil
	}
	img, err := ToImage(r, depth)
	if err != nil {
		return nil, err
	}
	return func(w io.Writer) error { return enc(w, img) }, nil
}

// resolveDepth picks the output depth. Zero follows the source depth, falling back to 8
// when it is unknown and to 16 when float samples cannot be stored.
func resolveDepth(requested, source int, floatOK bool) (int, error) {
	depth := requested
	if depth == 0 {
		depth = source
		if depth == 0 {
			depth = 8
		}
		if depth == DepthFloat && !floatOK {
			depth = 16
		}
	}
	switch depth {
	case 8, 16:
	case DepthFloat:
		if !floatOK {
			return 0, newError(InvalidArgument, "resolve depth", errors.New("float samples need a TIFF output"))
		}
	default:
		return 0, newError(InvalidArgument, "resolve depth", errors.Errorf("unsupported bit depth %d", depth))
	}
	return depth, nil
}

// ToImage quantizes a raster into an image of the given bit depth (8 or 16).
// Zero follows the depth of the raster. When the raster comes from 8 or 16-bit data of
// the other depth, the samples are rescaled to the new range.
// One channel gives a gray image, two a gray image with alpha, three an opaque
// color image and four a color image with alpha. NaN samples become 0 and the
// others are rounded and clamped to the depth range.
func ToImage(r *Raster, depth int) (image.Image, error) {
	depth, err := resolveDepth(depth, r.Depth, false)
	if err != nil {
		return nil, err
	}
	n := r.Channels()
	if n < 1 || n > 4 {
		return nil, newError(InvalidArgument, "convert raster", errors.Errorf("cannot encode %d channels", n))
	}

	maxVal := float32(math.MaxUint8)
	if depth == 16 {
		maxVal = math.MaxUint16
	}
	scale := float32(1)
	switch {
	case r.Depth == 8 && depth == 16:
		scale = math.MaxUint16 / math.MaxUint8
	case r.Depth == 16 && depth == 8:
		scale = math.MaxUint8 / float32(math.MaxUint16)
	}
	q := func(v float32) uint16 {
		v *= scale
		if v != v || v <= 0 {
			return 0
		}
		if v >= maxVal {
			return uint16(maxVal)
		}
		return uint16(v + 0.5)
	}

	rect := image.Rect(0, 0, r.Width, r.Height)
	if n == 1 {
		plane := r.Planes[0]
		if depth == 8 {
			img := image.NewGray(rect)
			for i, v := range plane {
				img.Pix[i] = uint8(q(v))
			}
			return img, nil
		}
		img := image.NewGray16(rect)
		for i, v := range plane {
			s := q(v)
			img.Pix[2*i] = uint8(s >> 8)
			img.Pix[2*i+1] = uint8(s)
		}
		return img, nil
	}

	// Map the raster channels onto R, G, B, A.
	var src [4][]float32
	switch n {
	case 2:
		src = [4][]float32{r.Planes[0], r.Planes[0], r.Planes[0], r.Planes[1]}
	case 3:
		src = [4][]float32{r.Planes[0], r.Planes[1], r.Planes[2], nil}
	case 4:
		src = [4][]float32{r.Planes[0], r.Planes[1], r.Planes[2], r.Planes[3]}
	}
	opaque := uint16(maxVal)
	sampleAt := func(c, i int) uint16 {
		if src[c] == nil {
			return opaque
		}
		return q(src[c][i])
	}

	if depth == 8 {
		img := image.NewNRGBA(rect)
		for i := 0; i < r.Width*r.Height; i++ {
			img.Pix[4*i+0] = uint8(sampleAt(0, i))
			img.Pix[4*i+1] = uint8(sampleAt(1, i))
			img.Pix[4*i+2] = uint8(sampleAt(2, i))
			img.Pix[4*i+3] = uint8(sampleAt(3, i))
		}
		return img, nil
	}
	img := image.NewNRGBA64(rect)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			i := y*r.Width + x
			img.SetNRGBA64(x, y, color.NRGBA64{
				R: sampleAt(0, i),
				G: sampleAt(1, i),
				B: sampleAt(2, i),
				A: sampleAt(3, i),
			})
		}
	}
	return img, nil
}
