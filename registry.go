package homwarp

import (
	"image"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/emasquil/homwarp/tiffio"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// encodeFn encodes an image into one output format.
type encodeFn func(w io.Writer, img image.Image) error

// floatEncodeFn encodes the float samples of a raster as they are.
type floatEncodeFn func(w io.Writer, r *Raster) error

var (
	registryOnce  sync.Once
	registered    atomic.Bool
	encoders      map[string]encodeFn
	floatEncoders map[string]floatEncodeFn
)

// Init registers the output encoders. It must be called once before any raster is written;
// further calls are no-ops, so it is safe to call it from several entry points.
func Init() {
	registryOnce.Do(func() {
		encoders = make(map[string]encodeFn)
		for _, ext := range []string{"jpg", "jpeg", "png", "gif", "bmp"} {
			format, err := imaging.FormatFromExtension(ext)
			if err != nil {
				continue
			}
			encoders[ext] = func(w io.Writer, img image.Image) error {
				return imaging.Encode(w, img, format, imaging.JPEGQuality(95))
			}
		}
		// TIFF keeps 16-bit samples and is compressed losslessly.
		tiffEncoder := func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}
		encoders["tif"] = tiffEncoder
		encoders["tiff"] = tiffEncoder

		floatEncoders = make(map[string]floatEncodeFn)
		floatTIFF := func(w io.Writer, r *Raster) error {
			return tiffio.EncodeFloat32(w, r.Planes, r.Width, r.Height, &tiffio.Options{Compress: true})
		}
		floatEncoders["tif"] = floatTIFF
		floatEncoders["tiff"] = floatTIFF

		registered.Store(true)
	})
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(format, "."))
}

// CanEncode reports whether rasters can be written in the given format or file extension.
func CanEncode(format string) bool {
	if !registered.Load() {
		return false
	}
	_, ok := encoders[normalizeFormat(format)]
	return ok
}

func encoderFor(format string) (encodeFn, error) {
	if !registered.Load() {
		return nil, newError(InvalidArgument, "lookup encoder",
			errors.New("format registry is not initialized, call homwarp.Init first"))
	}
	enc, ok := encoders[normalizeFormat(format)]
	if !ok {
		return nil, newError(InvalidArgument, "lookup encoder", errors.Errorf("unsupported output format %q", format))
	}
	return enc, nil
}

// floatEncoderFor returns the encoder keeping float samples for format, or nil if the
// format only holds integers.
func floatEncoderFor(format string) floatEncodeFn {
	if !registered.Load() {
		return nil
	}
	return floatEncoders[normalizeFormat(format)]
}
