// Package tiffio reads and writes TIFF rasters sample by sample.
//
// Unlike an image decoder it keeps float and signed samples as they are, and it reads only
// the strips or tiles that cover the requested region, so large rasters never have to be
// decoded in full.
package tiffio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff/lzw"
)

// ErrNotTIFF is returned when the data does not start with a TIFF header.
var ErrNotTIFF = errors.New("tiffio: not a TIFF file")

// A FormatError reports that the input is not a valid TIFF image.
type FormatError string

func (e FormatError) Error() string {
	return "tiffio: invalid format: " + string(e)
}

// An UnsupportedError reports that the input uses a valid but unimplemented feature.
type UnsupportedError string

func (e UnsupportedError) Error() string {
	return "tiffio: unsupported feature: " + string(e)
}

// Reader gives windowed access to the first image of a TIFF file.
// ReadRegion may be called concurrently as long as the underlying ReaderAt allows it.
type Reader struct {
	ra           io.ReaderAt
	bo           binary.ByteOrder
	littleEndian bool
	closer       io.Closer

	width, height int
	spp, bits     int
	format        SampleFormat
	planar        bool
	compression   int
	predictor     int

	tiled          bool
	blockW, blockH int
	across, down   int
	offsets        []uint64
	counts         []uint64
}

// Open opens the TIFF file stored at path. The file stays open until Close.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader parses the header and the first image file directory of ra.
func NewReader(ra io.ReaderAt) (*Reader, error) {
	hdr := make([]byte, 8)
	if n, err := ra.ReadAt(hdr, 0); n < len(hdr) {
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrNotTIFF
		}
		return nil, errors.Wrap(err, "tiffio: read header")
	}

	r := &Reader{ra: ra}
	switch string(hdr[:2]) {
	case leHeader[:2]:
		r.bo, r.littleEndian = binary.LittleEndian, true
	case beHeader[:2]:
		r.bo = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}
	switch r.bo.Uint16(hdr[2:4]) {
	case 42:
	case 43:
		return nil, UnsupportedError("BigTIFF")
	default:
		return nil, ErrNotTIFF
	}

	if err := r.parseIFD(int64(r.bo.Uint32(hdr[4:8]))); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) parseIFD(off int64) error {
	var nb [2]byte
	if _, err := r.ra.ReadAt(nb[:], off); err != nil {
		return FormatError("bad IFD offset")
	}
	n := int(r.bo.Uint16(nb[:]))
	buf := make([]byte, 12*n)
	if k, _ := r.ra.ReadAt(buf, off+2); k < len(buf) {
		return FormatError("truncated IFD")
	}

	tags := make(map[uint16][]uint64, n)
	for i := 0; i < n; i++ {
		e := buf[12*i : 12*(i+1)]
		vals, err := r.entryValues(e)
		if err != nil {
			return err
		}
		if vals != nil {
			tags[r.bo.Uint16(e[0:2])] = vals
		}
	}
	return r.configure(tags)
}

// entryValues decodes the integer values of an IFD entry. Other field types are skipped.
func (r *Reader) entryValues(e []byte) ([]uint64, error) {
	typ := r.bo.Uint16(e[2:4])
	count := r.bo.Uint32(e[4:8])
	switch typ {
	case dtByte, dtShort, dtLong:
	default:
		return nil, nil
	}
	if count > 1<<28 {
		return nil, FormatError("tag value count")
	}

	raw := e[8:12]
	if size := lengths[typ] * count; size > 4 {
		raw = make([]byte, size)
		if k, _ := r.ra.ReadAt(raw, int64(r.bo.Uint32(e[8:12]))); k < len(raw) {
			return nil, FormatError("bad tag value offset")
		}
	}

	vals := make([]uint64, count)
	for i := range vals {
		switch typ {
		case dtByte:
			vals[i] = uint64(raw[i])
		case dtShort:
			vals[i] = uint64(r.bo.Uint16(raw[2*i:]))
		case dtLong:
			vals[i] = uint64(r.bo.Uint32(raw[4*i:]))
		}
	}
	return vals, nil
}

func firstVal(tags map[uint16][]uint64, tag uint16, def uint64) uint64 {
	if v, ok := tags[tag]; ok && len(v) > 0 {
		return v[0]
	}
	return def
}

func allEqual(vals []uint64) bool {
	for _, v := range vals {
		if v != vals[0] {
			return false
		}
	}
	return true
}

func (r *Reader) configure(tags map[uint16][]uint64) error {
	r.width = int(firstVal(tags, tImageWidth, 0))
	r.height = int(firstVal(tags, tImageLength, 0))
	if r.width <= 0 || r.height <= 0 {
		return FormatError("image size")
	}
	r.spp = int(firstVal(tags, tSamplesPerPixel, 1))
	if r.spp < 1 {
		return FormatError("samples per pixel")
	}

	bits := tags[tBitsPerSample]
	if len(bits) == 0 || !allEqual(bits) {
		return UnsupportedError("bits per sample")
	}
	r.bits = int(bits[0])
	if formats, ok := tags[tSampleFormat]; ok && !allEqual(formats) {
		return UnsupportedError("mixed sample formats")
	}
	r.format = SampleFormat(firstVal(tags, tSampleFormat, uint64(Uint)))
	switch {
	case r.format == Float && (r.bits == 32 || r.bits == 64):
	case (r.format == Uint || r.format == Int) && (r.bits == 8 || r.bits == 16 || r.bits == 32):
	default:
		return UnsupportedError(fmt.Sprintf("%d-bit %v samples", r.bits, r.format))
	}

	switch firstVal(tags, tPhotometricInterpretation, pBlackIsZero) {
	case pBlackIsZero, pRGB:
	default:
		return UnsupportedError("photometric interpretation")
	}

	r.compression = int(firstVal(tags, tCompression, cNone))
	switch r.compression {
	case cNone, cLZW, cDeflate, cDeflateOld:
	default:
		return UnsupportedError(fmt.Sprintf("compression value %d", r.compression))
	}
	r.predictor = int(firstVal(tags, tPredictor, prNone))
	switch r.predictor {
	case prNone, prHorizontal:
	case prFloatingPoint:
		if r.format != Float {
			return FormatError("floating point predictor on integer samples")
		}
	default:
		return UnsupportedError(fmt.Sprintf("predictor value %d", r.predictor))
	}
	r.planar = firstVal(tags, tPlanarConfiguration, 1) == 2

	if _, ok := tags[tTileWidth]; ok {
		r.tiled = true
		r.blockW = int(firstVal(tags, tTileWidth, 0))
		r.blockH = int(firstVal(tags, tTileLength, 0))
		r.offsets, r.counts = tags[tTileOffsets], tags[tTileByteCounts]
	} else {
		rps := firstVal(tags, tRowsPerStrip, uint64(r.height))
		if rps == 0 || rps > uint64(r.height) {
			rps = uint64(r.height)
		}
		r.blockW, r.blockH = r.width, int(rps)
		r.offsets, r.counts = tags[tStripOffsets], tags[tStripByteCounts]
	}
	if r.blockW <= 0 || r.blockH <= 0 {
		return FormatError("block size")
	}

	r.across = (r.width + r.blockW - 1) / r.blockW
	r.down = (r.height + r.blockH - 1) / r.blockH
	n := r.across * r.down
	if r.planar {
		n *= r.spp
	}
	if len(r.offsets) < n || len(r.counts) < n {
		return FormatError("missing block offsets")
	}
	return nil
}

// Width returns the image width in pixels.
func (r *Reader) Width() int { return r.width }

// Height returns the image height in pixels.
func (r *Reader) Height() int { return r.height }

// SamplesPerPixel returns the number of channels.
func (r *Reader) SamplesPerPixel() int { return r.spp }

// BitsPerSample returns the size of one sample.
func (r *Reader) BitsPerSample() int { return r.bits }

// Format returns the numeric type of the samples.
func (r *Reader) Format() SampleFormat { return r.format }

// ReadRegion reads channel ch of the rect region into buf, row by row, converting the samples
// to float32. Only the strips or tiles intersecting rect are read.
func (r *Reader) ReadRegion(ch int, rect image.Rectangle, buf []float32) error {
	if ch < 0 || ch >= r.spp {
		return errors.Errorf("tiffio: channel %d out of range [0, %d)", ch, r.spp)
	}
	if rect.Empty() || !rect.In(image.Rect(0, 0, r.width, r.height)) {
		return errors.Errorf("tiffio: region %v outside the %dx%d image", rect, r.width, r.height)
	}
	if len(buf) != rect.Dx()*rect.Dy() {
		return errors.Errorf("tiffio: buffer holds %d samples, region needs %d", len(buf), rect.Dx()*rect.Dy())
	}

	w := rect.Dx()
	for by := rect.Min.Y / r.blockH; by <= (rect.Max.Y-1)/r.blockH; by++ {
		for bx := rect.Min.X / r.blockW; bx <= (rect.Max.X-1)/r.blockW; bx++ {
			blk, err := r.readBlock(ch, bx, by)
			if err != nil {
				return err
			}
			x0, y0 := bx*r.blockW, by*r.blockH
			area := image.Rect(x0, y0, x0+r.blockW, y0+r.blockH).Intersect(rect)
			for y := area.Min.Y; y < area.Max.Y; y++ {
				row := buf[(y-rect.Min.Y)*w : (y-rect.Min.Y+1)*w]
				for x := area.Min.X; x < area.Max.X; x++ {
					row[x-rect.Min.X] = blk.at(x-x0, y-y0)
				}
			}
		}
	}
	return nil
}

// block holds the decoded samples of one strip or tile, in file byte order.
type block struct {
	r     *Reader
	data  []byte
	width int
	spp   int
	ch    int
}

func (b *block) at(x, y int) float32 {
	return b.r.sample(b.data, (y*b.width+x)*b.spp+b.ch)
}

func (r *Reader) readBlock(ch, bx, by int) (*block, error) {
	idx := by*r.across + bx
	spp, off := r.spp, ch
	if r.planar {
		idx += ch * r.across * r.down
		spp, off = 1, 0
	}

	rows := r.blockH
	if !r.tiled && r.height-by*r.blockH < rows {
		rows = r.height - by*r.blockH
	}
	bps := r.bits / 8
	rowBytes := r.blockW * spp * bps
	want := rows * rowBytes

	if r.counts[idx] > math.MaxInt32 {
		return nil, FormatError("block byte count")
	}
	raw := make([]byte, r.counts[idx])
	if k, err := r.ra.ReadAt(raw, int64(r.offsets[idx])); k < len(raw) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(err, "tiffio: read block %d", idx)
	}

	data, err := r.decompress(raw, want)
	if err != nil {
		return nil, errors.Wrapf(err, "tiffio: block %d", idx)
	}
	switch r.predictor {
	case prHorizontal:
		r.undoHorizontal(data, rowBytes, spp, bps)
	case prFloatingPoint:
		data = r.undoFloatingPoint(data, rowBytes, spp, bps)
	}
	return &block{r: r, data: data, width: r.blockW, spp: spp, ch: off}, nil
}

func (r *Reader) decompress(raw []byte, want int) ([]byte, error) {
	if r.compression == cNone {
		if len(raw) < want {
			return nil, FormatError("short block")
		}
		return raw[:want], nil
	}

	var rc io.ReadCloser
	switch r.compression {
	case cLZW:
		rc = lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
	case cDeflate, cDeflateOld:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		rc = zr
	}
	defer rc.Close()

	out := make([]byte, want)
	if _, err := io.ReadFull(rc, out); err != nil {
		return nil, err
	}
	return out, nil
}

// undoHorizontal reverses the horizontal differencing of integer samples, row by row.
func (r *Reader) undoHorizontal(data []byte, rowBytes, spp, bps int) {
	stride := spp * bps
	for off := 0; off+rowBytes <= len(data); off += rowBytes {
		row := data[off : off+rowBytes]
		for i := stride; i+bps <= len(row); i += bps {
			switch bps {
			case 1:
				row[i] += row[i-stride]
			case 2:
				r.bo.PutUint16(row[i:], r.bo.Uint16(row[i:])+r.bo.Uint16(row[i-stride:]))
			case 4:
				r.bo.PutUint32(row[i:], r.bo.Uint32(row[i:])+r.bo.Uint32(row[i-stride:]))
			case 8:
				r.bo.PutUint64(row[i:], r.bo.Uint64(row[i:])+r.bo.Uint64(row[i-stride:]))
			}
		}
	}
}

// undoFloatingPoint reverses the floating point predictor: the bytes of a row are
// differenced with a stride of spp and grouped by significance, most significant first.
// The result is in file byte order.
func (r *Reader) undoFloatingPoint(data []byte, rowBytes, spp, bps int) []byte {
	out := make([]byte, len(data))
	n := rowBytes / bps
	for off := 0; off+rowBytes <= len(data); off += rowBytes {
		row := data[off : off+rowBytes]
		for i := spp; i < len(row); i++ {
			row[i] += row[i-spp]
		}
		dst := out[off : off+rowBytes]
		for k := 0; k < n; k++ {
			for j := 0; j < bps; j++ {
				pos := j
				if r.littleEndian {
					pos = bps - 1 - j
				}
				dst[k*bps+pos] = row[j*n+k]
			}
		}
	}
	return out
}

// sample converts the i-th sample of b to float32.
func (r *Reader) sample(b []byte, i int) float32 {
	switch r.bits {
	case 8:
		if r.format == Int {
			return float32(int8(b[i]))
		}
		return float32(b[i])
	case 16:
		v := r.bo.Uint16(b[2*i:])
		if r.format == Int {
			return float32(int16(v))
		}
		return float32(v)
	case 32:
		v := r.bo.Uint32(b[4*i:])
		switch r.format {
		case Float:
			return math.Float32frombits(v)
		case Int:
			return float32(int32(v))
		}
		return float32(v)
	case 64:
		return float32(math.Float64frombits(r.bo.Uint64(b[8*i:])))
	}
	return float32(math.NaN())
}

// Close closes the file opened by Open. It is a no-op for readers built with NewReader.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
