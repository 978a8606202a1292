package tiffio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"
)

// stripTarget is the approximate uncompressed size of one strip.
const stripTarget = 1 << 16

// Options are the encoding parameters.
type Options struct {
	// Compress enables Deflate compression with the floating point predictor.
	Compress bool
	// TileSize, when positive, writes square tiles of that size instead of strips.
	// It must be a multiple of 16.
	TileSize int
}

type ifdEntry struct {
	tag  uint16
	typ  uint16
	vals []uint32
}

// EncodeFloat32 writes the planes, one per sample of a pixel, as a little-endian 32-bit
// float TIFF of width x height pixels. NaN samples are written as they are.
func EncodeFloat32(w io.Writer, planes [][]float32, width, height int, opt *Options) error {
	if opt == nil {
		opt = &Options{}
	}
	if width <= 0 || height <= 0 {
		return errors.Errorf("tiffio: invalid size %dx%d", width, height)
	}
	if len(planes) == 0 {
		return errors.New("tiffio: no planes to encode")
	}
	for i, p := range planes {
		if len(p) != width*height {
			return errors.Errorf("tiffio: plane %d holds %d samples, want %d", i, len(p), width*height)
		}
	}
	if opt.TileSize < 0 || opt.TileSize%16 != 0 {
		return errors.Errorf("tiffio: tile size %d is not a multiple of 16", opt.TileSize)
	}

	spp := len(planes)
	bw, bh := width, stripTarget/(width*spp*4)
	if bh < 1 {
		bh = 1
	}
	if bh > height {
		bh = height
	}
	if opt.TileSize > 0 {
		bw, bh = opt.TileSize, opt.TileSize
	}
	across, down := (width+bw-1)/bw, (height+bh-1)/bh

	var blocks [][]byte
	samples := make([]float32, bw*spp)
	for by := 0; by < down; by++ {
		rows := bh
		if opt.TileSize == 0 && height-by*bh < rows {
			rows = height - by*bh
		}
		for bx := 0; bx < across; bx++ {
			raw := make([]byte, rows*bw*spp*4)
			for y := 0; y < rows; y++ {
				for i := range samples {
					samples[i] = 0
				}
				sy := by*bh + y
				for x := 0; x < bw; x++ {
					sx := bx*bw + x
					if sx >= width || sy >= height {
						continue
					}
					for c, p := range planes {
						samples[x*spp+c] = p[sy*width+sx]
					}
				}
				row := raw[y*bw*spp*4 : (y+1)*bw*spp*4]
				if opt.Compress {
					encodeFloatRow(row, samples, spp)
				} else {
					for i, v := range samples {
						binary.LittleEndian.PutUint32(row[4*i:], math.Float32bits(v))
					}
				}
			}
			if opt.Compress {
				var err error
				if raw, err = deflate(raw); err != nil {
					return err
				}
			}
			blocks = append(blocks, raw)
		}
	}

	offsets := make([]uint32, len(blocks))
	counts := make([]uint32, len(blocks))
	pos := uint64(8)
	for i, b := range blocks {
		offsets[i], counts[i] = uint32(pos), uint32(len(b))
		pos += uint64(len(b))
	}
	ifdOff := pos + pos&1
	if ifdOff > math.MaxUint32-1<<20 {
		return errors.New("tiffio: image too large for a classic TIFF")
	}

	ifd := []ifdEntry{
		{tImageWidth, dtLong, []uint32{uint32(width)}},
		{tImageLength, dtLong, []uint32{uint32(height)}},
		{tBitsPerSample, dtShort, repeat(32, spp)},
		{tCompression, dtShort, []uint32{cNone}},
		{tPhotometricInterpretation, dtShort, []uint32{pBlackIsZero}},
		{tSamplesPerPixel, dtShort, []uint32{uint32(spp)}},
		{tPlanarConfiguration, dtShort, []uint32{1}},
		{tSampleFormat, dtShort, repeat(uint32(Float), spp)},
	}
	if opt.Compress {
		ifd[3].vals[0] = cDeflate
		ifd = append(ifd, ifdEntry{tPredictor, dtShort, []uint32{prFloatingPoint}})
	}
	if spp > 1 {
		ifd = append(ifd, ifdEntry{tExtraSamples, dtShort, repeat(0, spp-1)})
	}
	if opt.TileSize > 0 {
		ifd = append(ifd,
			ifdEntry{tTileWidth, dtLong, []uint32{uint32(bw)}},
			ifdEntry{tTileLength, dtLong, []uint32{uint32(bh)}},
			ifdEntry{tTileOffsets, dtLong, offsets},
			ifdEntry{tTileByteCounts, dtLong, counts},
		)
	} else {
		ifd = append(ifd,
			ifdEntry{tRowsPerStrip, dtLong, []uint32{uint32(bh)}},
			ifdEntry{tStripOffsets, dtLong, offsets},
			ifdEntry{tStripByteCounts, dtLong, counts},
		)
	}
	sort.Slice(ifd, func(i, j int) bool { return ifd[i].tag < ifd[j].tag })

	var buf bytes.Buffer
	buf.WriteString(leHeader)
	writeUint32(&buf, uint32(ifdOff))
	for _, b := range blocks {
		buf.Write(b)
	}
	if pos&1 == 1 {
		buf.WriteByte(0)
	}
	writeIFD(&buf, ifd, uint32(ifdOff))

	_, err := w.Write(buf.Bytes())
	return errors.Wrap(err, "tiffio: write")
}

// writeIFD appends the directory at offset off, followed by the values that do not fit
// in their entries.
func writeIFD(buf *bytes.Buffer, ifd []ifdEntry, off uint32) {
	var extra bytes.Buffer
	extraOff := off + 2 + 12*uint32(len(ifd)) + 4

	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(ifd)))
	buf.Write(n[:])
	for _, e := range ifd {
		var ent [12]byte
		binary.LittleEndian.PutUint16(ent[0:], e.tag)
		binary.LittleEndian.PutUint16(ent[2:], e.typ)
		binary.LittleEndian.PutUint32(ent[4:], uint32(len(e.vals)))

		var data []byte
		for _, v := range e.vals {
			switch e.typ {
			case dtShort:
				data = binary.LittleEndian.AppendUint16(data, uint16(v))
			case dtLong:
				data = binary.LittleEndian.AppendUint32(data, v)
			}
		}
		if len(data) <= 4 {
			copy(ent[8:], data)
		} else {
			binary.LittleEndian.PutUint32(ent[8:], extraOff+uint32(extra.Len()))
			extra.Write(data)
			if extra.Len()&1 == 1 {
				extra.WriteByte(0)
			}
		}
		buf.Write(ent[:])
	}
	writeUint32(buf, 0)
	buf.Write(extra.Bytes())
}

// encodeFloatRow applies the floating point predictor to one row of samples: the bytes are
// grouped by significance, most significant first, then differenced with a stride of spp.
func encodeFloatRow(dst []byte, samples []float32, spp int) {
	n := len(samples)
	for k, v := range samples {
		bits := math.Float32bits(v)
		dst[k] = byte(bits >> 24)
		dst[n+k] = byte(bits >> 16)
		dst[2*n+k] = byte(bits >> 8)
		dst[3*n+k] = byte(bits)
	}
	for i := len(dst) - 1; i >= spp; i-- {
		dst[i] -= dst[i-spp]
	}
}

func deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, errors.Wrap(err, "tiffio: deflate")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "tiffio: deflate")
	}
	return buf.Bytes(), nil
}

func repeat(v uint32, n int) []uint32 {
	vals := make([]uint32, n)
	for i := range vals {
		vals[i] = v
	}
	return vals
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
