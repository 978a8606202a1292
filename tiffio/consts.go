package tiffio

// Byte order markers.
const (
	leHeader = "II\x2A\x00"
	beHeader = "MM\x00\x2A"
)

// Field types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndef     = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
)

var lengths = [...]uint32{0, 1, 1, 2, 4, 8, 1, 1, 2, 4, 8, 4, 8}

// Tags.
const (
	tImageWidth                = 256
	tImageLength               = 257
	tBitsPerSample             = 258
	tCompression               = 259
	tPhotometricInterpretation = 262
	tStripOffsets              = 273
	tSamplesPerPixel           = 277
	tRowsPerStrip              = 278
	tStripByteCounts           = 279
	tPlanarConfiguration       = 284
	tPredictor                 = 317
	tTileWidth                 = 322
	tTileLength                = 323
	tTileOffsets               = 324
	tTileByteCounts            = 325
	tExtraSamples              = 338
	tSampleFormat              = 339
)

// Compression schemes.
const (
	cNone       = 1
	cLZW        = 5
	cDeflate    = 8
	cDeflateOld = 32946
)

// Photometric interpretations.
const (
	pBlackIsZero = 1
	pRGB         = 2
)

// Predictors.
const (
	prNone          = 1
	prHorizontal    = 2
	prFloatingPoint = 3
)

// SampleFormat is the numeric type of the samples.
type SampleFormat uint16

// The sample formats.
const (
	Uint  SampleFormat = 1
	Int   SampleFormat = 2
	Float SampleFormat = 3
)

func (f SampleFormat) String() string {
	switch f {
	case Uint:
		return "uint"
	case Int:
		return "int"
	case Float:
		return "float"
	}
	return "unknown"
}
