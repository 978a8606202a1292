package homwarp

import "github.com/pkg/errors"

// Luminance collapses a raster into a single channel. Gray rasters (with or without
// alpha) give their first channel, color rasters the Rec. 601 luma of R, G and B.
func Luminance(r *Raster) (*Channel, error) {
	dst := NewChannel(r.Width, r.Height)

	switch r.Channels() {
	case 0:
		return nil, newError(InvalidArgument, "luminance", errors.New("raster has no channel"))
	case 1, 2:
		copy(dst.Pix, r.Planes[0])
	default:
		red, green, blue := r.Planes[0], r.Planes[1], r.Planes[2]
		for i := range dst.Pix {
			dst.Pix[i] = red[i]*0.299 + green[i]*0.587 + blue[i]*0.114
		}
	}
	return dst, nil
}
