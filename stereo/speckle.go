package stereo

import (
	"math"

	"github.com/emasquil/homwarp"
	"github.com/emasquil/homwarp/utils"
)

// SpeckleFilter removes the small connected components of a disparity map.
// Two 4-neighbours belong to the same component when their disparities differ by at
// most th; components of at most area pixels are set to NaN. NaN pixels never connect.
func SpeckleFilter(disp *homwarp.Channel, area int, th float32) *homwarp.Channel {
	w, h := disp.Width, disp.Height
	parent := make([]int, w*h)
	for i := range parent {
		parent[i] = i
	}

	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	similar := func(a, b float32) bool {
		return utils.Abs(a-b) <= th
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if x > 0 && similar(disp.Pix[i], disp.Pix[i-1]) {
				union(i, i-1)
			}
			if y > 0 && similar(disp.Pix[i], disp.Pix[i-w]) {
				union(i, i-w)
			}
		}
	}

	sizes := make([]int, w*h)
	for i := range parent {
		sizes[find(i)]++
	}

	out := homwarp.NewChannel(w, h)
	nan := float32(math.NaN())
	for i, v := range disp.Pix {
		if sizes[find(i)] > area {
			out.Pix[i] = v
		} else {
			out.Pix[i] = nan
		}
	}
	return out
}
