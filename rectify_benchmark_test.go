package homwarp

import (
	"context"
	"testing"
)

func Benchmark_Rectify(b *testing.B) {
	src := NewMemorySource(gradientRaster(1024, 1024, 3))
	h := Homography{0.9, 0.05, 20, -0.03, 0.95, 10, 0.00005, 0.00002, 1}

	for _, interp := range []Interpolation{Nearest, Bilinear, Bicubic} {
		b.Run(interp.String(), func(b *testing.B) {
			rect := &Rectifier{Width: 512, Height: 512, Interpolation: interp, AntiAliasing: true}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := rect.Rectify(context.Background(), src, h); err != nil {
					b.Fatalf("error rectifying: %v", err)
				}
			}
		})
	}
}

func Benchmark_StackBlur(b *testing.B) {
	src := randomChannel(1024, 1024, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		StackBlur(src, 7)
	}
}
