/*
Package homwarp rectifies large raster images under a planar homography.

Given a 3x3 projective transform and an output window, it back-projects the window
through the inverse transform to find the smallest source region that can contribute
to it, reads only that region of every channel, compensates the transform for the crop
offset and resamples each channel into the output window, optionally anti-aliased.

The package provides a command line interface. To check the supported flags type:

	$ homwarp --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"context"
		"log"

		"github.com/emasquil/homwarp"
	)

	func main() {
		homwarp.Init()

		h, err := homwarp.NewHomography([]float64{0.8, 0, 50, 0, 0.7, 20, 0, 0, 1})
		if err != nil {
			log.Fatal(err)
		}
		r := &homwarp.Rectifier{
			Width:        200,
			Height:       300,
			AntiAliasing: true,
		}
		// A float source gives a float output; 8 and 16-bit sources keep their depth.
		dst := &homwarp.FileWriter{Path: "out.tif"}
		if err := r.Process(context.Background(), "in.tif", h, dst); err != nil {
			log.Fatalf("Error rectifying image: %v", err)
		}
	}
*/
package homwarp
