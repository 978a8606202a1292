package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/emasquil/homwarp"
	"github.com/emasquil/homwarp/utils"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const HelpBanner = `
┬ ┬┌─┐┌┬┐┬ ┬┌─┐┬─┐┌─┐
├─┤│ ││││││││├─┤├┬┘├─┘
┴ ┴└─┘┴ ┴└┴┘┴ ┴┴└─┴

Rectify large raster images under a planar homography.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

var (
	// Flags
	source        = flag.String("in", pipeName, "Source image, URL or directory")
	destination   = flag.String("out", pipeName, "Destination image or directory")
	homography    = flag.String("H", "", "Homography coefficients, 9 row-major reals separated by commas or spaces")
	width         = flag.Int("width", 0, "Output width")
	height        = flag.Int("height", 0, "Output height")
	antiAliasing  = flag.Bool("aa", true, "Anti-aliasing")
	interpolation = flag.String("interp", "nearest", "Interpolation: nearest, bilinear or bicubic")
	depth         = flag.Int("depth", 0, "Output bit depth: 8, 16 or 32 (float, tif only); 0 follows the source")
	format        = flag.String("format", "tif", "Output format used for pipes")
	workers       = flag.Int("conc", runtime.NumCPU(), "Number of channels (or files) to process concurrently")
	verbose       = flag.Bool("v", false, "Verbose mode")
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *width <= 0 || *height <= 0 || *homography == "" {
		flag.Usage()
		log.Fatal(utils.DecorateText("\nPlease provide the homography and the output width and height!", utils.ErrorMessage))
	}

	h, err := parseHomography(*homography)
	if err != nil {
		log.Fatalf(utils.DecorateText("Invalid homography: %v", utils.ErrorMessage), err)
	}
	interp, err := homwarp.ParseInterpolation(*interpolation)
	if err != nil {
		log.Fatalf(utils.DecorateText("%v", utils.ErrorMessage), err)
	}

	logger := zap.NewNop()
	if *verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			log.Fatalf(utils.DecorateText("Unable to create the logger: %v", utils.ErrorMessage), err)
		}
	}
	defer logger.Sync()

	homwarp.Init()

	rect := &homwarp.Rectifier{
		Width:         *width,
		Height:        *height,
		Interpolation: interp,
		AntiAliasing:  *antiAliasing,
		Verbose:       *verbose,
		Workers:       *workers,
		Logger:        logger,
	}

	var (
		spinner  *utils.Spinner
		statuses []status
	)
	if !*verbose {
		spinner = utils.NewSpinner(spinnerText(0), time.Millisecond*100, true)
	}

	op := &homwarp.Ops{
		Src:      *source,
		Dst:      *destination,
		PipeName: pipeName,
		Format:   *format,
		Depth:    *depth,
		Workers:  *workers,
		Report: func(path string, err error) {
			statuses = append(statuses, status{path: path, err: err})
			if spinner != nil {
				spinner.SetMessage(spinnerText(len(statuses)))
			} else {
				printStatus(path, err)
			}
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now := time.Now()
	if spinner != nil {
		spinner.Start()
	}
	err = rect.Execute(ctx, op, h)
	if spinner != nil {
		spinner.Stop()
		for _, st := range statuses {
			printStatus(st.path, st.err)
		}
	}
	if err != nil {
		stop()
		log.Fatal(utils.DecorateText("\n"+fatalMessage(err, statuses), utils.ErrorMessage))
	}
	fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
}

// parseHomography reads 9 row-major coefficients separated by commas, semicolons or spaces.
func parseHomography(s string) (homwarp.Homography, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '[' || r == ']'
	})
	vals := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return homwarp.Homography{}, fmt.Errorf("invalid coefficient %q: %w", f, err)
		}
		vals = append(vals, v)
	}
	return homwarp.NewHomography(vals)
}

// status is the outcome of one rectified file.
type status struct {
	path string
	err  error
}

func spinnerText(done int) string {
	text := utils.DecorateText("⚡ HOMWARP", utils.StatusMessage) + " " +
		utils.DecorateText("is rectifying the image...", utils.DefaultMessage)
	if done > 1 {
		text += utils.DecorateText(fmt.Sprintf(" (%d files done)", done), utils.DefaultMessage)
	}
	return text
}

// fatalMessage describes a failed run. Failures already printed per file are only counted.
func fatalMessage(err error, statuses []status) string {
	failed := 0
	for _, st := range statuses {
		if st.err != nil {
			failed++
		}
	}
	if failed > 0 && failed >= len(multierr.Errors(err)) {
		return fmt.Sprintf("Rectification failed for %d file(s)", failed)
	}
	return fmt.Sprintf("Error rectifying the image: %v", err)
}

// printStatus displays the relevant information about the rectification of one file.
func printStatus(fname string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			utils.DecorateText("\nError rectifying", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("%s: %v", filepath.Base(fname), err), utils.DefaultMessage),
		)
		return
	}
	if fname != pipeName {
		fmt.Fprintf(os.Stderr, "\nThe rectified image has been saved as: %s %s\n",
			utils.DecorateText(filepath.Base(fname), utils.SuccessMessage),
			utils.DefaultColor,
		)
	}
}
