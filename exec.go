package homwarp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/emasquil/homwarp/utils"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/term"
)

// maxWorkers sets the maximum number of concurrently processed files.
const maxWorkers = 20

// SupportedExtensions lists the source file extensions picked up in directory mode.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// Ops describes where the rectifier reads from and writes to.
type Ops struct {
	Src, Dst, PipeName string
	// Format is the output format used when writing to a pipe or when the source
	// extension cannot be encoded (directory mode).
	Format string
	// Depth is the output bit depth: 8, 16 or DepthFloat. Zero follows the source.
	Depth int
	// Workers bounds the number of files processed concurrently in directory mode.
	Workers int
	// Report, when set, is called once per processed file.
	Report func(path string, err error)
}

// result holds the outcome of one file of a directory run.
type result struct {
	path string
	err  error
}

// Execute rectifies the source described by op with h. The source may be a file,
// a URL, a pipe or a directory; in the latter case every supported image found in it
// is rectified into the destination directory and the failures are combined.
func (r *Rectifier) Execute(ctx context.Context, op *Ops, h Homography) error {
	Init()

	if op.Src == op.PipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return newError(InvalidArgument, "execute", errors.New("`-` should be used with a pipe for stdin"))
		}
		src, err := DecodeSource(os.Stdin)
		if err != nil {
			return err
		}
		dst, err := op.writer(op.Dst)
		if err != nil {
			return err
		}
		err = r.Run(ctx, src, h, dst)
		op.report(op.Dst, err)
		return err
	}

	if !utils.IsValidUrl(op.Src) {
		fs, err := os.Stat(op.Src)
		if err != nil {
			return newError(IOFailure, "execute", errors.Wrap(err, "failed to load the source image"))
		}
		if fs.IsDir() {
			return r.executeDir(ctx, op, h)
		}
	}

	dst, err := op.writer(op.Dst)
	if err != nil {
		return err
	}
	err = r.Process(ctx, op.Src, h, dst)
	op.report(op.Dst, err)
	return err
}

func (op *Ops) report(path string, err error) {
	if op.Report != nil {
		op.Report(path, err)
	}
}

// writer returns the raster writer for the destination path.
func (op *Ops) writer(dst string) (Writer, error) {
	if dst == op.PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, newError(InvalidArgument, "open output", errors.New("`-` should be used with a pipe for stdout"))
		}
		return &StreamWriter{W: os.Stdout, Format: op.Format, Depth: op.Depth}, nil
	}
	if !CanEncode(filepath.Ext(dst)) {
		return nil, newError(InvalidArgument, "open output", errors.Errorf("%v file type not supported", filepath.Ext(dst)))
	}
	return &FileWriter{Path: dst, Depth: op.Depth}, nil
}

// executeDir rectifies every supported image of the op.Src directory tree concurrently.
func (r *Rectifier) executeDir(ctx context.Context, op *Ops, h Homography) error {
	if err := os.MkdirAll(op.Dst, 0755); err != nil {
		return newError(IOFailure, "execute", errors.Wrap(err, "unable to create the destination directory"))
	}

	workers := op.Workers
	if workers <= 0 || workers > maxWorkers {
		workers = maxWorkers
	}

	ch := make(chan result)
	done := make(chan interface{})
	defer close(done)

	paths, errc := walkDir(done, op.Src, SupportedExtensions)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			r.consumer(ctx, op, h, ch, done, paths)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	var err error
	for res := range ch {
		op.report(res.path, res.err)
		err = multierr.Append(err, res.err)
	}
	return multierr.Append(err, <-errc)
}

// consumer reads the path names from the paths channel and rectifies each file.
func (r *Rectifier) consumer(
	ctx context.Context,
	op *Ops,
	h Homography,
	res chan<- result,
	done <-chan interface{},
	paths <-chan string,
) {
	for src := range paths {
		dst := op.destination(src)
		err := r.processFile(ctx, op, h, src, dst)
		err = errors.Wrap(err, src)

		select {
		case <-done:
			return
		case res <- result{path: dst, err: err}:
		}
	}
}

func (r *Rectifier) processFile(ctx context.Context, op *Ops, h Homography, src, dst string) error {
	w, err := op.writer(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return newError(IOFailure, "open output", err)
	}
	return r.Process(ctx, src, h, w)
}

// destination mirrors the path of src below op.Src into op.Dst. When the source format
// cannot be encoded, op.Format is appended to the file name, so a.webp becomes a.webp.tif
// and never collides with a sibling a.tif.
func (op *Ops) destination(src string) string {
	rel, err := filepath.Rel(op.Src, src)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(src)
	}
	if !CanEncode(filepath.Ext(rel)) {
		format := op.Format
		if format == "" {
			format = "tif"
		}
		rel += "." + strings.TrimPrefix(format, ".")
	}
	return filepath.Join(op.Dst, rel)
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each regular file to a new channel.
// It finishes in case the done channel is getting closed.
func walkDir(
	done <-chan interface{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() || !isValidExtension(filepath.Ext(f.Name()), srcExts) {
				return nil
			}

			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}

// isValidExtension checks for the supported extensions.
func isValidExtension(ext string, extensions []string) bool {
	ext = strings.ToLower(ext)
	for _, ex := range extensions {
		if ex == ext {
			return true
		}
	}
	return false
}
