package homwarp

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func saveSample(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	require.NoError(t, imaging.Save(img, path))
}

func TestExecute_Directory(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := filepath.Join(t.TempDir(), "out")

	saveSample(t, filepath.Join(srcDir, "a.png"), 16, 16)
	saveSample(t, filepath.Join(srcDir, "b.jpg"), 16, 16)
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "notes.txt"), []byte("skip me"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "bad.png"), []byte("corrupted"), 0644))

	var reported []string
	op := &Ops{
		Src:      srcDir,
		Dst:      dstDir,
		PipeName: "-",
		Format:   "tif",
		Workers:  2,
		Report: func(path string, err error) {
			reported = append(reported, filepath.Base(path))
		},
	}
	rect := &Rectifier{Width: 8, Height: 8}

	err := rect.Execute(context.Background(), op, Identity())
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "bad.png")

	sort.Strings(reported)
	assert.Equal(t, []string{"a.png", "b.jpg", "bad.png"}, reported)

	for _, name := range []string{"a.png", "b.jpg"} {
		img, err := imaging.Open(filepath.Join(dstDir, name))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
	}
	_, err = os.Stat(filepath.Join(dstDir, "bad.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestExecute_SingleFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	dst := filepath.Join(dir, "out.tif")
	saveSample(t, src, 10, 10)

	var reported int
	op := &Ops{Src: src, Dst: dst, PipeName: "-", Report: func(string, error) { reported++ }}
	require.NoError(t, (&Rectifier{Width: 5, Height: 5}).Execute(context.Background(), op, Translation(-2, -2)))
	assert.Equal(t, 1, reported)

	img, err := imaging.Open(dst)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 5), img.Bounds())
}

func TestExecute_ShouldFailOnMissingSource(t *testing.T) {
	op := &Ops{Src: filepath.Join(t.TempDir(), "missing.png"), Dst: "out.png", PipeName: "-"}
	assert.Error(t, (&Rectifier{Width: 5, Height: 5}).Execute(context.Background(), op, Identity()))

	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	saveSample(t, src, 10, 10)
	op = &Ops{Src: src, Dst: filepath.Join(dir, "out.xyz"), PipeName: "-"}
	assert.Error(t, (&Rectifier{Width: 5, Height: 5}).Execute(context.Background(), op, Identity()))
}

func TestOps_Destination(t *testing.T) {
	op := &Ops{Src: "in", Dst: "out", Format: "tif"}
	assert.Equal(t, filepath.Join("out", "a.png"), op.destination(filepath.Join("in", "a.png")))
	assert.Equal(t, filepath.Join("out", "a.webp.tif"), op.destination(filepath.Join("in", "a.webp")))
	assert.Equal(t, filepath.Join("out", "x", "y", "c.png"), op.destination(filepath.Join("in", "x", "y", "c.png")))

	op.Format = ""
	assert.Equal(t, filepath.Join("out", "b.webp.tif"), op.destination(filepath.Join("in", "b.webp")))
	assert.Equal(t, filepath.Join("out", "b.png"), op.destination(filepath.Join("elsewhere", "b.png")))
}

func TestExecute_NestedDirectories(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "left"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "right"), 0755))

	saveSample(t, filepath.Join(srcDir, "left", "x.png"), 12, 12)
	saveSample(t, filepath.Join(srcDir, "right", "x.png"), 12, 12)
	saveSample(t, filepath.Join(srcDir, "right", "x.tif"), 12, 12)

	op := &Ops{Src: srcDir, Dst: dstDir, PipeName: "-", Workers: 3}
	require.NoError(t, (&Rectifier{Width: 6, Height: 6}).Execute(context.Background(), op, Identity()))

	for _, rel := range []string{"left/x.png", "right/x.png", "right/x.tif"} {
		img, err := imaging.Open(filepath.Join(dstDir, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, image.Rect(0, 0, 6, 6), img.Bounds())
	}
}

func TestExecute_ErrorKinds(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	saveSample(t, src, 10, 10)
	rect := &Rectifier{Width: 5, Height: 5}

	op := &Ops{Src: src, Dst: filepath.Join(dir, "out.xyz"), PipeName: "-"}
	err := rect.Execute(context.Background(), op, Identity())
	kind, ok := KindOf(err)
	require.True(t, ok, "unclassified error: %v", err)
	assert.Equal(t, InvalidArgument, kind)

	op = &Ops{Src: filepath.Join(dir, "missing.png"), Dst: filepath.Join(dir, "out.png"), PipeName: "-"}
	err = rect.Execute(context.Background(), op, Identity())
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtensions(t *testing.T) {
	assert.True(t, isValidExtension(".PNG", SupportedExtensions))
	assert.True(t, isValidExtension(".webp", SupportedExtensions))
	assert.False(t, isValidExtension(".txt", SupportedExtensions))
}
