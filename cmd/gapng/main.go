// Command gapng encodes PNG and APNG images from the command line.
//
// Usage:
//
//	gapng enc [options] <input>   PNG/JPEG/GIF → PNG (GIF animations → APNG)
//	gapng info <input.png>        Display chunk-level PNG/APNG structure
package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/deepteams/apng"
	"github.com/deepteams/apng/internal/chunk"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "enc":
		err = runEnc(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "gapng: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "gapng: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  gapng enc [options] <input>   Encode PNG/JPEG/GIF to PNG (GIF animations become APNG)
  gapng info <input.png>        Display chunk-level PNG/APNG structure

Use "-" as input to read from stdin, "-o -" to write to stdout.

Run "gapng enc -h" for encoding options.
`)
}

// openInput returns an io.ReadCloser for the given path.
// If path is "-", stdin is returned (caller should not close).
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// --- enc ---

func runEnc(args []string) error {
	fs := flag.NewFlagSet("enc", flag.ContinueOnError)
	level := fs.String("level", "default", "compression level: default/none/fast/best")
	filterName := fs.String("filter", "adaptive", "scanline filter: adaptive/none/sub/up/average/paeth")
	output := fs.String("o", "", `output path (default: <input>.png, "-" for stdout)`)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("enc: missing input file\nUsage: gapng enc [options] <input>")
	}
	inputPath := fs.Arg(0)

	opts := &apng.EncoderOptions{}
	switch strings.ToLower(*level) {
	case "default":
		opts.Level = apng.DefaultCompression
	case "none":
		opts.Level = apng.NoCompression
	case "fast":
		opts.Level = apng.BestSpeed
	case "best":
		opts.Level = apng.BestCompression
	default:
		return fmt.Errorf("enc: unknown level %q (use default/none/fast/best)", *level)
	}
	switch strings.ToLower(*filterName) {
	case "adaptive":
		opts.Filter = apng.FilterAdaptive
	case "none":
		opts.Filter = apng.FilterNone
	case "sub":
		opts.Filter = apng.FilterSub
	case "up":
		opts.Filter = apng.FilterUp
	case "average":
		opts.Filter = apng.FilterAverage
	case "paeth":
		opts.Filter = apng.FilterPaeth
	default:
		return fmt.Errorf("enc: unknown filter %q", *filterName)
	}

	ext := strings.ToLower(filepath.Ext(inputPath))
	if ext == ".gif" && inputPath != "-" {
		return encodeGIF(inputPath, *output, opts)
	}
	return encodeStatic(inputPath, *output, opts)
}

func encodeStatic(inputPath, outputPath string, opts *apng.EncoderOptions) error {
	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("enc: decoding input: %w", err)
	}

	if outputPath == "-" {
		return apng.Encode(os.Stdout, img, opts)
	}

	if outputPath == "" {
		if inputPath == "-" {
			outputPath = "output.png"
		} else {
			base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
			outputPath = base + ".png"
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}

	if err := apng.Encode(out, img, opts); err != nil {
		out.Close()
		os.Remove(outputPath)
		return fmt.Errorf("enc: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outputPath)
		return err
	}

	fi, _ := os.Stat(outputPath)
	fmt.Fprintf(os.Stderr, "Encoded %s → %s (%d bytes)\n", inputPath, outputPath, fi.Size())
	return nil
}

func encodeGIF(inputPath, outputPath string, opts *apng.EncoderOptions) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return fmt.Errorf("enc: decoding GIF: %w", err)
	}

	if len(g.Image) == 0 {
		return fmt.Errorf("enc: GIF has no frames")
	}

	if outputPath == "-" {
		return encodeGIFFrames(os.Stdout, g, opts)
	}

	if outputPath == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		outputPath = base + ".png"
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}

	if err := encodeGIFFrames(out, g, opts); err != nil {
		out.Close()
		os.Remove(outputPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(outputPath)
		return err
	}

	fi, _ := os.Stat(outputPath)
	fmt.Fprintf(os.Stderr, "Encoded %s → %s (%d frames, %d bytes)\n", inputPath, outputPath, len(g.Image), fi.Size())
	return nil
}

// encodeGIFFrames flattens each GIF frame onto a persistent canvas and emits
// the snapshots as full-canvas APNG frames, so local palettes and GIF
// disposal semantics never leak into the output.
func encodeGIFFrames(w io.Writer, g *gif.GIF, opts *apng.EncoderOptions) error {
	canvasW := g.Config.Width
	canvasH := g.Config.Height
	if canvasW == 0 || canvasH == 0 {
		canvasW = g.Image[0].Bounds().Dx()
		canvasH = g.Image[0].Bounds().Dy()
	}

	enc := apng.NewEncoder(w, canvasW, canvasH)
	enc.SetCompressionLevel(opts.Level)
	enc.SetFilter(opts.Filter)
	if err := enc.SetAnimated(uint32(len(g.Image)), gifPlays(g.LoopCount)); err != nil {
		return fmt.Errorf("enc: %w", err)
	}

	wr, err := enc.WriteHeader()
	if err != nil {
		return fmt.Errorf("enc: %w", err)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, canvasW, canvasH))

	for i, frame := range g.Image {
		b := frame.Bounds()

		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		// Save region for DisposalPrevious before compositing.
		var saved []uint8
		if disposal == gif.DisposalPrevious {
			saved = saveCanvasRect(canvas, b)
		}

		// Composite frame onto persistent canvas.
		draw.Draw(canvas, b, frame, b.Min, draw.Over)

		// GIF delay is in 1/100th of a second, matching a denominator of
		// 100. Delays beyond the 16-bit field clamp to its maximum.
		delay := uint16(10) // default 100ms
		if i < len(g.Delay) && g.Delay[i] > 0 {
			d := g.Delay[i]
			if d > 0xFFFF {
				d = 0xFFFF
			}
			delay = uint16(d)
		}
		wr.SetFrameDelay(delay, 100)

		if err := wr.WriteImageData(canvas.Pix); err != nil {
			return fmt.Errorf("enc: frame %d: %w", i, err)
		}

		// Apply disposal method to prepare canvas for next frame.
		switch disposal {
		case gif.DisposalBackground:
			clearCanvasRect(canvas, b)
		case gif.DisposalPrevious:
			restoreCanvasRect(canvas, b, saved)
		}
	}

	return wr.Finish()
}

// gifPlays maps a GIF loop count onto the animation play count: 0 stays
// infinite, negative means play once.
func gifPlays(loopCount int) uint32 {
	switch {
	case loopCount == 0:
		return 0
	case loopCount < 0:
		return 1
	}
	return uint32(loopCount)
}

// saveCanvasRect copies pixel data from the given rect of the canvas.
func saveCanvasRect(canvas *image.NRGBA, r image.Rectangle) []uint8 {
	r = r.Intersect(canvas.Bounds())
	if r.Empty() {
		return nil
	}
	w := r.Dx() * 4
	saved := make([]uint8, r.Dy()*w)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		srcOff := canvas.PixOffset(r.Min.X, y)
		dstOff := (y - r.Min.Y) * w
		copy(saved[dstOff:dstOff+w], canvas.Pix[srcOff:srcOff+w])
	}
	return saved
}

// restoreCanvasRect pastes previously saved pixel data back into the canvas rect.
func restoreCanvasRect(canvas *image.NRGBA, r image.Rectangle, saved []uint8) {
	r = r.Intersect(canvas.Bounds())
	if r.Empty() || saved == nil {
		return
	}
	w := r.Dx() * 4
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dstOff := canvas.PixOffset(r.Min.X, y)
		srcOff := (y - r.Min.Y) * w
		copy(canvas.Pix[dstOff:dstOff+w], saved[srcOff:srcOff+w])
	}
}

// clearCanvasRect fills the given rect of the canvas with transparent black (0,0,0,0).
func clearCanvasRect(canvas *image.NRGBA, r image.Rectangle) {
	r = r.Intersect(canvas.Bounds())
	if r.Empty() {
		return
	}
	w := r.Dx() * 4
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := canvas.PixOffset(r.Min.X, y)
		for i := off; i < off+w; i++ {
			canvas.Pix[i] = 0
		}
	}
}

// --- info ---

var colorNames = map[byte]string{
	0: "grayscale",
	2: "rgb",
	3: "indexed",
	4: "grayscale+alpha",
	6: "rgba",
}

func runInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("info: missing input file\nUsage: gapng info <input.png>")
	}
	inputPath := args[0]

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("info: reading input: %w", err)
	}

	chunks, err := chunk.Parse(data)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}

	name := inputPath
	if inputPath == "-" {
		name = "<stdin>"
	}
	fmt.Printf("File:   %s (%d bytes, %d chunks)\n", name, len(data), len(chunks))

	for _, c := range chunks {
		fmt.Printf("  %s  %7d bytes", c.Type, len(c.Data))
		switch c.Type {
		case chunk.TypeIHDR:
			h, err := chunk.ParseHeader(c.Data)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}
			color := colorNames[h.ColorType]
			if color == "" {
				color = fmt.Sprintf("color type %d", h.ColorType)
			}
			fmt.Printf("  %d x %d, %d-bit %s", h.Width, h.Height, h.BitDepth, color)
			if h.Interlace != 0 {
				fmt.Printf(", interlaced")
			}
		case chunk.TypeACTL:
			a, err := chunk.ParseAnimationControl(c.Data)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}
			loop := "infinite"
			if a.NumPlays > 0 {
				loop = fmt.Sprintf("%d plays", a.NumPlays)
			}
			fmt.Printf("  %d frames, %s", a.NumFrames, loop)
		case chunk.TypeFCTL:
			fc, err := chunk.ParseFrameControl(c.Data)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}
			fmt.Printf("  seq %d, %d x %d at (%d,%d), delay %d/%d, dispose %d, blend %d",
				fc.Sequence, fc.Width, fc.Height, fc.XOffset, fc.YOffset,
				fc.DelayNum, fc.DelayDen, fc.DisposeOp, fc.BlendOp)
		case chunk.TypeFDAT:
			if len(c.Data) >= chunk.SeqNumSize {
				fmt.Printf("  seq %d", binary.BigEndian.Uint32(c.Data))
			}
		case chunk.TypePLTE:
			fmt.Printf("  %d entries", len(c.Data)/3)
		case chunk.TypeTEXT, chunk.TypeZTXT, chunk.TypeITXT:
			if i := bytes.IndexByte(c.Data, 0); i > 0 {
				fmt.Printf("  keyword %q", string(c.Data[:i]))
			}
		}
		fmt.Println()
	}
	return nil
}
