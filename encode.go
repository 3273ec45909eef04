package apng

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/deepteams/apng/internal/bitio"
	"github.com/deepteams/apng/internal/chunk"
	"github.com/deepteams/apng/internal/pool"
)

// Encoder configures one encoding session. All configuration happens before
// WriteHeader; after the header is out the returned Writer accepts pixel data
// and the Encoder is spent.
type Encoder struct {
	w      io.Writer
	width  int
	height int

	color        ColorType
	depth        BitDepth
	level        CompressionLevel
	filter       Filter
	interlaced   bool
	palette      []byte // RGB triples
	transparency []byte

	animated   bool
	numFrames  uint32
	numPlays   uint32
	sepDefault bool
	delayNum   uint16
	delayDen   uint16
	dispose    DisposeOp
	blend      BlendOp

	texts []textEntry

	wroteHeader bool
}

// NewEncoder returns an encoder writing a width x height image to w.
// The default configuration is 8-bit RGBA, adaptive filtering, and balanced
// compression.
func NewEncoder(w io.Writer, width, height int) *Encoder {
	return &Encoder{
		w:      w,
		width:  width,
		height: height,
		color:  ColorRGBA,
		depth:  Depth8,
	}
}

// SetColor sets the color mode. Validated against the bit depth at
// WriteHeader.
func (e *Encoder) SetColor(c ColorType) { e.color = c }

// SetDepth sets the bits per sample. Validated against the color mode at
// WriteHeader.
func (e *Encoder) SetDepth(d BitDepth) { e.depth = d }

// SetCompressionLevel sets the deflate effort used for pixel data.
func (e *Encoder) SetCompressionLevel(l CompressionLevel) { e.level = l }

// SetFilter sets the scanline predictor policy: adaptive per-row selection
// (the default) or one pinned predictor for the whole image.
func (e *Encoder) SetFilter(f Filter) { e.filter = f }

// SetInterlaced sets the interlace flag of the image descriptor. Interlaced
// output is not supported: WriteHeader rejects a true flag with ErrConfig.
func (e *Encoder) SetInterlaced(v bool) { e.interlaced = v }

// SetPalette sets the color table as packed RGB triples. Required for the
// indexed color mode, optional as a suggested palette for RGB and RGBA.
func (e *Encoder) SetPalette(p []byte) { e.palette = p }

// SetTransparency sets the transparency record: per-entry alpha bytes for
// indexed images, a 2-byte sample for grayscale, or a 6-byte sample for RGB.
func (e *Encoder) SetTransparency(t []byte) { e.transparency = t }

// SetAnimated declares an animation with the given frame count and play
// count. A play count of 0 loops forever. A frame count of 0 is rejected.
func (e *Encoder) SetAnimated(frames, plays uint32) error {
	if frames == 0 {
		return fmt.Errorf("%w: animation declared with zero frames", ErrConfig)
	}
	e.animated = true
	e.numFrames = frames
	e.numPlays = plays
	return nil
}

// SetSeparateDefaultImage marks the first image written as a standalone
// default image that is not part of the animation: it is emitted as plain
// IDAT with no frame control record, and all declared frames follow as fdAT.
func (e *Encoder) SetSeparateDefaultImage(v bool) { e.sepDefault = v }

// SetFrameDelay sets the default display duration of each frame as the
// fraction num/den seconds. A zero denominator reads as 100.
func (e *Encoder) SetFrameDelay(num, den uint16) {
	e.delayNum = num
	e.delayDen = den
}

// SetDisposeOp sets the default frame disposal operator.
func (e *Encoder) SetDisposeOp(op DisposeOp) error {
	if op > DisposePrevious {
		return fmt.Errorf("%w: invalid dispose operator %d", ErrConfig, op)
	}
	e.dispose = op
	return nil
}

// SetBlendOp sets the default frame blend operator.
func (e *Encoder) SetBlendOp(op BlendOp) error {
	if op > BlendOver {
		return fmt.Errorf("%w: invalid blend operator %d", ErrConfig, op)
	}
	e.blend = op
	return nil
}

// validateConfig checks the full configuration before any byte is emitted.
func (e *Encoder) validateConfig() error {
	if e.width < 1 || e.height < 1 {
		return fmt.Errorf("%w: dimensions %dx%d must be positive", ErrConfig, e.width, e.height)
	}
	if e.width > MaxDimension || e.height > MaxDimension {
		return fmt.Errorf("%w: dimensions %dx%d exceed the format limit", ErrConfig, e.width, e.height)
	}
	if e.color.channels() == 0 {
		return fmt.Errorf("%w: invalid color mode %d", ErrConfig, e.color)
	}
	if !e.color.allowsDepth(e.depth) {
		return fmt.Errorf("%w: bit depth %d not allowed for %s", ErrConfig, e.depth, e.color)
	}
	if e.interlaced {
		return fmt.Errorf("%w: interlaced output is not supported", ErrConfig)
	}
	switch e.level {
	case DefaultCompression, NoCompression, BestSpeed, BestCompression:
	default:
		return fmt.Errorf("%w: invalid compression level %d", ErrConfig, e.level)
	}
	if e.filter < FilterAdaptive || e.filter > FilterPaeth {
		return fmt.Errorf("%w: invalid filter %d", ErrConfig, e.filter)
	}
	if err := e.validatePalette(); err != nil {
		return err
	}
	if err := e.validateTransparency(); err != nil {
		return err
	}
	if e.sepDefault && !e.animated {
		return fmt.Errorf("%w: separate default image requires an animation", ErrConfig)
	}
	return nil
}

func (e *Encoder) validatePalette() error {
	n := len(e.palette)
	switch e.color {
	case ColorIndexed:
		if n == 0 {
			return fmt.Errorf("%w: indexed color requires a palette", ErrConfig)
		}
	case ColorRGB, ColorRGBA:
		if n == 0 {
			return nil
		}
	default:
		if n != 0 {
			return fmt.Errorf("%w: palette not allowed for %s", ErrConfig, e.color)
		}
		return nil
	}
	if n%3 != 0 {
		return fmt.Errorf("%w: palette length %d is not a multiple of 3", ErrConfig, n)
	}
	entries := n / 3
	if entries > 256 {
		return fmt.Errorf("%w: palette has %d entries, at most 256 allowed", ErrConfig, entries)
	}
	if e.color == ColorIndexed && entries > 1<<e.depth {
		return fmt.Errorf("%w: palette has %d entries, at most %d at depth %d",
			ErrConfig, entries, 1<<e.depth, e.depth)
	}
	return nil
}

func (e *Encoder) validateTransparency() error {
	n := len(e.transparency)
	if n == 0 {
		return nil
	}
	switch e.color {
	case ColorIndexed:
		if n > len(e.palette)/3 {
			return fmt.Errorf("%w: %d transparency entries for a %d-entry palette",
				ErrConfig, n, len(e.palette)/3)
		}
	case ColorGrayscale:
		if n != 2 {
			return fmt.Errorf("%w: grayscale transparency must be 2 bytes, got %d", ErrConfig, n)
		}
	case ColorRGB:
		if n != 6 {
			return fmt.Errorf("%w: rgb transparency must be 6 bytes, got %d", ErrConfig, n)
		}
	default:
		return fmt.Errorf("%w: transparency record not allowed for %s", ErrConfig, e.color)
	}
	return nil
}

// WriteHeader validates the configuration and emits everything up to the
// first pixel data: the signature, the image descriptor, all text records,
// the palette and transparency records, and the animation control record.
// It returns the Writer that accepts pixel data.
func (e *Encoder) WriteHeader() (*Writer, error) {
	if e.wroteHeader {
		return nil, fmt.Errorf("%w: header already written", ErrConfig)
	}
	if err := e.validateConfig(); err != nil {
		return nil, err
	}
	e.wroteHeader = true

	cw := chunk.NewWriter(e.w)
	if err := cw.WriteSignature(); err != nil {
		return nil, err
	}

	var ihdr [chunk.IHDRSize]byte
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(e.width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(e.height))
	ihdr[8] = byte(e.depth)
	ihdr[9] = byte(e.color)
	ihdr[10] = 0 // compression method: deflate
	ihdr[11] = 0 // filter method: the five-predictor set
	ihdr[12] = 0 // interlace: none
	if err := cw.WriteChunk(chunk.TypeIHDR, ihdr[:]); err != nil {
		return nil, err
	}

	for _, t := range e.texts {
		if err := cw.WriteChunk(t.typ, t.payload); err != nil {
			return nil, err
		}
	}
	if len(e.palette) > 0 {
		if err := cw.WriteChunk(chunk.TypePLTE, e.palette); err != nil {
			return nil, err
		}
	}
	if len(e.transparency) > 0 {
		if err := cw.WriteChunk(chunk.TypeTRNS, e.transparency); err != nil {
			return nil, err
		}
	}
	if e.animated {
		var actl [chunk.ACTLSize]byte
		binary.BigEndian.PutUint32(actl[0:4], e.numFrames)
		binary.BigEndian.PutUint32(actl[4:8], e.numPlays)
		if err := cw.WriteChunk(chunk.TypeACTL, actl[:]); err != nil {
			return nil, err
		}
	}

	w := &Writer{
		cw:     cw,
		color:  e.color,
		depth:  e.depth,
		level:  e.level,
		filter: e.filter,
		seq: frameSequencer{
			canvasW:    uint32(e.width),
			canvasH:    uint32(e.height),
			sepDefault: e.sepDefault,
		},
		next: frameControl{
			width:    uint32(e.width),
			height:   uint32(e.height),
			delayNum: e.delayNum,
			delayDen: e.delayDen,
			dispose:  e.dispose,
			blend:    e.blend,
		},
	}
	if e.animated {
		if err := w.seq.declare(e.numFrames); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Writer accepts pixel data after the header is out. Rows are filtered,
// compressed, and framed as they arrive; a frame begins lazily on its first
// row and completes automatically on its last. Errors are terminal: once any
// call fails, every later call returns the same error.
type Writer struct {
	cw     *chunk.Writer
	color  ColorType
	depth  BitDepth
	level  CompressionLevel
	filter Filter

	seq  frameSequencer
	next frameControl // control values for the next frame begun

	sl       *scanlineEncoder
	dcw      *dataChunkWriter
	rowsLeft int

	err error
}

// SetFrameDelay sets the display duration of subsequently begun frames as
// the fraction num/den seconds. A zero denominator reads as 100.
func (w *Writer) SetFrameDelay(num, den uint16) {
	w.next.delayNum = num
	w.next.delayDen = den
}

// SetDisposeOp sets the disposal operator of subsequently begun frames.
func (w *Writer) SetDisposeOp(op DisposeOp) error {
	if op > DisposePrevious {
		return fmt.Errorf("%w: invalid dispose operator %d", ErrConfig, op)
	}
	w.next.dispose = op
	return nil
}

// SetBlendOp sets the blend operator of subsequently begun frames.
func (w *Writer) SetBlendOp(op BlendOp) error {
	if op > BlendOver {
		return fmt.Errorf("%w: invalid blend operator %d", ErrConfig, op)
	}
	w.next.blend = op
	return nil
}

// SetFrameDimension sets the geometry of the next frame: a width x height
// region at offset (x, y) on the canvas. It cannot be called while a frame
// is in progress. The geometry persists for later frames until changed.
func (w *Writer) SetFrameDimension(width, height, x, y uint32) error {
	if w.err != nil {
		return w.err
	}
	if w.sl != nil {
		return fmt.Errorf("%w: frame in progress", ErrFrameSequence)
	}
	w.next.width = width
	w.next.height = height
	w.next.xOffset = x
	w.next.yOffset = y
	return nil
}

// currentRowSize returns the raw byte length of the rows the Writer expects
// next: the in-progress frame's, or the next frame's if none is in progress.
func (w *Writer) currentRowSize() int {
	if w.sl != nil {
		return w.sl.rowSize
	}
	return rowBytes(int(w.next.width), w.color, w.depth)
}

// beginFrame emits the frame control record for the next frame and arms the
// scanline encoder and the data chunk writer for its rows.
func (w *Writer) beginFrame() error {
	useFdat, err := w.seq.begin(w.cw, w.next)
	if err != nil {
		return err
	}
	w.dcw = newDataChunkWriter(w.cw, &w.seq, useFdat)
	rowSize := rowBytes(int(w.next.width), w.color, w.depth)
	sl, err := newScanlineEncoder(w.dcw, rowSize, bytesPerPixel(w.color, w.depth), w.level, w.filter)
	if err != nil {
		return err
	}
	w.sl = sl
	w.rowsLeft = int(w.next.height)
	return nil
}

// finishFrame finishes the compression stream, flushes the last data chunk,
// and advances the frame protocol.
func (w *Writer) finishFrame() error {
	slErr := w.sl.finish()
	dcwErr := w.dcw.close()
	w.sl = nil
	w.dcw = nil
	if slErr != nil {
		return slErr
	}
	if dcwErr != nil {
		return dcwErr
	}
	w.seq.frameDone()
	return nil
}

// writeRow submits one complete raw scanline of the current frame, starting
// the frame on its first row and finishing it on its last.
func (w *Writer) writeRow(row []byte) error {
	if w.err != nil {
		return w.err
	}
	if err := w.writeRowLocked(row); err != nil {
		w.err = err
		return err
	}
	return nil
}

func (w *Writer) writeRowLocked(row []byte) error {
	if w.sl == nil {
		if err := w.beginFrame(); err != nil {
			return err
		}
	}
	if err := w.sl.writeRow(row); err != nil {
		return err
	}
	w.rowsLeft--
	if w.rowsLeft == 0 {
		return w.finishFrame()
	}
	return nil
}

// WriteImageData encodes exactly one image or frame from raw scanlines laid
// out top to bottom with no padding between rows. The buffer length must
// match the current frame geometry exactly.
func (w *Writer) WriteImageData(pixels []byte) error {
	if w.err != nil {
		return w.err
	}
	if w.sl != nil {
		w.err = fmt.Errorf("%w: frame already in progress", ErrFrameSequence)
		return w.err
	}
	rowSize := w.currentRowSize()
	want := rowSize * int(w.next.height)
	if len(pixels) != want {
		w.err = fmt.Errorf("%w: got %d bytes, frame needs %d (%d rows of %d bytes)",
			ErrScanlineSize, len(pixels), want, w.next.height, rowSize)
		return w.err
	}
	for off := 0; off < len(pixels); off += rowSize {
		if err := w.writeRow(pixels[off : off+rowSize]); err != nil {
			return err
		}
	}
	return nil
}

// Finish validates that every declared frame was written in full and emits
// the trailer record. The Writer accepts nothing after a successful Finish.
func (w *Writer) Finish() error {
	if w.err != nil {
		return w.err
	}
	if err := w.finishLocked(); err != nil {
		w.err = err
		return err
	}
	return nil
}

func (w *Writer) finishLocked() error {
	if w.sl != nil {
		return fmt.Errorf("%w: current frame has %d rows pending", ErrIncompleteImage, w.rowsLeft)
	}
	if err := w.seq.finalize(); err != nil {
		return err
	}
	return w.cw.WriteChunk(chunk.TypeIEND, nil)
}

// Close implements io.Closer as an alias for Finish.
func (w *Writer) Close() error { return w.Finish() }

// maxDataChunk is the payload budget of one IDAT or fdAT record. Compressed
// output is staged up to this size so small compressor writes do not each
// become a record.
const maxDataChunk = 1 << 15

// dataChunkWriter frames the compressor's output stream into IDAT or fdAT
// records. For fdAT it prefixes each record with the next shared sequence
// number. The staging buffer reserves the prefix slot up front, so emitting
// a record never copies the payload.
type dataChunkWriter struct {
	cw      *chunk.Writer
	seq     *frameSequencer
	useFdat bool
	buf     []byte // SeqNumSize prefix slot + maxDataChunk payload
	n       int    // staged payload bytes
}

func newDataChunkWriter(cw *chunk.Writer, seq *frameSequencer, useFdat bool) *dataChunkWriter {
	return &dataChunkWriter{
		cw:      cw,
		seq:     seq,
		useFdat: useFdat,
		buf:     pool.Get(chunk.SeqNumSize + maxDataChunk),
	}
}

func (d *dataChunkWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		space := maxDataChunk - d.n
		if space == 0 {
			if err := d.emit(); err != nil {
				return total - len(p), err
			}
			space = maxDataChunk
		}
		if space > len(p) {
			space = len(p)
		}
		copy(d.buf[chunk.SeqNumSize+d.n:], p[:space])
		d.n += space
		p = p[space:]
	}
	return total, nil
}

// emit frames the staged payload as one record. A no-op when nothing is
// staged, so frame boundaries never produce empty records.
func (d *dataChunkWriter) emit() error {
	if d.n == 0 {
		return nil
	}
	n := d.n
	d.n = 0
	if d.useFdat {
		binary.BigEndian.PutUint32(d.buf[:chunk.SeqNumSize], d.seq.nextSequence())
		return d.cw.WriteChunk(chunk.TypeFDAT, d.buf[:chunk.SeqNumSize+n])
	}
	return d.cw.WriteChunk(chunk.TypeIDAT, d.buf[chunk.SeqNumSize:chunk.SeqNumSize+n])
}

// close emits the residual payload and releases the staging buffer.
func (d *dataChunkWriter) close() error {
	err := d.emit()
	pool.Put(d.buf)
	d.buf = nil
	return err
}

// EncoderOptions configures the Encode convenience function.
type EncoderOptions struct {
	// Level is the deflate effort for pixel data.
	Level CompressionLevel
	// Filter is the scanline predictor policy.
	Filter Filter
}

// Encode writes img to w as a still PNG, picking the closest native color
// mode for the concrete image type: Gray and Gray16 map to grayscale,
// Paletted maps to indexed color at the smallest sufficient bit depth, and
// everything else maps to 8- or 16-bit RGBA. A nil opts uses adaptive
// filtering at the balanced compression level.
func Encode(w io.Writer, img image.Image, opts *EncoderOptions) error {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	b := img.Bounds()
	e := NewEncoder(w, b.Dx(), b.Dy())
	e.SetCompressionLevel(opts.Level)
	e.SetFilter(opts.Filter)

	switch m := img.(type) {
	case *image.Gray:
		e.SetColor(ColorGrayscale)
	case *image.Gray16:
		e.SetColor(ColorGrayscale)
		e.SetDepth(Depth16)
	case *image.NRGBA:
		e.SetColor(ColorRGBA)
	case *image.NRGBA64:
		e.SetColor(ColorRGBA)
		e.SetDepth(Depth16)
	case *image.RGBA:
		e.SetColor(ColorRGBA)
	case *image.Paletted:
		e.SetColor(ColorIndexed)
		e.SetDepth(paletteDepth(len(m.Palette)))
		plte, trns := flattenPalette(m.Palette)
		e.SetPalette(plte)
		if len(trns) > 0 {
			e.SetTransparency(trns)
		}
	default:
		e.SetColor(ColorRGBA)
		e.SetDepth(Depth16)
	}

	wr, err := e.WriteHeader()
	if err != nil {
		return err
	}
	sw, err := wr.StreamWriter()
	if err != nil {
		return err
	}
	if err := writeImageRows(sw, img); err != nil {
		sw.Close()
		return err
	}
	return sw.Finish()
}

// paletteDepth returns the smallest bit depth whose index range covers n
// palette entries.
func paletteDepth(n int) BitDepth {
	switch {
	case n <= 2:
		return Depth1
	case n <= 4:
		return Depth2
	case n <= 16:
		return Depth4
	}
	return Depth8
}

// flattenPalette packs a color palette into RGB triples plus the per-entry
// alpha record, trimmed of its trailing opaque run.
func flattenPalette(p color.Palette) (plte, trns []byte) {
	plte = make([]byte, 0, len(p)*3)
	alpha := make([]byte, len(p))
	last := -1
	for i, c := range p {
		nc := color.NRGBAModel.Convert(c).(color.NRGBA)
		plte = append(plte, nc.R, nc.G, nc.B)
		alpha[i] = nc.A
		if nc.A != 0xff {
			last = i
		}
	}
	if last < 0 {
		return plte, nil
	}
	return plte, alpha[:last+1]
}

// writeImageRows streams img row by row, using the pixel storage directly
// where the in-memory layout already matches the wire layout.
func writeImageRows(sw *StreamWriter, img image.Image) error {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	switch m := img.(type) {
	case *image.Gray:
		return writePixRows(sw, m.Pix[m.PixOffset(b.Min.X, b.Min.Y):], m.Stride, width*1, height)
	case *image.Gray16:
		return writePixRows(sw, m.Pix[m.PixOffset(b.Min.X, b.Min.Y):], m.Stride, width*2, height)
	case *image.NRGBA:
		return writePixRows(sw, m.Pix[m.PixOffset(b.Min.X, b.Min.Y):], m.Stride, width*4, height)
	case *image.NRGBA64:
		return writePixRows(sw, m.Pix[m.PixOffset(b.Min.X, b.Min.Y):], m.Stride, width*8, height)
	case *image.RGBA:
		return writeRGBARows(sw, m, width, height)
	case *image.Paletted:
		return writePalettedRows(sw, m, width, height)
	}
	return writeGenericRows(sw, img, width, height)
}

// writePixRows feeds rows whose pixel storage already matches the wire
// layout, one stride-spaced slice per row.
func writePixRows(sw *StreamWriter, pix []byte, stride, rowSize, height int) error {
	for y := 0; y < height; y++ {
		if _, err := sw.Write(pix[y*stride : y*stride+rowSize]); err != nil {
			return err
		}
	}
	return nil
}

// writeRGBARows un-premultiplies alpha row by row.
func writeRGBARows(sw *StreamWriter, m *image.RGBA, width, height int) error {
	row := pool.Get(width * 4)
	defer pool.Put(row)
	b := m.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			nc := color.NRGBAModel.Convert(m.RGBAAt(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			row[x*4+0] = nc.R
			row[x*4+1] = nc.G
			row[x*4+2] = nc.B
			row[x*4+3] = nc.A
		}
		if _, err := sw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// writePalettedRows packs palette indices at the target bit depth, MSB first
// with zero padding at the row boundary.
func writePalettedRows(sw *StreamWriter, m *image.Paletted, width, height int) error {
	bits := uint(paletteDepth(len(m.Palette)))
	rowSize := (width*int(bits) + 7) / 8
	row := pool.Get(rowSize)
	defer pool.Put(row)
	base := m.PixOffset(m.Bounds().Min.X, m.Bounds().Min.Y)
	for y := 0; y < height; y++ {
		clear(row)
		p := bitio.NewPacker(row)
		for x := 0; x < width; x++ {
			p.WriteBits(m.Pix[base+y*m.Stride+x], bits)
		}
		p.FlushByte()
		if _, err := sw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// writeGenericRows is the fallback for arbitrary image types: 16-bit RGBA
// through the color model.
func writeGenericRows(sw *StreamWriter, img image.Image, width, height int) error {
	row := pool.Get(width * 8)
	defer pool.Put(row)
	b := img.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			nc := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			binary.BigEndian.PutUint16(row[x*8+0:], nc.R)
			binary.BigEndian.PutUint16(row[x*8+2:], nc.G)
			binary.BigEndian.PutUint16(row[x*8+4:], nc.B)
			binary.BigEndian.PutUint16(row[x*8+6:], nc.A)
		}
		if _, err := sw.Write(row); err != nil {
			return err
		}
	}
	return nil
}
