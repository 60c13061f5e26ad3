package resize

import (
	"bytes"
	"errors"
	"image/color"
	"io"
	"strings"
	"testing"

	"github.com/imazen/lightresize/internal/geometry"
)

// eventLog records the order of backend and stream lifecycle events so tests
// can assert the pipeline's release sequence.
type eventLog struct {
	events []string
}

func (l *eventLog) add(e string) {
	l.events = append(l.events, e)
}

func (l *eventLog) check(t *testing.T, want ...string) {
	t.Helper()
	got := strings.Join(l.events, " -> ")
	expected := strings.Join(want, " -> ")
	if got != expected {
		t.Errorf("event order = %s, want %s", got, expected)
	}
}

type fakeImage struct {
	size     geometry.Size
	label    string
	log      *eventLog
	closed   bool
	closeErr error
}

func (f *fakeImage) Size() geometry.Size { return f.size }

func (f *fakeImage) Close() error {
	f.closed = true
	f.log.add("close " + f.label)
	return f.closeErr
}

type fakeBackend struct {
	size             geometry.Size
	decodeErr        error
	renderErr        error
	encodeErr        error
	renderedCloseErr error
	log              *eventLog

	decoded  *fakeImage
	rendered *fakeImage
}

func newFakeBackend(width, height int) *fakeBackend {
	return &fakeBackend{size: geometry.NewSize(width, height), log: &eventLog{}}
}

func (b *fakeBackend) Decode(r io.Reader, applyICC bool) (Image, error) {
	b.log.add("decode")
	if b.decodeErr != nil {
		return nil, b.decodeErr
	}
	b.decoded = &fakeImage{size: b.size, label: "decoded", log: b.log}
	return b.decoded, nil
}

func (b *fakeBackend) Render(src Image, copyRegion geometry.Rect, canvasSize geometry.Size,
	targetRegion geometry.Rect, background color.NRGBA, hint Format) (Image, error) {
	b.log.add("render")
	if b.renderErr != nil {
		return nil, b.renderErr
	}
	b.rendered = &fakeImage{size: canvasSize, label: "rendered", log: b.log, closeErr: b.renderedCloseErr}
	return b.rendered, nil
}

func (b *fakeBackend) Encode(img Image, format Format, quality int) ([]byte, error) {
	b.log.add("encode")
	if b.encodeErr != nil {
		return nil, b.encodeErr
	}
	return []byte("encoded-" + string(format)), nil
}

// trackingReader is a closable, seekable source that records its own close.
type trackingReader struct {
	*bytes.Reader
	log      *eventLog
	closed   bool
	closeErr error
}

func newTrackingReader(log *eventLog) *trackingReader {
	return &trackingReader{Reader: bytes.NewReader([]byte("not a real image")), log: log}
}

func (r *trackingReader) Close() error {
	r.closed = true
	r.log.add("close source")
	return r.closeErr
}

func (b *fakeBackend) consumer() Consumer {
	return func(img Image) error {
		b.log.add("consume")
		return nil
	}
}

func TestPipeline_ReleaseOrder(t *testing.T) {
	be := newFakeBackend(100, 80)
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)

	job := mustJob(t, &Job{Width: 50})
	if err := p.Run(src, 0, job, be.consumer()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The decoded image, then the source stream, must be released before the
	// consumer runs; the rendered image outlives the consumer.
	be.log.check(t, "decode", "render", "close decoded", "close source", "consume", "close rendered")
	if !src.closed {
		t.Error("source stream left open")
	}
	if !be.rendered.closed {
		t.Error("rendered image left open")
	}
}

func TestPipeline_ReleaseOrder_Buffered(t *testing.T) {
	be := newFakeBackend(100, 80)
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)

	job := mustJob(t, &Job{Width: 50})
	if err := p.Run(src, BufferInMemory, job, be.consumer()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Buffering releases the source as soon as the copy is made, before the
	// decode even starts.
	be.log.check(t, "close source", "decode", "render", "close decoded", "consume", "close rendered")
}

func TestPipeline_LeaveSourceOpen(t *testing.T) {
	be := newFakeBackend(100, 80)
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)

	job := mustJob(t, &Job{Width: 50})
	if err := p.Run(src, LeaveSourceOpen, job, be.consumer()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if src.closed {
		t.Error("source stream closed despite LeaveSourceOpen")
	}
	be.log.check(t, "decode", "render", "close decoded", "consume", "close rendered")
}

func TestPipeline_RewindSource(t *testing.T) {
	be := newFakeBackend(100, 80)
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)

	// Advance the stream so the restored position is distinguishable from a
	// plain seek-to-start.
	if _, err := io.CopyN(io.Discard, src, 3); err != nil {
		t.Fatalf("pre-read failed: %v", err)
	}

	job := mustJob(t, &Job{Width: 50})
	if err := p.Run(src, LeaveSourceOpen|RewindSource, job, be.consumer()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	pos, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if pos != 3 {
		t.Errorf("source position after run = %d, want 3", pos)
	}
	if src.closed {
		t.Error("source stream closed despite LeaveSourceOpen")
	}
}

func TestPipeline_RewindSource_NonSeekable(t *testing.T) {
	be := newFakeBackend(100, 80)
	p := NewPipeline(be, nil)

	// A bare strings.Reader hidden behind io.Reader exposes no Seek; the
	// rewind request is a no-op, not an error.
	var src io.Reader = struct{ io.Reader }{strings.NewReader("not a real image")}

	job := mustJob(t, &Job{Width: 50})
	if err := p.Run(src, LeaveSourceOpen|RewindSource, job, be.consumer()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestPipeline_DecodeError(t *testing.T) {
	be := newFakeBackend(100, 80)
	be.decodeErr = errors.New("bad magic bytes")
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)

	job := mustJob(t, &Job{Width: 50})
	err := p.Run(src, 0, job, be.consumer())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Run() error = %v, want ErrDecode", err)
	}

	// The source is still released, and the consumer never runs.
	be.log.check(t, "decode", "close source")
	if !src.closed {
		t.Error("source stream left open after decode failure")
	}
}

func TestPipeline_RenderError(t *testing.T) {
	be := newFakeBackend(100, 80)
	be.renderErr = errors.New("out of memory")
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)

	job := mustJob(t, &Job{Width: 50})
	err := p.Run(src, 0, job, be.consumer())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("Run() error = %v, want ErrRender", err)
	}

	be.log.check(t, "decode", "render", "close decoded", "close source")
	if !be.decoded.closed {
		t.Error("decoded image left open after render failure")
	}
}

func TestPipeline_ConsumerError(t *testing.T) {
	be := newFakeBackend(100, 80)
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)

	wantErr := errors.New("destination full")
	job := mustJob(t, &Job{Width: 50})
	err := p.Run(src, 0, job, func(img Image) error {
		be.log.add("consume")
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want consumer error", err)
	}

	// A failing consumer must not leak the rendered image.
	if !be.rendered.closed {
		t.Error("rendered image left open after consumer failure")
	}
}

func TestPipeline_ConsumerErrorNotMaskedByClose(t *testing.T) {
	be := newFakeBackend(100, 80)
	be.renderedCloseErr = errors.New("close failed")
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)

	wantErr := errors.New("destination full")
	job := mustJob(t, &Job{Width: 50})
	err := p.Run(src, 0, job, func(img Image) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Run() error = %v, want the consumer's error to win", err)
	}
}

func TestPipeline_RenderedCloseErrorPromoted(t *testing.T) {
	be := newFakeBackend(100, 80)
	be.renderedCloseErr = errors.New("close failed")
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)

	job := mustJob(t, &Job{Width: 50})
	err := p.Run(src, 0, job, be.consumer())
	if !errors.Is(err, ErrIO) {
		t.Errorf("Run() error = %v, want ErrIO when only the close fails", err)
	}
}

func TestPipeline_SourceCloseErrorPromoted(t *testing.T) {
	be := newFakeBackend(100, 80)
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)
	src.closeErr = errors.New("close failed")

	job := mustJob(t, &Job{Width: 50})
	err := p.Run(src, 0, job, be.consumer())
	if !errors.Is(err, ErrIO) {
		t.Errorf("Run() error = %v, want ErrIO when the source close fails", err)
	}
}

func TestPipeline_UnknownStreamOptions(t *testing.T) {
	be := newFakeBackend(100, 80)
	p := NewPipeline(be, nil)
	src := newTrackingReader(be.log)

	job := mustJob(t, &Job{Width: 50})
	err := p.Run(src, StreamOptions(1<<7), job, be.consumer())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Run() error = %v, want ErrValidation", err)
	}

	// Validation failures reject before touching the source or the backend.
	be.log.check(t)
	if src.closed {
		t.Error("source stream closed on validation failure")
	}
}

func TestPipeline_NilJob(t *testing.T) {
	be := newFakeBackend(100, 80)
	p := NewPipeline(be, nil)

	err := p.Run(newTrackingReader(be.log), 0, nil, be.consumer())
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Run() error = %v, want ErrValidation for nil job", err)
	}
}

func TestPipeline_InvalidJob(t *testing.T) {
	be := newFakeBackend(100, 80)
	p := NewPipeline(be, nil)

	err := p.Run(newTrackingReader(be.log), 0, &Job{Width: -1}, be.consumer())
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Run() error = %v, want ErrValidation for negative width", err)
	}
	be.log.check(t)
}

func TestPipeline_LayoutReachesBackend(t *testing.T) {
	be := newFakeBackend(200, 100)
	p := NewPipeline(be, nil)

	job := mustJob(t, &Job{Width: 100, Height: 100, Fit: FitPad})
	if err := p.Run(newTrackingReader(be.log), 0, job, be.consumer()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if be.rendered.size != geometry.NewSize(100, 100) {
		t.Errorf("rendered canvas = %+v, want 100x100", be.rendered.size)
	}
}
