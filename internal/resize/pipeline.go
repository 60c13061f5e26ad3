package resize

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
)

// Pipeline drives one resize operation end to end: stream acquisition,
// optional in-memory buffering, backend decode, layout, backend render, and
// consumer dispatch, with guaranteed teardown of every intermediate resource
// on every failure path. A Pipeline holds no per-operation state, so a single
// instance is safe to use from concurrent goroutines as long as each call
// gets its own streams and job.
type Pipeline struct {
	backend Backend
	logger  *slog.Logger
}

// NewPipeline creates a pipeline on the given backend.
func NewPipeline(backend Backend, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{backend: backend, logger: logger}
}

// Run reads an image from src, resizes it per job, and hands the rendered
// result to consume. Before consume is invoked, the decoded source image, any
// in-memory buffer, and (unless LeaveSourceOpen is set) the source stream
// have all been released, in that order; the rendered image is released after
// consume returns, whether it succeeds or fails.
func (p *Pipeline) Run(src io.Reader, opts StreamOptions, job *Job, consume Consumer) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: nil job", ErrValidation)
	}
	if err := job.Validate(); err != nil {
		return err
	}

	rendered, err := p.acquireAndRender(src, opts, job)
	if err != nil {
		// A teardown failure can surface after a successful render; the
		// rendered image still has to be released.
		if rendered != nil {
			if closeErr := rendered.Close(); closeErr != nil {
				p.logger.Warn("failed to close rendered image", "error", closeErr)
			}
		}
		return err
	}

	consumeErr := consume(rendered)
	if closeErr := rendered.Close(); closeErr != nil {
		if consumeErr == nil {
			return fmt.Errorf("%w: closing rendered image: %v", ErrIO, closeErr)
		}
		p.logger.Warn("failed to close rendered image", "error", closeErr)
	}
	return consumeErr
}

// acquireAndRender performs buffering, decode, layout and render. Its
// deferred cleanups run before it returns, in last-in-first-out order, which
// yields exactly the required release sequence: decoded image first, then the
// in-memory buffer, then the source stream's fate (close, or rewind when the
// caller keeps it open).
func (p *Pipeline) acquireAndRender(src io.Reader, opts StreamOptions, job *Job) (rendered Image, err error) {
	var rewindTo int64 = -1
	seeker, seekable := src.(io.Seeker)
	if opts.Has(RewindSource) && seekable {
		pos, seekErr := seeker.Seek(0, io.SeekCurrent)
		if seekErr != nil {
			return nil, fmt.Errorf("%w: reading source position: %v", ErrIO, seekErr)
		}
		rewindTo = pos
	}

	sourceReleased := false
	defer func() {
		if sourceReleased {
			return
		}
		if opts.Has(LeaveSourceOpen) {
			if rewindTo >= 0 && seekable {
				if _, seekErr := seeker.Seek(rewindTo, io.SeekStart); seekErr != nil {
					if err == nil {
						err = fmt.Errorf("%w: rewinding source: %v", ErrIO, seekErr)
					} else {
						p.logger.Warn("failed to rewind source stream", "error", seekErr)
					}
				}
			}
			return
		}
		p.closeStream(src, &err, "source stream")
	}()

	read := src
	if opts.Has(BufferInMemory) {
		data, readErr := io.ReadAll(src)
		if readErr != nil {
			return nil, fmt.Errorf("%w: buffering source: %v", ErrIO, readErr)
		}
		if !opts.Has(LeaveSourceOpen) {
			// Release the source right after the copy so the same file can be
			// reopened for writing within this operation.
			p.closeStream(src, &err, "source stream")
			sourceReleased = true
			if err != nil {
				return nil, err
			}
		}
		buf := bytes.NewReader(data)
		defer func() {
			// Drop the buffer before the source defer decides the stream's
			// fate; the decoded image's defer below has already run by now.
			buf.Reset(nil)
		}()
		read = buf
	}

	decoded, decodeErr := p.backend.Decode(read, !job.IgnoreICC)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, decodeErr)
	}
	defer func() {
		if closeErr := decoded.Close(); closeErr != nil {
			p.logger.Warn("failed to close decoded image", "error", closeErr)
		}
	}()

	layout := ComputeLayout(decoded.Size(), job)

	rendered, renderErr := p.backend.Render(decoded, layout.CopyRegion,
		layout.CanvasSize, layout.TargetRegion, job.Background, job.Format)
	if renderErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, renderErr)
	}
	return rendered, nil
}

// closeStream closes v when it is a closer. A close failure never replaces an
// earlier error; it is logged instead.
func (p *Pipeline) closeStream(v any, err *error, what string) {
	closer, ok := v.(io.Closer)
	if !ok {
		return
	}
	closeErr := closer.Close()
	if closeErr == nil {
		return
	}
	if *err == nil {
		*err = fmt.Errorf("%w: closing %s: %v", ErrIO, what, closeErr)
	} else {
		p.logger.Warn("failed to close stream", "stream", what, "error", closeErr)
	}
}

// encodeTo serializes img per the job's format and quality and writes the
// bytes to w.
func (p *Pipeline) encodeTo(img Image, job *Job, w io.Writer) error {
	data, err := p.backend.Encode(img, job.Format, job.Quality)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: writing encoded image: %v", ErrIO, err)
	}
	return nil
}
