package resize

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// RunFile is Run with a file-path source.
func (p *Pipeline) RunFile(srcPath string, opts StreamOptions, job *Job, consume Consumer) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: opening source: %v", ErrIO, err)
	}
	// The pipeline owns the handle it opened; LeaveSourceOpen would leak it.
	return p.Run(f, opts&^LeaveSourceOpen, job, consume)
}

// ResizeStream resizes src into dst. dst is closed afterwards when it is a
// closer and LeaveDestinationOpen is not set.
func (p *Pipeline) ResizeStream(src io.Reader, dst io.Writer, opts StreamOptions, job *Job) error {
	return p.Run(src, opts, job, func(img Image) (err error) {
		defer func() {
			if !opts.Has(LeaveDestinationOpen) {
				p.closeStream(dst, &err, "destination stream")
			}
		}()
		return p.encodeTo(img, job, dst)
	})
}

// ResizeStreamToFile resizes src into the file at dstPath. The destination
// file is only created after a successful render, so a decode or render
// failure never leaves a partial file behind.
func (p *Pipeline) ResizeStreamToFile(src io.Reader, dstPath string, opts StreamOptions, job *Job) error {
	if err := p.prepareDestinationDir(dstPath, opts); err != nil {
		return err
	}
	return p.Run(src, opts, job, func(img Image) error {
		return p.writeFile(img, job, dstPath)
	})
}

// ResizeFileToStream resizes the file at srcPath into dst.
func (p *Pipeline) ResizeFileToStream(srcPath string, dst io.Writer, opts StreamOptions, job *Job) error {
	return p.RunFile(srcPath, opts, job, func(img Image) (err error) {
		defer func() {
			if !opts.Has(LeaveDestinationOpen) {
				p.closeStream(dst, &err, "destination stream")
			}
		}()
		return p.encodeTo(img, job, dst)
	})
}

// ResizeFile resizes the file at srcPath into the file at dstPath. When both
// paths name the same file the source is buffered in memory so it can be
// overwritten in place.
func (p *Pipeline) ResizeFile(srcPath, dstPath string, opts StreamOptions, job *Job) error {
	if err := p.prepareDestinationDir(dstPath, opts); err != nil {
		return err
	}
	if filepath.Clean(srcPath) == filepath.Clean(dstPath) {
		opts |= BufferInMemory
	}
	return p.RunFile(srcPath, opts, job, func(img Image) error {
		return p.writeFile(img, job, dstPath)
	})
}

// prepareDestinationDir ensures the destination's parent directory exists,
// creating it only when CreateDestinationDirectory is set. A missing
// directory without the flag fails before any of the source is read.
func (p *Pipeline) prepareDestinationDir(dstPath string, opts StreamOptions) error {
	dir := filepath.Dir(dstPath)
	if opts.Has(CreateDestinationDirectory) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating destination directory: %v", ErrIO, err)
		}
		return nil
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: destination directory %s does not exist", ErrIO, dir)
		}
		return fmt.Errorf("%w: checking destination directory: %v", ErrIO, err)
	}
	return nil
}

func (p *Pipeline) writeFile(img Image, job *Job, dstPath string) (err error) {
	f, createErr := os.Create(dstPath)
	if createErr != nil {
		return fmt.Errorf("%w: creating destination: %v", ErrIO, createErr)
	}
	defer p.closeStream(f, &err, "destination file")
	return p.encodeTo(img, job, f)
}
