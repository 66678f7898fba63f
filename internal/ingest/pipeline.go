package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// UploadState is the image surface's current selection.
// PreviewDataURL is derived asynchronously from SelectedFile and may trail it.
type UploadState struct {
	PreviewDataURL string
	SelectedFile   *File
}

// Pipeline accepts image files, publishes their previews and hands the raw file to the caller.
type Pipeline struct {
	mu        sync.Mutex
	state     UploadState
	gen       uint64
	ready     chan struct{} // closed when the preview for gen is published
	onPreview func(UploadState)
	logger    *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPreviewHandler registers fn to be called with the new state each time a preview is published.
func WithPreviewHandler(fn func(UploadState)) PipelineOption {
	return func(p *Pipeline) { p.onPreview = fn }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates an empty pipeline.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		ready:  make(chan struct{}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AcceptFile selects f if its declared media type is an image and starts building its preview.
// Non-image files are ignored without error and leave the state untouched.
// The preview is produced on its own goroutine; AcceptFile never waits for it.
func (p *Pipeline) AcceptFile(f *File) bool {
	if !f.IsImage() {
		if f != nil {
			p.logger.Debug("ignoring non-image file", zap.String("name", f.Name), zap.String("content_type", f.ContentType))
		}
		return false
	}
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.state = UploadState{SelectedFile: f}
	p.ready = make(chan struct{})
	p.mu.Unlock()

	p.logger.Debug("image accepted", zap.String("name", f.Name), zap.String("content_type", f.ContentType), zap.Int("bytes", len(f.Data)))
	go p.buildPreview(gen, f)
	return true
}

func (p *Pipeline) buildPreview(gen uint64, f *File) {
	preview := f.DataURL()

	p.mu.Lock()
	if gen != p.gen {
		// replaced or cleared while encoding
		p.mu.Unlock()
		return
	}
	p.state.PreviewDataURL = preview
	state := p.state
	ready := p.ready
	onPreview := p.onPreview
	p.mu.Unlock()

	if onPreview != nil {
		onPreview(state)
	}
	close(ready)
}

// Clear drops the current file and preview. Calling it on an empty pipeline is a no-op.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.SelectedFile == nil && p.state.PreviewDataURL == "" {
		return
	}
	p.gen++
	p.state = UploadState{}
	p.ready = make(chan struct{})
}

// State returns a snapshot of the upload state.
func (p *Pipeline) State() UploadState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SelectedFile returns the accepted file, or nil.
func (p *Pipeline) SelectedFile() *File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.SelectedFile
}

// WaitPreview blocks until the preview of the currently selected file is published,
// and the preview handler has returned, or ctx is done. A Clear or a newer AcceptFile
// while waiting keeps it waiting for the new file.
func (p *Pipeline) WaitPreview(ctx context.Context) (string, error) {
	for {
		p.mu.Lock()
		ready := p.ready
		p.mu.Unlock()
		select {
		case <-ready:
			p.mu.Lock()
			if ready == p.ready {
				preview := p.state.PreviewDataURL
				p.mu.Unlock()
				return preview, nil
			}
			p.mu.Unlock()
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
