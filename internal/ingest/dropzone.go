package ingest

import "sync"

// DragEvent is one step of a drag-and-drop sequence over the drop zone.
type DragEvent int

const (
	DragEnter DragEvent = iota
	DragOver
	DragLeave
	Drop
)

func (e DragEvent) String() string {
	switch e {
	case DragEnter:
		return "dragenter"
	case DragOver:
		return "dragover"
	case DragLeave:
		return "dragleave"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

// DropZone is the drag-and-drop entry point into a Pipeline.
type DropZone struct {
	pipeline *Pipeline
	onDrop   func(*File)

	mu     sync.Mutex
	active bool
}

// NewDropZone creates a drop zone feeding p. onDrop, if non-nil, is called with each
// file the pipeline accepts from a drop.
func NewDropZone(p *Pipeline, onDrop func(*File)) *DropZone {
	return &DropZone{pipeline: p, onDrop: onDrop}
}

// Handle processes ev and reports whether it was consumed; every drag event is.
// Only the first file of a drop is ingested.
func (z *DropZone) Handle(ev DragEvent, files ...*File) bool {
	z.mu.Lock()
	switch ev {
	case DragEnter, DragOver:
		z.active = true
	case DragLeave, Drop:
		z.active = false
	}
	z.mu.Unlock()

	if ev == Drop && len(files) > 0 && files[0] != nil {
		if z.pipeline.AcceptFile(files[0]) && z.onDrop != nil {
			z.onDrop(files[0])
		}
	}
	return true
}

// Active reports whether a drag is currently over the zone.
func (z *DropZone) Active() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.active
}
