package app

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"syphon-bridge/internal/selector"
	"syphon-bridge/pkg/screen"
	"syphon-bridge/pkg/syphon"
)

const previewInterval = 200 * time.Millisecond

// CanvasSink shows which server is bound. Local displays get a live preview;
// frames of other servers come from the video transport, outside this
// program.
type CanvasSink struct {
	ID     string
	Image  *canvas.Image
	Label  *widget.Label
	logger *zap.Logger

	mu    sync.Mutex
	bound *syphon.Description
	stop  chan struct{}
	done  chan struct{}
}

func NewCanvasSink(id string, logger *zap.Logger) *CanvasSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(480, 270))
	return &CanvasSink{
		ID:     id,
		Image:  img,
		Label:  widget.NewLabel("No server bound"),
		logger: logger.Named("sink").With(zap.String("sink", id)),
	}
}

// Content returns the sink's widgets stacked for placing in a window.
func (c *CanvasSink) Content() fyne.CanvasObject {
	return container.NewBorder(c.Label, nil, nil, nil, c.Image)
}

func (c *CanvasSink) BindServer(d syphon.Description) {
	c.mu.Lock()
	c.stopPreview()
	c.bound = &d
	if index, ok := screen.DisplayIndex(d); ok {
		c.stop, c.done = make(chan struct{}), make(chan struct{})
		go c.preview(screen.NewCapture(index, c.logger), c.stop, c.done)
	}
	c.mu.Unlock()

	c.logger.Debug("bound", zap.String("uuid", d.UUID))
	c.Label.SetText("Showing " + syphon.FormatName(d))
}

func (c *CanvasSink) Unbind() {
	c.mu.Lock()
	c.stopPreview()
	c.bound = nil
	c.mu.Unlock()

	c.Image.Image = nil
	c.Image.Refresh()
	c.Label.SetText("No server bound")
}

// Bound returns the server currently bound, if any.
func (c *CanvasSink) Bound() (syphon.Description, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound == nil {
		return syphon.Description{}, false
	}
	return *c.bound, true
}

// stopPreview ends the preview goroutine and waits for it. Callers hold mu.
func (c *CanvasSink) stopPreview() {
	if c.stop != nil {
		close(c.stop)
		<-c.done
		c.stop, c.done = nil, nil
	}
}

func (c *CanvasSink) preview(capture *screen.Capture, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(previewInterval)
	defer ticker.Stop()
	for {
		if frame := capture.CaptureFrame(); frame != nil {
			c.Image.Image = frame
			c.Image.Refresh()
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Sinks resolves canvas ids for the selector's canvas attribute.
type Sinks map[string]*CanvasSink

func (s Sinks) Resolve(id string) (selector.Sink, bool) {
	sink, ok := s[id]
	if !ok {
		return nil, false
	}
	return sink, true
}
