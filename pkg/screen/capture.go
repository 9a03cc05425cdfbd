package screen

import (
	"image"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
)

// Capture grabs frames of one display.
type Capture struct {
	screenIndex int
	region      *image.Rectangle
	logger      *zap.Logger
}

func NewCapture(index int, logger *zap.Logger) *Capture {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capture{screenIndex: index, logger: logger}
}

// SetRegion limits capture to region, relative to the display's top left
// corner. nil captures the whole display.
func (c *Capture) SetRegion(region *image.Rectangle) {
	c.region = region
}

// CaptureFrame returns the current frame, or nil when the display is gone or
// the capture failed.
func (c *Capture) CaptureFrame() *image.RGBA {
	n := screenshot.NumActiveDisplays()
	if c.screenIndex >= n {
		c.logger.Debug("display index out of range", zap.Int("index", c.screenIndex), zap.Int("displays", n))
		return nil
	}
	bounds := screenshot.GetDisplayBounds(c.screenIndex)
	target := bounds
	if c.region != nil {
		crop := c.region.Add(bounds.Min).Intersect(bounds)
		if crop.Empty() {
			c.logger.Debug("capture region outside display", zap.Int("index", c.screenIndex))
			return nil
		}
		target = crop
	}

	img, err := screenshot.CaptureRect(target)
	if err != nil {
		c.logger.Warn("capture display", zap.Int("index", c.screenIndex), zap.Error(err))
		return nil
	}
	return img
}
