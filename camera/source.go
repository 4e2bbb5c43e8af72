// Package camera - Ownership of the capture device.
//
// A Source supports two mutually exclusive modes: a low-res continuous
// preview used for motion polling, and a high-res still capture used for
// classification. The mode switch is a blocking reconfiguration measured in
// hundreds of milliseconds; it is an expected cost, not a fault. One mutex
// serializes frame acquisition and mode switches, so no two flows ever hold
// the device concurrently.
package camera

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/yardeye/go-sentinel/logging"
)

// Mode is the device configuration state.
type Mode int

const (
	// ModePreview streams low-res frames for motion polling.
	ModePreview Mode = iota
	// ModeReconfiguring means a geometry switch is in progress.
	ModeReconfiguring
	// ModeCapture means the device is configured for a high-res still.
	ModeCapture
)

// String returns the mode name for logs.
func (m Mode) String() string {
	switch m {
	case ModePreview:
		return "preview"
	case ModeReconfiguring:
		return "reconfiguring"
	case ModeCapture:
		return "capture"
	default:
		return "unknown"
	}
}

// Source abstracts the camera for the monitor, so tests can substitute a
// synthetic frame source.
type Source interface {
	// ReadPreview fills dst with the next low-res frame.
	ReadPreview(dst *gocv.Mat) error
	// CaptureStill switches to the high-res geometry, grabs one frame, and
	// restores the preview geometry. The caller owns the returned Mat.
	CaptureStill() (gocv.Mat, error)
	// Close releases the device. No reads may follow.
	Close() error
}

// Config selects the device and its two geometries.
type Config struct {
	// Device is a numeric device index ("0") or a video file path.
	Device string
	// Preview geometry, used for motion polling.
	PreviewWidth, PreviewHeight int
	// Still geometry, used for classification captures.
	StillWidth, StillHeight int
}

// settleFrames is the number of frames discarded after a geometry switch so
// the sensor output reflects the new configuration.
const settleFrames = 2

// Webcam owns one gocv.VideoCapture handle.
type Webcam struct {
	cfg Config

	mu     sync.Mutex
	mode   Mode
	device *gocv.VideoCapture
	closed bool

	log *slog.Logger
}

// Open acquires the device and configures the preview geometry. An
// unavailable device is a fatal initialization failure.
func Open(cfg Config) (*Webcam, error) {
	device, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, errors.Wrapf(err, "opening capture device %q", cfg.Device)
	}

	w := &Webcam{
		cfg:    cfg,
		mode:   ModePreview,
		device: device,
		log:    logging.ForService("camera"),
	}
	w.applyGeometry(cfg.PreviewWidth, cfg.PreviewHeight)
	w.log.Info("camera opened",
		"device", cfg.Device,
		"preview", cfg.PreviewWidth, "still", cfg.StillWidth)
	return w, nil
}

// ReadPreview fills dst with the next preview frame.
func (w *Webcam) ReadPreview(dst *gocv.Mat) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("camera is closed")
	}
	if w.mode != ModePreview {
		return errors.Errorf("camera busy: mode is %s", w.mode)
	}
	if ok := w.device.Read(dst); !ok || dst.Empty() {
		return errors.New("failed to read preview frame")
	}
	return nil
}

// CaptureStill performs the full mode round trip under the device lock:
// Preview -> Reconfiguring -> Capture -> Reconfiguring -> Preview. The
// preview geometry is restored even when the capture itself fails.
func (w *Webcam) CaptureStill() (gocv.Mat, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return gocv.NewMat(), errors.New("camera is closed")
	}

	w.mode = ModeReconfiguring
	w.applyGeometry(w.cfg.StillWidth, w.cfg.StillHeight)
	w.mode = ModeCapture

	defer func() {
		w.mode = ModeReconfiguring
		w.applyGeometry(w.cfg.PreviewWidth, w.cfg.PreviewHeight)
		w.mode = ModePreview
	}()

	frame := gocv.NewMat()
	if ok := w.device.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.NewMat(), errors.New("failed to capture still frame")
	}
	return frame, nil
}

// applyGeometry reconfigures the device and discards settle frames. Callers
// hold the mutex.
func (w *Webcam) applyGeometry(width, height int) {
	w.device.Set(gocv.VideoCaptureFrameWidth, float64(width))
	w.device.Set(gocv.VideoCaptureFrameHeight, float64(height))

	discard := gocv.NewMat()
	defer discard.Close()
	for i := 0; i < settleFrames; i++ {
		if ok := w.device.Read(&discard); !ok {
			break
		}
	}
}

// Mode returns the current device mode.
func (w *Webcam) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Close releases the device handle.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.device.Close()
}
