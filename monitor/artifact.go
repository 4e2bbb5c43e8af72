package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/yardeye/go-sentinel/images"
	"github.com/yardeye/go-sentinel/vision"
)

const artifactTimeLayout = "20060102_150405"

// saveCapture writes the raw high-res frame into the captures directory.
// Best effort: failures are logged and the trigger path continues.
func (m *Monitor) saveCapture(frame gocv.Mat) {
	if m.cfg.CapturesDir == "" {
		return
	}
	data, err := images.EncodeJPEG(frame)
	if err != nil {
		m.log.Warn("encoding capture failed", "error", err)
		return
	}
	name := fmt.Sprintf("motion_%s.jpg", m.gate.LastTrigger().Format(artifactTimeLayout))
	path := filepath.Join(m.cfg.CapturesDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		m.metrics.PersistErrors.Inc()
		m.log.Warn("writing capture failed", "path", path, "error", err)
	}
}

// saveArtifact persists one detection artifact: the annotated JPEG and the
// structured JSON record, under a shared timestamped base name.
func (m *Monitor) saveArtifact(frame gocv.Mat, ev vision.DetectionEvent) error {
	base := filepath.Join(m.cfg.DetectionsDir,
		fmt.Sprintf("detection_%s", ev.Timestamp.Format(artifactTimeLayout)))

	annotated := vision.Annotate(frame, ev)
	defer annotated.Close()

	jpegData, err := images.EncodeJPEG(annotated)
	if err != nil {
		return errors.Wrap(err, "encoding annotated image")
	}
	if err := os.WriteFile(base+".jpg", jpegData, 0o644); err != nil {
		return errors.Wrap(err, "writing annotated image")
	}

	record, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding detection record")
	}
	if err := os.WriteFile(base+".json", record, 0o644); err != nil {
		return errors.Wrap(err, "writing detection record")
	}

	m.log.Debug("artifact saved", "base", base, "detections", len(ev.Detections))
	return nil
}
