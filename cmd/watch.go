package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yardeye/go-sentinel/camera"
	"github.com/yardeye/go-sentinel/logging"
	"github.com/yardeye/go-sentinel/metrics"
	"github.com/yardeye/go-sentinel/monitor"
	"github.com/yardeye/go-sentinel/motion"
	"github.com/yardeye/go-sentinel/stats"
	"github.com/yardeye/go-sentinel/vision"
)

func watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the monitoring pipeline until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch()
		},
	}
}

func runWatch() error {
	log := logging.ForService("main")

	source, err := camera.Open(camera.Config{
		Device:        settings.Camera.Device,
		PreviewWidth:  settings.Camera.PreviewWidth,
		PreviewHeight: settings.Camera.PreviewHeight,
		StillWidth:    settings.Camera.StillWidth,
		StillHeight:   settings.Camera.StillHeight,
	})
	if err != nil {
		return err
	}

	coarse, err := vision.NewONNXDetector(vision.ONNXDetectorConfig{
		ModelPath:           settings.Detect.ModelPath,
		ConfidenceThreshold: float32(settings.Detect.ConfidenceThreshold),
	})
	if err != nil {
		source.Close()
		return err
	}

	// The identity model is optional: a missing or broken model degrades the
	// pipeline to detection-only mode instead of refusing to start.
	var identity *vision.IdentityClassifier
	labels := vision.LoadIdentityLabels(settings.Detect.IdentityLabelsPath)
	identity, err = vision.LoadIdentityClassifier(settings.Detect.IdentityModelPath, labels)
	if err != nil {
		log.Warn("identity model unavailable", "error", err)
		identity = nil
	}

	classifier := vision.NewClassifier(
		coarse,
		identity,
		vision.NewSpeciesClassifier(nil),
		settings.Detect.ConfidenceThreshold,
	)
	defer classifier.Close()

	gate := motion.NewGate(motion.Config{
		Sensitivity:  settings.Motion.Sensitivity,
		MinArea:      settings.Motion.MinArea,
		Cooldown:     settings.Motion.Cooldown,
		WarmupFrames: settings.Motion.WarmupFrames,
	})
	defer gate.Close()

	aggregator := stats.NewAggregator(settings.Paths.StatsFile)
	pipeline := metrics.NewPipeline()

	if settings.Metrics.Enabled {
		go serveMetrics(settings.Metrics.Listen, pipeline)
	}

	mon := monitor.New(monitor.Config{
		Save:          settings.Save,
		CapturesDir:   settings.Paths.Captures,
		DetectionsDir: settings.Paths.Detections,
		StatsInterval: settings.Stats.Interval,
	}, source, gate, classifier, aggregator, pipeline)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mon.Start(ctx); err != nil {
		source.Close()
		return err
	}

	<-ctx.Done()
	log.Info("shutdown requested")
	mon.Stop()
	aggregator.RenderSummary(os.Stdout)
	return nil
}

func serveMetrics(listen string, pipeline *metrics.Pipeline) {
	log := logging.ForService("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", pipeline.Handler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("metrics endpoint listening", "addr", listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics endpoint failed", "error", err)
	}
}
