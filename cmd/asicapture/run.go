package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/file"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nasa-jpl/cameraunit/asi"
	"github.com/nasa-jpl/cameraunit/autoexp"
	"github.com/nasa-jpl/cameraunit/camera"
	"github.com/nasa-jpl/cameraunit/imgrec"
	"github.com/nasa-jpl/cameraunit/metrics"
	"github.com/nasa-jpl/cameraunit/temperature"
	"github.com/nasa-jpl/cameraunit/util"
)

// tuning holds the auto exposure section, which may be reloaded while running
type tuning struct {
	mu sync.Mutex
	ae autoexposure
}

func (t *tuning) get() autoexposure {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ae
}

func (t *tuning) set(ae autoexposure) {
	t.mu.Lock()
	t.ae = ae
	t.mu.Unlock()
}

func openSDK(cfg config) (asi.SDK, error) {
	if cfg.Simulate {
		return asi.NewSimulator(), nil
	}
	return asi.NewSDK()
}

// openCamera retries while the camera enumerates after power up
func openCamera(ctx context.Context, reg *asi.Registry, id int, log *zap.Logger) (*asi.Camera, *asi.Info, error) {
	var (
		cam  *asi.Camera
		info *asi.Info
	)
	op := func() error {
		var err error
		if id < 0 {
			cam, info, err = reg.OpenFirst()
		} else {
			cam, info, err = reg.Open(id)
		}
		if err != nil {
			log.Warn("open camera", zap.Int("id", id), zap.Error(err))
		}
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     250 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Clock:               backoff.SystemClock}, ctx))
	return cam, info, err
}

// setup programs the camera from the config
func setup(cam *asi.Camera, info *asi.Info, cfg config, log *zap.Logger) error {
	var errs []error
	if cfg.Format != "" {
		f, err := camera.ParsePixelFormat(cfg.Format)
		if err == nil {
			err = cam.SetImageFormat(f)
		}
		errs = append(errs, err)
	}
	if len(cfg.Controls) > 0 {
		ctl := map[asi.ControlType]int64{}
		for name, v := range cfg.Controls {
			ct, err := asi.ParseControlType(name)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			ctl[ct] = v
		}
		errs = append(errs, cam.Configure(ctl))
	}
	_, err := cam.SetROI(cfg.ROI)
	errs = append(errs, err)
	_, err = cam.SetExposure(cfg.Exposure)
	errs = append(errs, err)
	_, err = cam.SetGain(cfg.Gain)
	errs = append(errs, err)
	if cfg.Offset > 0 {
		_, err = cam.SetOffset(cfg.Offset)
		errs = append(errs, err)
	}
	if cfg.Dark {
		_, err = cam.SetShutterOpen(false)
		errs = append(errs, err)
	}
	if cfg.Cooling.Enabled {
		want := temperature.Celsius(cfg.Cooling.Setpoint)
		sp := asi.Setpoints.Clamp(want)
		if sp != want {
			log.Warn("cooling setpoint out of range", zap.Stringer("requested", want), zap.Stringer("using", sp))
		}
		_, err = info.SetTemperature(sp)
		errs = append(errs, err)
	}
	cam.SetCaptureTimeout(cfg.CaptureTimeout)

	if err := util.MergeErrors(errs); err != nil {
		return err
	}
	log.Info("camera configured", zap.String("name", cam.Name()), zap.Stringer("roi", cam.ROI()),
		zap.Duration("exposure", cam.Exposure()), zap.Float64("gain", cam.Gain()))
	return nil
}

// monitor logs and records the cooling state until ctx is done
func monitor(ctx context.Context, info camera.Info, m *metrics.Set, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		t, err := info.Temperature()
		if err != nil {
			log.Warn("read temperature", zap.Error(err))
			continue
		}
		p, err := info.CoolerPower()
		if err != nil {
			log.Warn("read cooler power", zap.Error(err))
		}
		m.ObserveCooling(t, p)
		log.Debug("cooling", zap.Stringer("temp", t), zap.Float64("power", p),
			zap.Bool("capturing", info.Capturing()))
	}
}

// watch reloads the auto exposure section whenever the config file changes
func watch(t *tuning, log *zap.Logger) {
	f := file.Provider(ConfigFileName)
	err := f.Watch(func(event interface{}, err error) {
		if err != nil {
			log.Warn("config watch", zap.Error(err))
			return
		}
		c, err := loadConfig(koanf.New("."))
		if err != nil {
			log.Warn("config reload", zap.Error(err))
			return
		}
		t.set(c.AutoExposure)
		log.Info("auto exposure settings reloaded", zap.Float64("target", c.AutoExposure.Target),
			zap.Float64("percentile", c.AutoExposure.Percentile))
	})
	if err != nil {
		log.Debug("config file not watched", zap.Error(err))
	}
}

// steer applies the optimizer's recommendation to the camera
func steer(cam *asi.Camera, res autoexp.Result, log *zap.Logger) error {
	if res.BinX != cam.BinX() {
		if _, err := cam.SetROI(cam.ROI().Rebin(res.BinX)); err != nil {
			return fmt.Errorf("rebin to %d: %w", res.BinX, err)
		}
	}
	if res.Exposure != cam.Exposure() {
		if _, err := cam.SetExposure(res.Exposure); err != nil {
			return fmt.Errorf("exposure %v: %w", res.Exposure, err)
		}
	}
	log.Debug("auto exposure", zap.Float64("value", res.Value), zap.Bool("converged", res.Converged),
		zap.Duration("exposure", res.Exposure), zap.Int("bin", res.BinX))
	return nil
}

func acquire(ctx context.Context, cam *asi.Camera, cfg config, t *tuning, rec *imgrec.Recorder, m *metrics.Set, log *zap.Logger) {
	lim := rate.NewLimiter(rate.Every(cfg.Cadence), 1)
	for n := 0; cfg.Count == 0 || n < cfg.Count; n++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		img, err := cam.Capture(ctx)
		m.ObserveCapture(img, err)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("capture", zap.Int("frame", n), zap.Error(err))
			continue
		}
		if rec.Enabled {
			fn, err := rec.Save(img)
			if err != nil {
				log.Error("save", zap.Error(err))
			} else {
				log.Info("saved", zap.String("file", fn), zap.Duration("exposure", img.Meta.Exposure),
					zap.Int("bin", img.Meta.BinX))
			}
		}
		if ae := t.get(); ae.Enabled {
			res, err := img.FindOptimumExposure(ae.params())
			if err != nil {
				log.Warn("auto exposure", zap.Error(err))
			} else {
				m.ObserveExposure(res)
				if err := steer(cam, res, log); err != nil {
					log.Warn("apply auto exposure", zap.Error(err))
				}
			}
		}
		if cfg.Output.Metrics != "" {
			if err := m.WriteTextfile(cfg.Output.Metrics); err != nil {
				log.Warn("write metrics", zap.Error(err))
			}
		}
	}
}

func run(cfg config) error {
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.With(zap.String("run", uuid.New().String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sdk, err := openSDK(cfg)
	if err != nil {
		return err
	}
	reg := asi.NewRegistry(sdk, log)
	log.Info("SDK loaded", zap.String("version", reg.SDKVersion()), zap.Int("cameras", reg.NumCameras()))
	cam, info, err := openCamera(ctx, reg, cfg.CameraID, log)
	if err != nil {
		return err
	}
	defer info.Close()
	defer cam.Close()

	if err = setup(cam, info, cfg, log); err != nil {
		log.Warn("some settings were not applied", zap.Error(err))
	}

	m := metrics.New(cam.Name())
	if cfg.Cooling.Enabled {
		go monitor(ctx, info, m, cfg.Cooling.Interval, log)
	}
	t := &tuning{ae: cfg.AutoExposure}
	watch(t, log)

	rec := imgrec.New(cfg.Output.Root, cfg.Output.Prefix, "asicapture "+Version)
	rec.Overwrite = cfg.Output.Overwrite
	rec.Compress = cfg.Output.Compress
	rec.PreviewSize = cfg.Output.PreviewSize

	log.Info("acquisition started", zap.Duration("cadence", cfg.Cadence), zap.Int("count", cfg.Count))
	acquire(ctx, cam, cfg, t, rec, m, log)
	if ctx.Err() != nil {
		if err := cam.CancelCapture(); err != nil {
			log.Warn("cancel capture", zap.Error(err))
		}
	}
	log.Info("acquisition stopped")
	return nil
}
