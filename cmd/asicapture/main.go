/*Command asicapture runs an unattended acquisition loop on a ZWO ASI camera.

Each frame is saved as FITS in a dated folder, and the next exposure and
binning are chosen by the auto exposure optimizer.  Cooling is monitored in
the background.  Without the vendor library linked, the simulator may be used
by setting Simulate in the config file.
*/
package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"
	"go.uber.org/zap"

	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/cameraunit/asi"
	"github.com/nasa-jpl/cameraunit/autoexp"
	"github.com/nasa-jpl/cameraunit/camera"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "asicapture.yml"
	k              = koanf.New(".")
)

type cooling struct {
	// Enabled switches the cooler on at Setpoint
	Enabled bool `yaml:"Enabled" koanf:"Enabled"`

	// Setpoint is the sensor temperature in C
	Setpoint float64 `yaml:"Setpoint" koanf:"Setpoint"`

	// Interval is the period of the temperature monitor
	Interval time.Duration `yaml:"Interval" koanf:"Interval"`
}

type autoexposure struct {
	Enabled    bool    `yaml:"Enabled" koanf:"Enabled"`
	Percentile float64 `yaml:"Percentile" koanf:"Percentile"`

	// Target and Tolerance are in 16-bit ADU; 8-bit frames are scaled up
	Target    float64 `yaml:"Target" koanf:"Target"`
	Tolerance float64 `yaml:"Tolerance" koanf:"Tolerance"`


	MaxExposure time.Duration `yaml:"MaxExposure" koanf:"MaxExposure"`
	MaxBin      int           `yaml:"MaxBin" koanf:"MaxBin"`
	Exclusion   int           `yaml:"Exclusion" koanf:"Exclusion"`
}

func (a autoexposure) params() autoexp.Params {
	return autoexp.Params{
		Percentile:  a.Percentile,
		Target:      a.Target,
		Tolerance:   a.Tolerance,
		MaxExposure: a.MaxExposure,
		MaxBin:      a.MaxBin,
		Exclusion:   a.Exclusion,
	}
}

type output struct {
	// Root is the root folder to write to
	Root string `yaml:"Root" koanf:"Root"`

	// Prefix is the filename prefix to use
	Prefix string `yaml:"Prefix" koanf:"Prefix"`

	// Overwrite replaces files of the same name
	Overwrite bool `yaml:"Overwrite" koanf:"Overwrite"`

	// Compress writes gzipped .fits.gz files
	Compress bool `yaml:"Compress" koanf:"Compress"`

	// PreviewSize is the edge length of PNG thumbnails, 0 for none
	PreviewSize int `yaml:"PreviewSize" koanf:"PreviewSize"`

	// Metrics is the path of a Prometheus textfile, empty for none
	Metrics string `yaml:"Metrics" koanf:"Metrics"`
}

type logging struct {
	Level       string `yaml:"Level" koanf:"Level"`
	Development bool   `yaml:"Development" koanf:"Development"`
}

type config struct {
	// Simulate uses the in-memory camera instead of the vendor library
	Simulate bool `yaml:"Simulate" koanf:"Simulate"`

	// CameraID selects the camera, -1 for the first one connected
	CameraID int `yaml:"CameraID" koanf:"CameraID"`

	Exposure       time.Duration `yaml:"Exposure" koanf:"Exposure"`
	Gain           float64       `yaml:"Gain" koanf:"Gain"`
	Offset         int           `yaml:"Offset" koanf:"Offset"`
	Format         string        `yaml:"Format" koanf:"Format"`
	ROI            camera.ROI    `yaml:"ROI" koanf:"ROI"`
	Dark           bool          `yaml:"Dark" koanf:"Dark"`
	Cadence        time.Duration `yaml:"Cadence" koanf:"Cadence"`
	Count          int           `yaml:"Count" koanf:"Count"`
	CaptureTimeout time.Duration `yaml:"CaptureTimeout" koanf:"CaptureTimeout"`

	// Controls are written to the camera at startup, by SDK control name
	Controls map[string]int64 `yaml:"Controls" koanf:"Controls"`

	Cooling      cooling      `yaml:"Cooling" koanf:"Cooling"`
	AutoExposure autoexposure `yaml:"AutoExposure" koanf:"AutoExposure"`
	Output       output       `yaml:"Output" koanf:"Output"`
	Log          logging      `yaml:"Log" koanf:"Log"`
}

func defaults() config {
	return config{
		CameraID:       -1,
		Exposure:       asi.DefaultExposure,
		Format:         "",
		ROI:            camera.FullFrame(1),
		Cadence:        5 * time.Second,
		CaptureTimeout: 30 * time.Second,
		Controls:       map[string]int64{"BandWidth": 80},
		Cooling: cooling{
			Enabled:  true,
			Setpoint: -10,
			Interval: 10 * time.Second,
		},
		AutoExposure: autoexposure{
			Enabled:     true,
			Percentile:  95,
			Target:      40000,
			Tolerance:   2000,
			MaxExposure: 60 * time.Second,
			MaxBin:      4,
			Exclusion:   100,
		},
		Output: output{
			Root:   "data",
			Prefix: "asi",
		},
		Log: logging{Level: "info"},
	}
}

// loadConfig reads the defaults then the config file into a fresh koanf
func loadConfig(kk *koanf.Koanf) (config, error) {
	kk.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := kk.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			return config{}, fmt.Errorf("error loading config: %w", err)
		}
	}
	c := config{}
	err := kk.Unmarshal("", &c)
	return c, err
}

func setupconfig() config {
	c, err := loadConfig(k)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func newLogger(l logging) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if l.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	if l.Level != "" {
		lvl, err := zap.ParseAtomicLevel(l.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

func root() {
	str := `asicapture runs an acquisition loop on a ZWO ASI camera,
saving FITS files and steering the exposure automatically.

Usage:
	asicapture <command>

Commands:
	run
	list
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `asicapture is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Keys are not case-sensitive.
The command mkconf generates the configuration file with the default values.

CameraID -1 opens the first camera connected.  Simulate: true runs against an
in-memory camera, which is useful when the binary was built without -tags asi.

Count 0 captures until interrupted.  Ctrl-C cancels the exposure in progress.

The AutoExposure section may be edited while running; the new targets are used
from the next frame.  Files are written to Output.Root/yyyy-mm-dd/.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("asicapture version %v\n", Version)
}

// spinner shows progress on stderr, so stdout stays clean when piped
func spinner(msg string) *yacspin.Spinner {
	s, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ",
		Message:           msg,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
		Writer:            os.Stderr,
	})
	if err != nil {
		return nil
	}
	return s
}

func list(cfg config) {
	sdk, err := openSDK(cfg)
	if err != nil {
		log.Fatal(err)
	}
	reg := asi.NewRegistry(sdk, nil)
	spin := spinner("enumerating cameras")
	if spin != nil {
		spin.Start()
	}
	props, err := reg.List()
	if spin != nil {
		if err != nil {
			spin.StopFail()
		} else {
			spin.Stop()
		}
	}
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("SDK version %s\n", reg.SDKVersion())
	if len(props) == 0 {
		fmt.Println("no cameras connected")
	}
	for _, p := range props {
		fmt.Print(p)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cfg := setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "list":
		list(cfg)
		return
	case "run":
		if err := run(cfg); err != nil {
			log.Fatal(err)
		}
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
