package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// configFileNames are searched for in the scene's directory and its parents, in order of preference.
var configFileNames = []string{
	"sdfwalk.json",
	".sdfwalkrc",
}

// Config is the JSON configuration file. Unset fields keep their defaults
// and flags given on the command line take precedence over set fields.
type Config struct {
	Width    *int     `json:"width,omitempty"`
	Height   *int     `json:"height,omitempty"`
	FPS      *float32 `json:"fps,omitempty"`
	FOV      *float32 `json:"fov,omitempty"`
	Duration *float32 `json:"duration,omitempty"`
	Output   *string  `json:"output,omitempty"`
	CPU      *bool    `json:"cpu,omitempty"`
	Stamp    *bool    `json:"stamp,omitempty"`
	NoCamera *bool    `json:"noCamera,omitempty"`
	Silent   *bool    `json:"silent,omitempty"`
}

// settings are the resolved options of one invocation.
type settings struct {
	Scene    string
	Width    int
	Height   int
	FPS      float32
	FOV      float32 // Degrees.
	Duration float32
	Output   string
	Offline  bool
	CPU      bool
	Stamp    bool
	NoCamera bool
	Lint     bool
	Silent   bool
	// ConfigPath is the config file applied, if any.
	ConfigPath string
}

func defaultSettings() settings {
	return settings{
		Width:  800,
		Height: 600,
		FPS:    30,
		FOV:    90,
		Output: "frames",
	}
}

// loadConfig searches for a config file starting from startDir and walking
// up to the filesystem root. It returns a nil Config if none is found.
func loadConfig(startDir string) (*Config, string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", err
	}
	for {
		for _, name := range configFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := loadConfigFile(path)
				return cfg, path, err
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// apply sets every field of s that is set in c and whose flag is not in explicit.
func (c *Config) apply(s *settings, explicit map[string]bool) {
	setInt := func(dst *int, v *int, flagName string) {
		if v != nil && !explicit[flagName] {
			*dst = *v
		}
	}
	setFloat := func(dst *float32, v *float32, flagName string) {
		if v != nil && !explicit[flagName] {
			*dst = *v
		}
	}
	setBool := func(dst *bool, v *bool, flagName string) {
		if v != nil && !explicit[flagName] {
			*dst = *v
		}
	}
	setInt(&s.Width, c.Width, "w")
	setInt(&s.Height, c.Height, "h")
	setFloat(&s.FPS, c.FPS, "fps")
	setFloat(&s.FOV, c.FOV, "fov")
	setFloat(&s.Duration, c.Duration, "duration")
	if c.Output != nil && !explicit["o"] {
		s.Output = *c.Output
	}
	setBool(&s.CPU, c.CPU, "cpu")
	setBool(&s.Stamp, c.Stamp, "stamp")
	setBool(&s.NoCamera, c.NoCamera, "no-camera")
	setBool(&s.Silent, c.Silent, "q")
}

var errUsage = errors.New("expected exactly one scene file argument")

// parseArgs resolves the settings of an invocation from command line
// arguments and the config file they select.
func parseArgs(args []string, output io.Writer) (settings, error) {
	s := defaultSettings()
	fs := flag.NewFlagSet("sdfwalk", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.IntVar(&s.Width, "w", s.Width, "window and frame `width` in pixels")
	fs.IntVar(&s.Height, "h", s.Height, "window and frame `height` in pixels")
	var fps, fov, duration float64
	fs.Float64Var(&fps, "fps", float64(s.FPS), "offline frame `rate`")
	fs.Float64Var(&fov, "fov", float64(s.FOV), "vertical field of view in `degrees`")
	fs.Float64Var(&duration, "duration", 0, "offline sequence length in `seconds`, zero renders the whole camera timeline")
	fs.StringVar(&s.Output, "o", s.Output, "offline output `directory`")
	fs.BoolVar(&s.Offline, "offline", false, "render frames to the output directory instead of opening a window")
	fs.BoolVar(&s.CPU, "cpu", false, "render offline frames on the CPU")
	fs.BoolVar(&s.Stamp, "stamp", false, "draw a timecode on offline frames")
	fs.BoolVar(&s.NoCamera, "no-camera", false, "ignore the scene camera")
	fs.BoolVar(&s.Lint, "lint", false, "report scene lint issues and exit")
	fs.BoolVar(&s.Silent, "q", false, "only log errors")
	configFile := fs.String("config", "", "use specific config `file`")
	noConfig := fs.Bool("no-config", false, "ignore config files")
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: sdfwalk [options] <scene>\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(output, "\nsdfwalk looks for %s or %s in the scene directory and its parents.\n", configFileNames[0], configFileNames[1])
		fmt.Fprintf(output, "Command line options override config file settings.\n")
	}
	err := fs.Parse(args)
	if err != nil {
		return s, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return s, errUsage
	}
	s.Scene = fs.Arg(0)
	s.FPS, s.FOV, s.Duration = float32(fps), float32(fov), float32(duration)

	if !*noConfig {
		var cfg *Config
		if *configFile != "" {
			cfg, err = loadConfigFile(*configFile)
			s.ConfigPath = *configFile
		} else {
			cfg, s.ConfigPath, err = loadConfig(filepath.Dir(s.Scene))
		}
		if err != nil {
			return s, fmt.Errorf("loading config: %w", err)
		}
		if cfg != nil {
			explicit := make(map[string]bool)
			fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
			cfg.apply(&s, explicit)
		}
	}
	return s, s.validate()
}

func (s *settings) validate() error {
	switch {
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("invalid size %dx%d", s.Width, s.Height)
	case !(s.FPS > 0):
		return fmt.Errorf("invalid frame rate %g", s.FPS)
	case !(s.FOV > 0 && s.FOV < 180):
		return fmt.Errorf("field of view %g out of range (0, 180)", s.FOV)
	case s.Duration < 0:
		return fmt.Errorf("negative duration %g", s.Duration)
	}
	return nil
}
