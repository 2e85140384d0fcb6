package config

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/ThatOtherAndrew/Turntable/internal/logging"
	"github.com/pelletier/go-toml/v2"
)

type Settings struct {
	Canvas          string             `toml:"canvas"`
	Title           string             `toml:"title"`
	Width           int                `toml:"width"`
	Height          int                `toml:"height"`
	VSync           bool               `toml:"vsync"`
	AssetDir        string             `toml:"asset_dir"`
	AssetBaseURL    string             `toml:"asset_base_url"`
	Assets          []string           `toml:"assets"`
	AngularRate     float64            `toml:"angular_rate"`
	Rates           map[string]float64 `toml:"rates"`
	MaxFrameDelta   float64            `toml:"max_frame_delta"`
	FOV             float32            `toml:"fov"`
	CameraDistance  float32            `toml:"camera_distance"`
	ClearColor      [4]float32         `toml:"clear_color"`
	LoadConcurrency int                `toml:"load_concurrency"`
	MaxTextureSize  int                `toml:"max_texture_size"`
	AutoStart       bool               `toml:"autostart"`
	Watch           bool               `toml:"watch"`
	LogLevel        string             `toml:"log_level"`
}

func Default() *Settings {
	return &Settings{
		Canvas:          "turntable",
		Title:           "Turntable",
		Width:           800,
		Height:          600,
		VSync:           true,
		AssetDir:        "assets",
		Assets:          []string{"tomato", "espresso", "latte"},
		AngularRate:     math.Pi / 4,
		Rates:           map[string]float64{},
		MaxFrameDelta:   0.25,
		FOV:             45,
		CameraDistance:  3,
		ClearColor:      [4]float32{0.08, 0.08, 0.1, 1},
		LoadConcurrency: 4,
		MaxTextureSize:  2048,
		AutoStart:       true,
		LogLevel:        "info",
	}
}

// FrameDelta is MaxFrameDelta as a duration.
func (s *Settings) FrameDelta() time.Duration {
	return time.Duration(s.MaxFrameDelta * float64(time.Second))
}

func GetDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(homeDir, ".config", "turntable")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

func GetSettingsPath() (string, error) {
	dir, err := GetDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.toml"), nil
}

// LoadSettings reads the settings file at the default location.
func LoadSettings() (*Settings, error) {
	path, err := GetSettingsPath()
	if err != nil {
		return nil, err
	}
	return LoadSettingsFrom(path)
}

// LoadSettingsFrom reads settings from path. A missing file is created with
// the defaults; a malformed one is reported and replaced by the defaults in
// memory only.
func LoadSettingsFrom(settingsPath string) (*Settings, error) {
	log := logging.Logger()
	defaultSettings := Default()

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info("creating default settings file", "path", settingsPath)
			if err := createDefaultSettings(settingsPath, defaultSettings); err != nil {
				log.Warn("failed to create default settings file", "err", err)
			}
			return defaultSettings, nil
		}
		return nil, err
	}

	// Check for unrecognised keys
	var rawSettings map[string]any
	if err := toml.Unmarshal(data, &rawSettings); err != nil {
		log.Warn("invalid settings file, using defaults", "err", err)
		return defaultSettings, nil
	}

	knownKeys := getKnownKeys(Settings{})
	for key := range rawSettings {
		if !knownKeys[key] {
			log.Warn("unrecognised setting key in settings file", "key", key)
		}
	}

	settings := Default()
	if err := toml.Unmarshal(data, settings); err != nil {
		log.Warn("invalid settings file, using defaults", "err", err)
		return defaultSettings, nil
	}

	settings.validate(defaultSettings, log)
	return settings, nil
}

func (s *Settings) validate(d *Settings, log *slog.Logger) {
	if s.Canvas == "" {
		log.Warn("empty canvas id, using default", "default", d.Canvas)
		s.Canvas = d.Canvas
	}
	if s.Width <= 0 || s.Height <= 0 {
		log.Warn("invalid window size, using default",
			"width", s.Width, "height", s.Height, "default_width", d.Width, "default_height", d.Height)
		s.Width, s.Height = d.Width, d.Height
	}
	if math.IsNaN(s.AngularRate) || math.IsInf(s.AngularRate, 0) {
		log.Warn("invalid angular_rate, using default", "default", d.AngularRate)
		s.AngularRate = d.AngularRate
	}
	for name, r := range s.Rates {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			log.Warn("invalid rate, using angular_rate", "model", name)
			delete(s.Rates, name)
		}
	}
	if s.MaxFrameDelta < 0 {
		log.Warn("negative max_frame_delta, using default", "default", d.MaxFrameDelta)
		s.MaxFrameDelta = d.MaxFrameDelta
	}
	// Validate and clamp fov to (0, 180)
	if s.FOV <= 0 || s.FOV >= 180 {
		log.Warn("invalid fov, must be between 0 and 180", "fov", s.FOV, "default", d.FOV)
		s.FOV = d.FOV
	}
	if s.CameraDistance <= 0 {
		log.Warn("invalid camera_distance, using default", "default", d.CameraDistance)
		s.CameraDistance = d.CameraDistance
	}
	for _, c := range s.ClearColor {
		if c < 0 || c > 1 {
			log.Warn("clear_color components must be between 0.0 and 1.0, using default")
			s.ClearColor = d.ClearColor
			break
		}
	}
	if s.LoadConcurrency <= 0 {
		s.LoadConcurrency = d.LoadConcurrency
	}
	if s.MaxTextureSize <= 0 {
		s.MaxTextureSize = d.MaxTextureSize
	}
}

func createDefaultSettings(path string, settings *Settings) error {
	return SaveSettingsTo(path, settings)
}

// SaveSettingsTo writes settings to path, replacing the file.
func SaveSettingsTo(path string, settings *Settings) error {
	data, err := toml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func getKnownKeys(v any) map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if tag := field.Tag.Get("toml"); tag != "" {
			// Handle tags like "field,omitempty"
			tagName := strings.Split(tag, ",")[0]
			if tagName != "-" {
				keys[tagName] = true
			}
		}
	}
	return keys
}
