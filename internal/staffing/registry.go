package staffing

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/covers-forecast/internal/models"
)

// Registry resolves the staffing configuration of a location.
type Registry struct {
	defaults  models.StaffingConfig
	locations map[string]models.StaffingConfig
	logger    *slog.Logger
}

// RegistryFile is the YAML root structure.
type RegistryFile struct {
	Default   *models.StaffingConfig           `yaml:"default"`
	Locations map[string]models.StaffingConfig `yaml:"locations"`
}

// NewRegistry returns a registry holding only the built-in defaults.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		defaults:  models.DefaultStaffingConfig(),
		locations: map[string]models.StaffingConfig{},
		logger:    logger,
	}
}

// LoadRegistry reads per-location overrides from path. An empty path or a
// missing file yields the defaults.
func LoadRegistry(path string, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry(logger)
	if path == "" {
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			reg.logger.Warn("staffing file not found, using defaults", slog.String("path", path))
			return reg, nil
		}
		return nil, err
	}

	var file RegistryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse staffing file: %w", err)
	}
	if file.Default != nil {
		reg.defaults = merge(reg.defaults, *file.Default)
	}
	if err := validate("default", reg.defaults); err != nil {
		return nil, err
	}
	for id, cfg := range file.Locations {
		merged := merge(reg.defaults, cfg)
		if err := validate(id, merged); err != nil {
			return nil, err
		}
		reg.locations[normalize(id)] = merged
	}
	reg.logger.Info("staffing registry loaded", slog.Int("locations", len(reg.locations)))
	return reg, nil
}

// Set registers or replaces a location configuration.
func (r *Registry) Set(locationID string, cfg models.StaffingConfig) {
	r.locations[normalize(locationID)] = merge(r.defaults, cfg)
}

// ForLocation returns the location's configuration or the defaults.
func (r *Registry) ForLocation(locationID string) models.StaffingConfig {
	if r == nil {
		return models.DefaultStaffingConfig()
	}
	if cfg, ok := r.locations[normalize(locationID)]; ok {
		return cfg
	}
	return r.defaults
}

// merge fills zero fields of override from base.
func merge(base, override models.StaffingConfig) models.StaffingConfig {
	pick := func(v, fallback int) int {
		if v == 0 {
			return fallback
		}
		return v
	}
	return models.StaffingConfig{
		CoversPerServer:  pick(override.CoversPerServer, base.CoversPerServer),
		CoversPerHost:    pick(override.CoversPerHost, base.CoversPerHost),
		CoversPerKitchen: pick(override.CoversPerKitchen, base.CoversPerKitchen),
		UsualServers:     pick(override.UsualServers, base.UsualServers),
		UsualHosts:       pick(override.UsualHosts, base.UsualHosts),
		UsualKitchen:     pick(override.UsualKitchen, base.UsualKitchen),
		MinServers:       pick(override.MinServers, base.MinServers),
		MinHosts:         pick(override.MinHosts, base.MinHosts),
		MinKitchen:       pick(override.MinKitchen, base.MinKitchen),
	}
}

func validate(id string, cfg models.StaffingConfig) error {
	if cfg.CoversPerServer <= 0 || cfg.CoversPerHost <= 0 || cfg.CoversPerKitchen <= 0 {
		return fmt.Errorf("staffing %q: %w: covers-per-role ratios must be positive", id, models.ErrInvalidInput)
	}
	if cfg.MinServers < 0 || cfg.MinHosts < 0 || cfg.MinKitchen < 0 {
		return fmt.Errorf("staffing %q: %w: minimums must not be negative", id, models.ErrInvalidInput)
	}
	return nil
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
