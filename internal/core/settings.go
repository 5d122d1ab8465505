package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mentionguard/internal/antispam"
	"mentionguard/pkg/text"
)

// Setting keys accepted by the spamset command and stored in the settings store
const (
	SettingMaxMentions          = "max-mentions"
	SettingMaxMentionsPerMinute = "max-mentions-per-minute"
	SettingMaxMentionsPerHour   = "max-mentions-per-hour"
	SettingWarningThreshold     = "warning-threshold"
	SettingBlockDurationSecs    = "block-duration-secs"
	SettingCleanupIntervalSecs  = "cleanup-interval-secs"
	SettingRetentionSecs        = "retention-secs"
	SettingAntiMentionEnabled   = "anti-mention-enabled"
)

var (
	errUnknownSetting = errors.New("unknown setting")
	errInvalidValue   = errors.New("invalid setting value")
)

// SettingKeys lists every runtime setting in display order
func SettingKeys() []string {
	return []string{
		SettingMaxMentions,
		SettingMaxMentionsPerMinute,
		SettingMaxMentionsPerHour,
		SettingWarningThreshold,
		SettingBlockDurationSecs,
		SettingCleanupIntervalSecs,
		SettingRetentionSecs,
		SettingAntiMentionEnabled,
	}
}

// parseLimitSetting converts an engine setting into a config patch
func parseLimitSetting(key, value string) (antispam.ConfigPatch, error) {
	var patch antispam.ConfigPatch

	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		if isLimitSetting(key) {
			return patch, fmt.Errorf("%w: %s=%q", errInvalidValue, key, value)
		}
		return patch, fmt.Errorf("%w: %s", errUnknownSetting, key)
	}

	count := uint(n)
	duration := time.Duration(n) * time.Second

	switch key {
	case SettingMaxMentions:
		patch.MaxMentions = &count
	case SettingMaxMentionsPerMinute:
		patch.MaxMentionsPerMinute = &count
	case SettingMaxMentionsPerHour:
		patch.MaxMentionsPerHour = &count
	case SettingWarningThreshold:
		patch.WarningThreshold = &count
	case SettingBlockDurationSecs:
		patch.BlockDuration = &duration
	case SettingCleanupIntervalSecs:
		patch.CleanupInterval = &duration
	case SettingRetentionSecs:
		patch.Retention = &duration
	default:
		return patch, fmt.Errorf("%w: %s", errUnknownSetting, key)
	}

	return patch, nil
}

func isLimitSetting(key string) bool {
	return key != SettingAntiMentionEnabled && isKnownSetting(key)
}

func isKnownSetting(key string) bool {
	for _, k := range SettingKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// parseToggle accepts on/off in addition to the strconv boolean spellings
func parseToggle(value string) (bool, error) {
	switch text.FoldCase(strings.TrimSpace(value)) {
	case "on", "yes", "enable", "enabled":
		return true, nil
	case "off", "no", "disable", "disabled":
		return false, nil
	}

	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %q", errInvalidValue, value)
	}
	return enabled, nil
}

// applySetting validates and applies a single setting to the live state
func (d *Dispatcher) applySetting(key, value string) error {
	if key == SettingAntiMentionEnabled {
		enabled, err := parseToggle(value)
		if err != nil {
			return err
		}
		d.enabled.Store(enabled)
		return nil
	}

	patch, err := parseLimitSetting(key, value)
	if err != nil {
		return err
	}

	if err := d.engine.UpdateConfig(patch); err != nil {
		return fmt.Errorf("%w: %w", errInvalidValue, err)
	}
	return nil
}

// persistSetting writes an applied setting to the settings store, if one is configured
func (d *Dispatcher) persistSetting(ctx context.Context, key, value string) error {
	if d.settings == nil {
		return nil
	}

	if err := d.settings.Set(ctx, key, value); err != nil {
		d.metrics.RecordError(componentSettings, "write")
		return fmt.Errorf("failed to persist setting %s: %w", key, err)
	}
	return nil
}

// LoadSettings applies the stored overrides on top of the startup configuration.
// Unknown or invalid entries are logged and skipped.
func (d *Dispatcher) LoadSettings(ctx context.Context) error {
	if d.settings == nil {
		return nil
	}

	stored, err := d.settings.All(ctx)
	if err != nil {
		d.metrics.RecordError(componentSettings, "read")
		return fmt.Errorf("failed to load settings: %w", err)
	}

	keys := make([]string, 0, len(stored))
	for key := range stored {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var patch antispam.ConfigPatch
	for _, key := range keys {
		value := stored[key]

		if key == SettingAntiMentionEnabled {
			enabled, err := parseToggle(value)
			if err != nil {
				d.logger.Warn("Ignoring stored setting", zap.String("key", key), zap.Error(err))
				continue
			}
			d.enabled.Store(enabled)
			continue
		}

		p, err := parseLimitSetting(key, value)
		if err != nil {
			d.logger.Warn("Ignoring stored setting", zap.String("key", key), zap.Error(err))
			continue
		}
		patch = patch.Merge(p)
	}

	if err := d.engine.UpdateConfig(patch); err != nil {
		return fmt.Errorf("stored settings rejected: %w", err)
	}

	d.logger.Info("Applied stored settings",
		zap.Int("count", len(keys)),
		zap.Bool("antiMentionEnabled", d.enabled.Load()))
	return nil
}
