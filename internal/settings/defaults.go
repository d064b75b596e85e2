package settings

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultSettings defines the default client configuration values
var DefaultSettings = []Setting{
	// Notification settings
	{Category: "notifications", Key: "sound_enabled", Value: "true", ValueType: "bool", Description: "Play a tone when a notification arrives"},
	{Category: "notifications", Key: "vibration_enabled", Value: "true", ValueType: "bool", Description: "Vibrate the device when a notification arrives"},
	{Category: "notifications", Key: "desktop_enabled", Value: "true", ValueType: "bool", Description: "Show system-level notifications"},
	{Category: "notifications", Key: "auto_mark_read", Value: "false", ValueType: "bool", Description: "Mark notifications read when the center is opened"},
	{Category: "notifications", Key: "priority_filter", Value: "all", ValueType: "string", Description: "Minimum priority shown in filtered views"},
	{Category: "notifications", Key: "max_stored", Value: "50", ValueType: "int", Description: "Maximum notifications retained before oldest are evicted"},

	// Quiet hours
	{Category: "quiet_hours", Key: "enabled", Value: "false", ValueType: "bool", Description: "Suppress sound and vibration during the quiet window"},
	{Category: "quiet_hours", Key: "start", Value: "22:00", ValueType: "time", Description: "Quiet hours start (HH:MM local time)"},
	{Category: "quiet_hours", Key: "end", Value: "07:00", ValueType: "time", Description: "Quiet hours end (HH:MM local time)"},

	// Auto refresh
	{Category: "refresh", Key: "auto_refresh", Value: "true", ValueType: "bool", Description: "Refresh HOS and trip data in the background"},
	{Category: "refresh", Key: "interval_secs", Value: "60", ValueType: "int", Description: "Background refresh interval in seconds"},
}

// priority filter values accepted for notifications.priority_filter.
var priorityFilters = map[string]struct{}{
	"all": {}, "low": {}, "normal": {}, "high": {}, "urgent": {},
}

// validateSettingValue validates a value against its expected type
func validateSettingValue(valueType, value string) error {
	switch valueType {
	case "int":
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("value must be an integer")
		}
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("value must be 'true' or 'false'")
		}
	case "time":
		if _, err := time.Parse("15:04", value); err != nil {
			return fmt.Errorf("value must be HH:MM")
		}
	}
	return nil
}

// validateKnownValues applies per-key domain checks on top of the type
// check.
func validateKnownValues(category, key, value string) error {
	if category == "notifications" && key == "priority_filter" {
		if _, ok := priorityFilters[value]; !ok {
			return fmt.Errorf("priority filter must be one of all, low, normal, high, urgent")
		}
	}
	if category == "notifications" && key == "max_stored" {
		if n, _ := strconv.Atoi(value); n < 1 {
			return fmt.Errorf("max_stored must be at least 1")
		}
	}
	if category == "refresh" && key == "interval_secs" {
		if n, _ := strconv.Atoi(value); n < 5 {
			return fmt.Errorf("refresh interval must be at least 5 seconds")
		}
	}
	return nil
}
