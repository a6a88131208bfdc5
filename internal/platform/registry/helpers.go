package registry

// Type-safe configuration extraction helpers for module factories.
// These functions eliminate repetitive nil checks and type assertions when
// extracting custom configuration values from the cfg.Custom map.

// GetStringConfig extracts a string value from custom config map with a default fallback.
// Returns the default value if:
//   - custom map is nil
//   - key doesn't exist
//   - value is not a string
//   - value is an empty string
func GetStringConfig(custom map[string]interface{}, key, defaultValue string) string {
	if custom == nil {
		return defaultValue
	}

	if val, ok := custom[key].(string); ok && val != "" {
		return val
	}

	return defaultValue
}

// GetIntConfig extracts an int value from custom config map with a default fallback.
// Handles both int and float64 (JSON numbers are parsed as float64).
func GetIntConfig(custom map[string]interface{}, key string, defaultValue int) int {
	if custom == nil {
		return defaultValue
	}

	if val, ok := custom[key].(int); ok {
		return val
	}

	if val, ok := custom[key].(float64); ok {
		return int(val)
	}

	return defaultValue
}

// GetBoolConfig extracts a bool value from custom config map with a default fallback.
func GetBoolConfig(custom map[string]interface{}, key string, defaultValue bool) bool {
	if custom == nil {
		return defaultValue
	}

	if val, ok := custom[key].(bool); ok {
		return val
	}

	return defaultValue
}

// GetSliceConfig extracts a []string slice from custom config map with a default fallback.
// Converts []interface{} to []string if necessary (common for YAML/JSON arrays).
func GetSliceConfig(custom map[string]interface{}, key string, defaultValue []string) []string {
	if custom == nil {
		return defaultValue
	}

	val, exists := custom[key]
	if !exists {
		return defaultValue
	}

	if slice, ok := val.([]string); ok {
		return slice
	}

	if interfaceSlice, ok := val.([]interface{}); ok {
		stringSlice := make([]string, 0, len(interfaceSlice))
		for _, item := range interfaceSlice {
			str, ok := item.(string)
			if !ok {
				return defaultValue
			}
			stringSlice = append(stringSlice, str)
		}
		return stringSlice
	}

	return defaultValue
}
