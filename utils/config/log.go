package config

import (
	"fmt"
	"sort"
)

// Verbose indicates whether verbose logging is enabled
var Verbose bool

// Debug indicates whether debug logging is enabled
var Debug bool

// DebugLog prints debug information if debug mode is enabled
func DebugLog(format string, args ...interface{}) {
	if Debug {
		fmt.Printf("[DEBUG] "+format+"\n", args...)
	}
}

// VerboseLog prints high-level progress if verbose or debug mode is enabled
func VerboseLog(format string, args ...interface{}) {
	if Verbose || Debug {
		fmt.Printf("[VERBOSE] "+format+"\n", args...)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
