package termstore

import (
	"github.com/spf13/viper"
)

// Config holds the environment-driven settings spec.md §6 names:
// MARK_DEPTH_LIMIT (optional recursion-depth guard for the collector's mark
// phase) and AUTO_GC (default-on toggle for background collection).
type Config struct {
	MarkDepthLimit int
	AutoGC         bool
}

// LoadConfig reads Config from the process environment via viper, the same
// way jinterlante1206-AleutianLocal's CLI binds a viper instance directly to
// environment and file sources (cmd/aleutian/cli_commands.go) rather than
// hand-rolling os.Getenv calls.
func LoadConfig() Config {
	v := viper.New()
	v.SetEnvPrefix("ATERM")
	v.AutomaticEnv()
	v.SetDefault("mark_depth_limit", 0)
	v.SetDefault("auto_gc", true)
	_ = v.BindEnv("mark_depth_limit", "MARK_DEPTH_LIMIT")
	_ = v.BindEnv("auto_gc", "AUTO_GC")

	return Config{
		MarkDepthLimit: v.GetInt("mark_depth_limit"),
		AutoGC:         v.GetBool("auto_gc"),
	}
}
