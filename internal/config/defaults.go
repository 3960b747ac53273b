package config

import "github.com/creasty/defaults"

// Default returns a Config populated with repository defaults. Paths are left
// unexpanded; Load normalizes them.
func Default() Config {
	var cfg Config
	// Struct tags are static, so Set only fails on a malformed tag.
	if err := defaults.Set(&cfg); err != nil {
		panic("config: invalid default tag: " + err.Error())
	}
	return cfg
}
