package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/elliotnunn/gzflate/internal/flate"
)

// Config carries the knobs an operator might want to override via
// environment variables at process startup, the same way BEGB used to
// gate this binary's memory ceiling.
type Config struct {
	Flate          flate.Config
	VerifyChecksum bool
	MemoryCapMiB   int
}

func configFromEnv() Config {
	cfg := Config{
		Flate:          flate.DefaultConfig,
		VerifyChecksum: true,
	}

	if v, ok := envInt("GZFLATE_INPUT_BUFFER"); ok {
		cfg.Flate.InputBufferSize = v
	}
	if v, ok := envInt("GZFLATE_MAX_OUTPUT_BUFFER"); ok {
		cfg.Flate.MaxOutputBufferSize = v
	}
	if v, ok := envInt("GZFLATE_MIN_OUTPUT_BUFFER"); ok {
		cfg.Flate.MinOutputBufferSize = v
	}
	if v, ok := envBool("GZFLATE_VERIFY"); ok {
		cfg.VerifyChecksum = v
	}
	if v, ok := envInt("GZFLATE_MEM_MIB"); ok {
		cfg.MemoryCapMiB = v
	}

	if cfg.MemoryCapMiB > 0 {
		used := (cfg.Flate.MaxOutputBufferSize + cfg.Flate.InputBufferSize) / (1 << 20)
		if used > cfg.MemoryCapMiB {
			panic(fmt.Sprintf("gzflate: buffer sizes need %d MiB, exceeding GZFLATE_MEM_MIB=%d", used, cfg.MemoryCapMiB))
		}
	}

	return cfg
}

func envInt(name string) (int, bool) {
	s := os.Getenv(name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		panic(fmt.Sprintf("gzflate: invalid %s=%q: %v", name, s, err))
	}
	return v, true
}

func envBool(name string) (bool, bool) {
	s := os.Getenv(name)
	if s == "" {
		return false, false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		panic(fmt.Sprintf("gzflate: invalid %s=%q: %v", name, s, err))
	}
	return v, true
}
