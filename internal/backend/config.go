package backend

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"uopc/internal/uop"
)

// Config is the ambient, YAML-loadable form of spec.md §6's environment
// variables. A profile on disk sets per-target defaults; an environment
// variable of the same name overrides it at run time, matching how the
// teacher corpus layers CLI flags over file-based defaults.
type Config struct {
	SupportsFloat4 bool     `yaml:"supports_float4"`
	NativeOps      []string `yaml:"native_ops"`

	Transcendental      int  `yaml:"transcendental"`
	AMX                 bool `yaml:"amx"`
	AllowHalf8          bool `yaml:"allow_half8"`
	DisableLoopCollapse bool `yaml:"disable_loop_collapse"`
	DoReduce            bool `yaml:"do_reduce"`
	DebugExpand         bool `yaml:"debug_expand"`
	CI                  bool `yaml:"ci"`
	Debug               int  `yaml:"debug"`
}

// DefaultConfig returns the conservative defaults used when no profile file
// is given on the command line.
func DefaultConfig() *Config {
	return &Config{DoReduce: true}
}

// LoadConfig reads a YAML backend profile from path, then applies
// environment-variable overrides for every toggle named in spec.md §6.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := envInt("TRANSCENDENTAL"); ok {
		c.Transcendental = v
	}
	if v, ok := envBool("AMX"); ok {
		c.AMX = v
	}
	if v, ok := envBool("ALLOW_HALF8"); ok {
		c.AllowHalf8 = v
	}
	if v, ok := envBool("DISABLE_LOOP_COLLAPSE"); ok {
		c.DisableLoopCollapse = v
	}
	if v, ok := envBool("DO_REDUCE"); ok {
		c.DoReduce = v
	}
	if v, ok := envBool("DEBUG_EXPAND"); ok {
		c.DebugExpand = v
	}
	if v, ok := envBool("CI"); ok {
		c.CI = v
	}
	if v, ok := envInt("DEBUG"); ok {
		c.Debug = v
	}
}

func envInt(name string) (int, bool) {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(name string) (bool, bool) {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return false, false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return s != "0", true
	}
	return v, true
}

// Descriptor builds the Descriptor a Config's NativeOps/SupportsFloat4
// describe. Transcendental==2 forces every transcendental op to be treated
// as unsupported regardless of the profile (spec.md §6).
func (c *Config) Descriptor(nameToALU map[string]uop.ALUOp) *Descriptor {
	d := &Descriptor{SupportsFloat4: c.SupportsFloat4, CodeForOp: map[uop.ALUOp]bool{}}
	if c.Transcendental != 2 {
		for _, name := range c.NativeOps {
			if op, ok := nameToALU[name]; ok {
				d.CodeForOp[op] = true
			}
		}
	}
	return d
}
