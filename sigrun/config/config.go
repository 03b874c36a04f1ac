// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides basic infrastructure to set configuration settings
// for sigrun. Each setting that can be changed from the command line must
// have a field in Config with a `flag` tag; settings that may also come from
// the TOML configuration file carry a `toml` tag.
package config

import (
	"flag"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"gvisor.dev/sigkern/pkg/hostarch"
	"gvisor.dev/sigkern/pkg/log"
	"gvisor.dev/sigkern/pkg/sentry/kernel"
)

// DefaultSigreturnTrampoline is the default user address of the code that
// invokes rt_sigreturn for handlers installed without SA_RESTORER.
const DefaultSigreturnTrampoline = 0x1000

// backoffInitial is the first wait of the backoff scheduler.
const backoffInitial = 10 * time.Microsecond

// Config holds configuration that is not part of a scenario.
type Config struct {
	// ConfigFile is the TOML file the remaining settings were loaded from.
	ConfigFile string `flag:"config" toml:"-"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// LogFormat is the log format: text, json or logrus.
	LogFormat string `flag:"log-format" toml:"log_format"`

	// LogFile is the path debug logs are written to. %TIMESTAMP% and
	// %COMMAND% are expanded. Empty means stderr.
	LogFile string `flag:"log" toml:"log"`

	// Strace indicates that every emulated syscall should be logged.
	Strace bool `flag:"strace" toml:"strace"`

	// Scheduler selects how blocked threads wait.
	Scheduler SchedulerType `flag:"scheduler" toml:"scheduler"`

	// BackoffMax caps the wait between wakeup checks of the backoff
	// scheduler.
	BackoffMax time.Duration `flag:"backoff-max" toml:"backoff_max"`

	// SigreturnTrampoline is the return address given to handlers installed
	// without SA_RESTORER.
	SigreturnTrampoline Address `flag:"sigreturn-trampoline" toml:"sigreturn_trampoline"`
}

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "path to a TOML configuration file. Flags given on the command line override its settings.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log-format", "text", "log format: text (default), json, or logrus.")
	flagSet.String("log", "", "file path where debug logs are written, default is stderr. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.Bool("strace", false, "enable strace of emulated syscalls.")

	// Flags that control kernel behavior.
	flagSet.Var(schedulerTypePtr(SchedulerYield), "scheduler", "how threads blocked in rt_sigsuspend wait: yield (default), backoff.")
	flagSet.Duration("backoff-max", 10*time.Millisecond, "maximum wait between wakeup checks when --scheduler=backoff.")
	flagSet.Var(addressPtr(DefaultSigreturnTrampoline), "sigreturn-trampoline", "user address that handlers without SA_RESTORER return to.")
}

// NewFromFlags creates a new Config with values coming from the given flag
// set. If --config names a file, its settings are applied first and only
// flags explicitly set on the command line override them.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	fields := flagFields(conf)

	// Start from flag defaults or values.
	flagSet.VisitAll(func(fl *flag.Flag) {
		if f, ok := fields[fl.Name]; ok {
			f.Set(reflect.ValueOf(fl.Value.(flag.Getter).Get()))
		}
	})
	for name := range fields {
		if flagSet.Lookup(name) == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
	}

	if conf.ConfigFile != "" {
		if _, err := toml.DecodeFile(conf.ConfigFile, conf); err != nil {
			return nil, fmt.Errorf("loading config file %q: %w", conf.ConfigFile, err)
		}
		flagSet.Visit(func(fl *flag.Flag) {
			if f, ok := fields[fl.Name]; ok {
				f.Set(reflect.ValueOf(fl.Value.(flag.Getter).Get()))
			}
		})
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// flagFields maps flag names to the corresponding fields of conf.
func flagFields(conf *Config) map[string]reflect.Value {
	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	fields := make(map[string]reflect.Value, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fields[name] = obj.Field(i)
	}
	return fields
}

func (c *Config) validate() error {
	if _, err := log.EmitterForFormat(&log.Writer{}, c.LogFormat); err != nil {
		return err
	}
	if c.Scheduler == SchedulerBackoff && c.BackoffMax <= 0 {
		return fmt.Errorf("--backoff-max must be positive with --scheduler=backoff, got %v", c.BackoffMax)
	}
	if c.SigreturnTrampoline == 0 {
		return fmt.Errorf("--sigreturn-trampoline must not be zero")
	}
	return nil
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		log.Infof("Config.%s: %v", st.Field(i).Name, obj.Field(i).Interface())
	}
}

// KernelOptions returns the kernel options described by c.
func (c *Config) KernelOptions() kernel.Options {
	opts := kernel.Options{
		SigreturnTrampoline: hostarch.Addr(c.SigreturnTrampoline),
		Strace:              c.Strace,
	}
	switch c.Scheduler {
	case SchedulerBackoff:
		initial := backoffInitial
		if initial > c.BackoffMax {
			initial = c.BackoffMax
		}
		opts.Scheduler = kernel.NewBackoffScheduler(initial, c.BackoffMax)
	default:
		opts.Scheduler = kernel.GoScheduler{}
	}
	return opts
}

// SchedulerType selects a kernel.Scheduler.
type SchedulerType int

const (
	// SchedulerYield yields the goroutine between wakeup checks.
	SchedulerYield SchedulerType = iota

	// SchedulerBackoff sleeps with exponential backoff between wakeup
	// checks.
	SchedulerBackoff
)

func schedulerTypePtr(v SchedulerType) *SchedulerType {
	return &v
}

// Set implements flag.Value.
func (s *SchedulerType) Set(v string) error {
	switch v {
	case "yield":
		*s = SchedulerYield
	case "backoff":
		*s = SchedulerBackoff
	default:
		return fmt.Errorf("invalid scheduler type %q", v)
	}
	return nil
}

// Get implements flag.Getter.
func (s *SchedulerType) Get() any {
	return *s
}

// String implements flag.Value.
func (s SchedulerType) String() string {
	switch s {
	case SchedulerYield:
		return "yield"
	case SchedulerBackoff:
		return "backoff"
	}
	panic(fmt.Sprintf("Invalid scheduler type %d", s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SchedulerType) UnmarshalText(text []byte) error {
	return s.Set(string(text))
}

// Address is a user address that may be written in any base accepted by
// strconv.ParseUint, e.g. 0x1000.
type Address uint64

func addressPtr(v Address) *Address {
	return &v
}

// Set implements flag.Value.
func (a *Address) Set(v string) error {
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", v, err)
	}
	*a = Address(n)
	return nil
}

// Get implements flag.Getter.
func (a *Address) Get() any {
	return *a
}

// String implements flag.Value.
func (a Address) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	return a.Set(string(text))
}
