// Package config loads the settings of the wireflow command from config files
// and command line flags. Files are merged in order and flags set on the
// command line override them.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"

	"github.com/tarungka/wireflow/engine"
	"github.com/tarungka/wireflow/internal/logger"
	"github.com/tarungka/wireflow/sinks"
	"github.com/tarungka/wireflow/sources"
)

// ErrUnsupportedFormat is returned for config files that are neither yaml nor json.
var ErrUnsupportedFormat = errors.New("unsupported config file extension")

// ErrHelp is returned when usage was requested with -h or --help.
var ErrHelp = flag.ErrHelp

// Settings is everything the wireflow command needs for one run.
type Settings struct {
	Engine engine.Config        `koanf:"engine"`
	Source sources.SourceConfig `koanf:"source"`
	Sink   sinks.SinkConfig     `koanf:"sink"`

	// StatusAddr serves /health and /status when set.
	StatusAddr  string `koanf:"status_addr"`
	LogLevel    string `koanf:"log_level"`
	LogFile     string `koanf:"log_file"`
	Development bool   `koanf:"development"`

	Version bool `koanf:"-"`
}

// flagKeys maps flag names to their place in the config tree.
var flagKeys = map[string]string{
	"threads":       "engine.threads",
	"process":       "engine.process",
	"processes":     "engine.processes",
	"addresses":     "engine.addresses",
	"poll-interval": "engine.poll_interval",
	"status-addr":   "status_addr",
	"log-level":     "log_level",
	"log-file":      "log_file",
	"development":   "development",
}

func newFlagSet(usage io.Writer) *flag.FlagSet {
	f := flag.NewFlagSet("wireflow", flag.ContinueOnError)
	f.SetOutput(usage)
	f.Usage = func() {
		fmt.Fprintf(usage, "Usage of wireflow:\n%s", f.FlagUsages())
	}

	d := engine.DefaultConfig()
	f.StringSlice("config", nil, "path to one or more config files (will be merged in order)")
	f.IntP("threads", "w", d.Threads, "worker threads per process")
	f.IntP("process", "p", 0, "index of this process")
	f.IntP("processes", "n", 0, "number of processes; 0 runs in shared memory only")
	f.StringSlice("addresses", nil, "host:port of every process, in process order")
	f.Duration("poll-interval", d.PollInterval, "how often the run checks for completion")
	f.String("status-addr", "", "address to serve /health and /status on")
	f.String("log-level", "info", "log level")
	f.String("log-file", "", "also write logs to this file")
	f.Bool("development", false, "human readable logs")
	f.String("input", "", "read lines from this file instead of the configured source")
	f.String("output", "", "write results to this file instead of the configured sink")
	f.Bool("version", false, "show current version of the build")
	return f
}

// Load parses args and merges the config files they name.
func Load(args []string) (Settings, error) {
	return load(args, os.Stderr)
}

func load(args []string, usage io.Writer) (Settings, error) {
	log := logger.GetLogger("config")

	f := newFlagSet(usage)
	if err := f.Parse(args); err != nil {
		return Settings{}, err
	}

	ko := koanf.New(".")
	configs, _ := f.GetStringSlice("config")
	for _, path := range configs {
		log.Debug().Msgf("Reading config from %s", path)
		parser, err := parserFor(path)
		if err != nil {
			return Settings{}, err
		}
		if err := ko.Load(file.Provider(path), parser); err != nil {
			return Settings{}, fmt.Errorf("error reading config %s: %w", path, err)
		}
	}

	err := ko.Load(posflag.ProviderWithFlag(f, ".", ko, func(fl *flag.Flag) (string, interface{}) {
		key, ok := flagKeys[fl.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(f, fl)
	}), nil)
	if err != nil {
		return Settings{}, fmt.Errorf("error reading flag config: %w", err)
	}
	log.Trace().Msgf("The config is: %v", ko.All())

	var s Settings
	if err := ko.Unmarshal("", &s); err != nil {
		return Settings{}, fmt.Errorf("error decoding config: %w", err)
	}
	s.Version, _ = f.GetBool("version")

	if in, _ := f.GetString("input"); in != "" {
		s.Source = sources.SourceConfig{
			Name:           "input",
			ConnectionType: "file",
			Config:         map[string]string{"file_path": in},
		}
	}
	if out, _ := f.GetString("output"); out != "" {
		s.Sink = sinks.SinkConfig{
			Name:           "output",
			ConnectionType: "file",
			Config:         map[string]string{"file_path": out},
		}
	}
	return s, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.TrimPrefix(filepath.Ext(path), ".") {
	case "yaml", "yml":
		return yaml.Parser(), nil
	case "json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
