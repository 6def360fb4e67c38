// Package config loads the orchestrator's configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dogmatiq/jobpack"
	"github.com/dogmatiq/jobpack/worker"
	"gopkg.in/yaml.v3"
)

// FileEnvVar is the environment variable that names the configuration file.
const FileEnvVar = "JOBPACK_CONFIG_FILE"

// FileName is the name of the configuration file searched for in the current
// directory and in the ".jobpack" directory of the user's home directory.
const FileName = "jobpack.yaml"

// File is the content of a configuration file.
type File struct {
	SubJobs              int                    `yaml:"sub_jobs"`
	Nodes                []string               `yaml:"nodes"`
	NodeFile             string                 `yaml:"node_file"`
	ProcessorsPerNode    int                    `yaml:"processors_per_node"`
	Serial               bool                   `yaml:"serial"`
	Store                string                 `yaml:"store"`
	PingInterval         Duration               `yaml:"ping_interval"`
	MonitorFailurePolicy string                 `yaml:"monitor_failure_policy"`
	Launches             int                    `yaml:"launches"`
	Sleep                Duration               `yaml:"sleep"`
	Query                map[string]interface{} `yaml:"query"`
	Command              []string               `yaml:"command"`
	StorePackingInfo     bool                   `yaml:"store_packing_info"`
	ListenAddress        string                 `yaml:"listen_address"`
	LockDir              string                 `yaml:"lock_dir"`
	Debug                bool                   `yaml:"debug"`
}

// Duration is a time.Duration that is written as a string such as "1h30m".
type Duration time.Duration

// UnmarshalYAML parses the duration from a YAML scalar.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}

	*d = Duration(v)
	return nil
}

// MarshalYAML returns the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Discover returns the path of the configuration file to use.
//
// The file named by FileEnvVar is used if the variable is set, otherwise
// FileName in the current directory, then in ~/.jobpack. It returns false if
// no file is found.
func Discover() (string, bool, error) {
	if p := os.Getenv(FileEnvVar); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", false, fmt.Errorf("unable to use configuration file from %s: %w", FileEnvVar, err)
		}

		return p, true, nil
	}

	candidates := []string{FileName}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".jobpack", FileName))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, err
		}
	}

	return "", false, nil
}

// Load reads the configuration file at path.
//
// Unknown keys are rejected.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}

	var f File

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("unable to parse configuration file %s: %w", path, err)
	}

	return f, nil
}

// Options returns the orchestrator options described by f.
func (f File) Options() ([]jobpack.Option, error) {
	var opts []jobpack.Option

	if f.SubJobs != 0 {
		opts = append(opts, jobpack.WithSubJobs(f.SubJobs))
	}

	nodes := f.Nodes
	if f.NodeFile != "" {
		n, err := ReadNodeFile(f.NodeFile)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n...)
	}

	if len(nodes) != 0 {
		opts = append(opts, jobpack.WithNodeList(nodes...))
	}

	if f.ProcessorsPerNode < 0 {
		return nil, fmt.Errorf("processors_per_node must not be negative")
	}
	opts = append(opts, jobpack.WithProcessorsPerNode(f.ProcessorsPerNode))

	if f.Serial {
		opts = append(opts, jobpack.WithSerialMode())
	}

	if f.Store != "" {
		opts = append(opts, jobpack.WithStoreLocator(f.Store))
	}

	if f.PingInterval < 0 {
		return nil, fmt.Errorf("ping_interval must not be negative")
	}
	opts = append(opts, jobpack.WithPingInterval(time.Duration(f.PingInterval)))

	if f.MonitorFailurePolicy != "" {
		p, err := ParseMonitorFailurePolicy(f.MonitorFailurePolicy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, jobpack.WithMonitorFailurePolicy(p))
	}

	opts = append(opts, jobpack.WithLoop(f.Loop()))

	if f.ListenAddress != "" {
		opts = append(opts, jobpack.WithListenAddress(f.ListenAddress))
	}

	if f.LockDir != "" {
		opts = append(opts, jobpack.WithLockDir(f.LockDir))
	}

	if f.Debug {
		opts = append(opts, jobpack.WithDebugWorkers())
	}

	return opts, nil
}

// Loop returns the worker loop configuration described by f.
func (f File) Loop() worker.LoopConfig {
	return worker.LoopConfig{
		Launches:         f.Launches,
		Sleep:            time.Duration(f.Sleep),
		Query:            f.Query,
		Command:          f.Command,
		StorePackingInfo: f.StorePackingInfo,
	}
}

// ParseMonitorFailurePolicy parses the name of a monitor failure policy,
// either "continue" or "abort".
func ParseMonitorFailurePolicy(s string) (jobpack.MonitorFailurePolicy, error) {
	switch s {
	case "continue":
		return jobpack.ContinueDegraded, nil
	case "abort":
		return jobpack.AbortWorkers, nil
	default:
		return 0, fmt.Errorf("unrecognised monitor failure policy '%s', expected 'continue' or 'abort'", s)
	}
}
