package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dogmatiq/jobpack/allocation"
	"github.com/dogmatiq/jobpack/sharedstate"
	"github.com/dogmatiq/jobpack/workflow"
)

// EntryPoint is the name under which the worker entry point is registered
// for re-execution of the current binary.
const EntryPoint = "jobpack-worker"

// ConfigEnvVar is the environment variable that carries a worker's
// configuration.
const ConfigEnvVar = "JOBPACK_WORKER_CONFIG"

// Forever is the value of LoopConfig.Launches that causes a worker to keep
// polling for work-items until it is stopped.
const Forever = -1

// LoopConfig is the configuration of a worker's work loop. It is the same for
// every worker in an orchestration.
type LoopConfig struct {
	// Launches is the number of work-items to execute. Zero means until the
	// store has no more ready work-items. Forever means until stopped.
	Launches int `json:"launches"`

	// Sleep is the time to wait before polling again when the store has no
	// ready work-items. It only applies when Launches is Forever.
	Sleep time.Duration `json:"sleep,omitempty"`

	// Query restricts the work-items that are claimed.
	Query workflow.Query `json:"query,omitempty"`

	// Command is the command executed for each work-item.
	Command []string `json:"command"`

	// StorePackingInfo adds details of the worker to each result.
	StorePackingInfo bool `json:"store_packing_info,omitempty"`
}

// Config is the immutable configuration of a single worker process.
type Config struct {
	// Packed is true if the worker was started by an orchestrator. Workers
	// refuse to run outside of packed mode.
	Packed bool `json:"packed"`

	// Endpoint is the address and secret of the shared state service.
	Endpoint sharedstate.Endpoint `json:"endpoint"`

	// Share is the portion of the allocation assigned to this worker.
	Share allocation.Share `json:"share"`

	// LockFile is the path of the lock file shared by all workers.
	LockFile string `json:"lock_file"`

	// Index is the zero-based position of this worker in the launch order.
	Index int `json:"index"`

	// Loop is the configuration of the work loop.
	Loop LoopConfig `json:"loop"`

	// Debug enables debug logging in the worker.
	Debug bool `json:"debug,omitempty"`
}

// Validate returns an error if c can not be used to start a worker.
func (c Config) Validate() error {
	if !c.Packed {
		return errors.New("worker must be started in packed mode")
	}

	if c.Endpoint.Address == "" {
		return errors.New("worker configuration does not specify the shared state endpoint")
	}

	if c.LockFile == "" {
		return errors.New("worker configuration does not specify a lock file")
	}

	if c.Loop.Launches < Forever {
		return fmt.Errorf("worker configuration specifies an invalid number of launches (%d)", c.Loop.Launches)
	}

	return nil
}

// Environ returns the environment variable that passes c to a worker process,
// in the "key=value" form used by os/exec.
func (c Config) Environ() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("unable to marshal worker configuration: %w", err)
	}

	return ConfigEnvVar + "=" + string(data), nil
}

// ConfigFromEnv returns the configuration passed to the current process.
func ConfigFromEnv() (Config, error) {
	data, ok := os.LookupEnv(ConfigEnvVar)
	if !ok {
		return Config{}, fmt.Errorf("%s is not set, workers can only be started by the orchestrator", ConfigEnvVar)
	}

	var c Config
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal worker configuration: %w", err)
	}

	return c, nil
}
