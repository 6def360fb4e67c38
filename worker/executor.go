package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/jobpack/workflow"
	"gopkg.in/yaml.v3"
)

// Environment variables set for each command run by CommandExecutor.
const (
	WorkItemIDEnvVar = "JOBPACK_WORK_ITEM_ID"
	NodeListEnvVar   = "JOBPACK_NODE_LIST"
	NProcsEnvVar     = "JOBPACK_NPROCS"
)

// CommandExecutor is an Executor that runs an external command for each
// work-item.
//
// The work-item's spec is written to the command's stdin as YAML. If the
// command writes a YAML mapping to stdout it becomes the work-item's output,
// any other non-empty stdout is stored under the "stdout" key.
//
// The shared lock is held while the command is started, so that workers do not
// compete for process resources at the same time.
type CommandExecutor struct {
	// Command is the program and its arguments.
	Command []string

	// Stderr receives the command's stderr. If it is nil, os.Stderr is used.
	Stderr io.Writer
}

// Execute runs the command for it.
func (e *CommandExecutor) Execute(
	ctx context.Context,
	rt Runtime,
	it workflow.WorkItem,
) (map[string]interface{}, error) {
	if len(e.Command) == 0 {
		return nil, errors.New("no command is configured")
	}

	spec, err := yaml.Marshal(it.Spec)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal work-item spec: %w", err)
	}

	var stdout bytes.Buffer

	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	cmd.Stdin = bytes.NewReader(spec)
	cmd.Stdout = &stdout
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Env = append(
		os.Environ(),
		WorkItemIDEnvVar+"="+string(it.ID),
		NodeListEnvVar+"="+strings.Join(rt.Config.Share.Nodes, ","),
		NProcsEnvVar+"="+strconv.Itoa(rt.Config.Share.Processors),
	)

	if err := e.start(ctx, rt, cmd); err != nil {
		return nil, err
	}

	waitErr := cmd.Wait()
	output := parseOutput(stdout.Bytes())

	if waitErr != nil {
		return output, fmt.Errorf("command failed: %w", waitErr)
	}

	return output, nil
}

func (e *CommandExecutor) start(ctx context.Context, rt Runtime, cmd *exec.Cmd) error {
	if rt.Lock != nil {
		if err := rt.Lock.Lock(ctx); err != nil {
			return err
		}
		defer func() {
			if err := rt.Lock.Unlock(); err != nil {
				logging.Log(rt.Logger, "unable to release the shared lock: %s", err)
			}
		}()
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("unable to start command: %w", err)
	}

	return nil
}

func parseOutput(data []byte) map[string]interface{} {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var output map[string]interface{}
	if err := yaml.Unmarshal(data, &output); err == nil && output != nil {
		return workflow.PlainMap(output)
	}

	return map[string]interface{}{
		"stdout": string(data),
	}
}
