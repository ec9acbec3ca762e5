package flux

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"flux-exporter/internal/model"
)

// CommandRunner executes a command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &QueryError{Op: strings.Join(args, " "), Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.Bytes(), nil
}

// CLIClient queries the scheduler through the flux command line tool.
type CLIClient struct {
	command string
	runner  CommandRunner
}

var (
	listJobsArgs = []string{"jobs", "--all", "--no-header", "--format={id} {state}"}
	getRankArgs  = []string{"getattr", "rank"}
)

func NewCLIClient(command string, runner CommandRunner) *CLIClient {
	if command == "" {
		command = "flux"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &CLIClient{command: command, runner: runner}
}

func (c *CLIClient) ListJobs(ctx context.Context) ([]model.JobSnapshot, error) {
	out, err := c.runner.Run(ctx, c.command, listJobsArgs...)
	if err != nil {
		return nil, wrapQuery("jobs", err)
	}
	jobs, err := parseJobList(out)
	if err != nil {
		return nil, &QueryError{Op: "jobs", Err: err}
	}
	return jobs, nil
}

func (c *CLIClient) HighestRank(ctx context.Context) (int, error) {
	out, err := c.runner.Run(ctx, c.command, getRankArgs...)
	if err != nil {
		return 0, wrapQuery("getattr rank", err)
	}
	raw := strings.TrimSpace(string(out))
	if raw == "" {
		return -1, nil
	}
	rank, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &QueryError{Op: "getattr rank", Err: fmt.Errorf("parse rank %q: %w", raw, err)}
	}
	return rank, nil
}

// parseJobList reads "<id> <state>" lines. Blank lines are skipped; a line
// without a state column is a format error.
func parseJobList(out []byte) ([]model.JobSnapshot, error) {
	jobs := make([]model.JobSnapshot, 0)
	sc := bufio.NewScanner(bytes.NewReader(out))
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected id and state, got %q", line, sc.Text())
		}
		jobs = append(jobs, model.JobSnapshot{ID: fields[0], StateName: NormalizeState(fields[1])})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan job list: %w", err)
	}
	return jobs, nil
}

func wrapQuery(op string, err error) error {
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Op: op, Err: err}
}
