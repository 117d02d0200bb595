// Package cbc solves linear programs with the COIN-OR CBC executable. The
// problem is written as a CPLEX LP file and the primal values are read back
// from the solution file CBC writes.
package cbc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/opt"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
)

// Name identifies the backend in configuration and failures.
const Name = "cbc"

const defaultTolerance = 1e-4

// CBC runs the cbc executable once per solve.
type CBC struct {
	executable string
	timeLimit  float64
	tol        float64
	verbose    bool
	workDir    string
	log        *log.Logger
}

// New returns a CBC backend. An empty Executable resolves "cbc" on PATH.
func New(cfg solver.Config) *CBC {
	executable := cfg.Executable
	if executable == "" {
		executable = "cbc"
	}
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}
	return &CBC{
		executable: executable,
		timeLimit:  cfg.TimeLimit,
		tol:        tol,
		verbose:    cfg.Verbose,
		workDir:    cfg.WorkDir,
		log:        logger.New("CBC"),
	}
}

func (c *CBC) Name() string {
	return Name
}

// Solve writes p to a scratch directory, runs cbc on it and parses the
// solution file.
func (c *CBC) Solve(ctx context.Context, p *opt.Problem) (solver.Solution, error) {
	dir, err := os.MkdirTemp(c.workDir, "cbc-")
	if err != nil {
		return solver.Solution{}, err
	}
	defer os.RemoveAll(dir)

	model := filepath.Join(dir, "model.lp")
	solution := filepath.Join(dir, "model.sol")
	if err := writeModel(model, p); err != nil {
		return solver.Solution{}, err
	}

	cmd := exec.CommandContext(ctx, c.executable, c.args(model, solution)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	c.log.Info("solving", "variables", p.NumVariables(), "constraints", p.NumConstraints())
	runErr := cmd.Run()
	if c.verbose {
		c.log.Print(out.String())
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return solver.Solution{}, solver.Failure(Name, solver.TimeLimit, ctxErr)
	}
	if runErr != nil {
		return solver.Solution{}, solver.Failure(Name, solver.Numerical, fmt.Errorf("%w: %s", runErr, lastLine(out.String())))
	}

	f, err := os.Open(solution)
	if err != nil {
		return solver.Solution{}, solver.Failure(Name, solver.Numerical, fmt.Errorf("no solution file: %w", err))
	}
	defer f.Close()

	sol, err := ReadSolution(f, p)
	if err != nil {
		return solver.Solution{}, err
	}
	if err := p.Feasible(sol.Values, c.tol); err != nil {
		c.log.Warn("solution outside tolerance", "err", err)
	}
	return sol, nil
}

func (c *CBC) args(model, solution string) []string {
	args := []string{model}
	if c.timeLimit > 0 {
		args = append(args, "-sec", strconv.FormatFloat(c.timeLimit, 'f', -1, 64))
	}
	return append(args, "-solve", "-solu", solution)
}

func writeModel(path string, p *opt.Problem) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := opt.WriteLP(f, p, opt.IndexLabels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

// ReadSolution parses a CBC solution file for p. Columns absent from the
// file are zero. A non-optimal status line is returned as a *SolveFailure.
func ReadSolution(r io.Reader, p *opt.Problem) (solver.Solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return solver.Solution{}, err
		}
		return solver.Solution{}, solver.Failure(Name, solver.Numerical, errors.New("empty solution file"))
	}
	header := strings.TrimSpace(sc.Text())
	if status := parseStatus(header); status != solver.Optimal {
		return solver.Solution{}, solver.Failure(Name, status, errors.New(header))
	}

	values := make([]float64, p.NumVariables())
	for sc.Scan() {
		fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(sc.Text()), "**"))
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return solver.Solution{}, fmt.Errorf("malformed solution line %q", sc.Text())
		}
		name, value := fields[1], fields[2]
		if !strings.HasPrefix(name, "x") {
			return solver.Solution{}, fmt.Errorf("unexpected column %s in solution file", name)
		}
		j, err := strconv.Atoi(name[1:])
		if err != nil || j < 0 || j >= len(values) {
			return solver.Solution{}, fmt.Errorf("unexpected column %s in solution file", name)
		}
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return solver.Solution{}, fmt.Errorf("column %s: %w", name, err)
		}
		values[j] = x
	}
	if err := sc.Err(); err != nil {
		return solver.Solution{}, err
	}

	for j, v := range p.Variables() {
		values[j] = math.Min(math.Max(values[j], v.Lower), v.Upper)
	}
	return solver.Solution{Status: solver.Optimal, Values: values, Objective: p.Objective(values)}, nil
}

func parseStatus(header string) solver.Status {
	lower := strings.ToLower(header)
	switch {
	case strings.HasPrefix(lower, "optimal"):
		return solver.Optimal
	case strings.Contains(lower, "infeasible"):
		return solver.Infeasible
	case strings.Contains(lower, "unbounded"):
		return solver.Unbounded
	case strings.HasPrefix(lower, "stopped on time"):
		return solver.TimeLimit
	default:
		return solver.Numerical
	}
}
