package condition

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/watzon/relay/internal/hook"
)

// CELChecker evaluates custom conditions as CEL expressions. The
// condition's parameter is the expression; it sees the hook's
// variables, the execution environment, the trigger payload, and the
// working directory. Compiled programs are cached per expression.
type CELChecker struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewCELChecker() (*CELChecker, error) {
	env, err := cel.NewEnv(
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("env", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("trigger", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("workdir", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	return &CELChecker{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

func (c *CELChecker) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, ok := c.programs[expr]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling expression: %w", issues.Err())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("creating program: %w", err)
	}

	c.mu.Lock()
	c.programs[expr] = prg
	c.mu.Unlock()
	return prg, nil
}

func (c *CELChecker) Check(ctx context.Context, cond *hook.Condition, ec *hook.ExecutionContext) (bool, error) {
	if cond.Parameter == "" {
		return true, nil
	}

	prg, err := c.program(cond.Parameter)
	if err != nil {
		return false, err
	}

	trigger := map[string]string{}
	if ec.Trigger != nil {
		trigger["type"] = string(ec.Trigger.Type)
		trigger["path"] = ec.Trigger.Path
		trigger["event"] = ec.Trigger.Event
		trigger["command"] = ec.Trigger.Command
	}

	vars := ec.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	env := ec.Environment
	if env == nil {
		env = map[string]string{}
	}

	result, _, err := prg.Eval(map[string]any{
		"vars":    vars,
		"env":     env,
		"trigger": trigger,
		"workdir": ec.WorkingDir,
	})
	if err != nil {
		return false, fmt.Errorf("evaluating expression: %w", err)
	}

	pass, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean")
	}
	return pass, nil
}
