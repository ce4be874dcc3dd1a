package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/devshell/internal/shell"
)

var errNodeUsage = errors.New("only 'node -e <code>' is supported in the simulated shell")

func runNode(ctx context.Context, env *Env, args []string) error {
	if len(args) < 2 || (args[0] != "-e" && args[0] != "--eval") {
		return errNodeUsage
	}
	return evalJS(ctx, env, strings.Join(args[1:], " "), false)
}

func runJS(ctx context.Context, env *Env, args []string) error {
	if len(args) == 0 {
		return errMissingOperand
	}
	return evalJS(ctx, env, strings.Join(args, " "), true)
}

// evalJS runs code in a fresh VM, streaming console output. The VM is
// interrupted when ctx is cancelled.
func evalJS(ctx context.Context, env *Env, code string, printResult bool) error {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "debug"} {
		_ = console.Set(level, consoleFunc(env, false))
	}
	for _, level := range []string{"warn", "error"} {
		_ = console.Set(level, consoleFunc(env, true))
	}
	vm.Set("console", console)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("interrupted")
		case <-done:
		}
	}()

	val, err := vm.RunString(code)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return ctx.Err()
		}
		var exception *goja.Exception
		if errors.As(err, &exception) {
			return errors.New(exception.Value().String())
		}
		return err
	}

	if printResult && val != nil && !goja.IsUndefined(val) {
		env.Println(val.String())
	}
	return nil
}

func consoleFunc(env *Env, stderr bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")
		if stderr {
			msg = shell.Red(msg)
		}
		env.Println(msg)
		return goja.Undefined()
	}
}
