package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/domain/scene"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
)

const defaultEvalTimeout = 2 * time.Second

var (
	ErrEvalTimeout = errors.New("module evaluation timed out")
	ErrScriptScene = errors.New("script scene failed")
)

// Runtime is the shared script realm page modules run in. Modules see a
// console and a shell object through which they register scenes.
type Runtime struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	timeout time.Duration
	scenes  *scene.Registry
	log     *logging.Logger
}

// NewRuntime creates a realm whose shell.registerScene writes to scenes.
func NewRuntime(timeout time.Duration, scenes *scene.Registry, log *logging.Logger) (*Runtime, error) {
	if timeout <= 0 {
		timeout = defaultEvalTimeout
	}
	r := &Runtime{
		vm:      goja.New(),
		timeout: timeout,
		scenes:  scenes,
		log:     log.Named("modules"),
	}
	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		if err := console.Set(level, r.consoleFunc(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}

	shell := r.vm.NewObject()
	if err := shell.Set("registerScene", r.registerScene); err != nil {
		return err
	}
	return r.vm.Set("shell", shell)
}

func (r *Runtime) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")
		switch level {
		case "warn":
			r.log.Warn(msg)
		case "error":
			r.log.Error(msg)
		default:
			r.log.Info(msg)
		}
		return goja.Undefined()
	}
}

// registerScene is shell.registerScene(id, {mount, resize, unmount})
func (r *Runtime) registerScene(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).String()
	def := call.Argument(1)
	if id == "" || goja.IsUndefined(def) || goja.IsNull(def) {
		panic(r.vm.NewTypeError("registerScene(id, definition) requires both arguments"))
	}
	obj := def.ToObject(r.vm)
	mount, ok := goja.AssertFunction(obj.Get("mount"))
	if !ok {
		panic(r.vm.NewTypeError("scene %s: mount must be a function", id))
	}
	resize, _ := goja.AssertFunction(obj.Get("resize"))
	unmount, _ := goja.AssertFunction(obj.Get("unmount"))

	err := r.scenes.Register(id, func() scene.Mounter {
		return &scriptScene{rt: r, id: id, this: obj, mount: mount, resize: resize, unmount: unmount}
	})
	if err != nil {
		panic(r.vm.NewTypeError("%s", err.Error()))
	}
	r.log.Debug("scene registered by module", zap.String("scene", id))
	return goja.Undefined()
}

// Run evaluates src as a classic script named name.
func (r *Runtime) Run(ctx context.Context, name, src string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stop := r.guard(ctx)
	_, err := r.vm.RunScript(name, src)
	stop()
	return r.wrap(name, err)
}

// call invokes a script function under the realm lock and timeout
func (r *Runtime) call(ctx context.Context, name string, fn goja.Callable, this goja.Value, args ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := make([]goja.Value, len(args))
	for i, a := range args {
		values[i] = r.vm.ToValue(a)
	}
	stop := r.guard(ctx)
	_, err := fn(this, values...)
	stop()
	return r.wrap(name, err)
}

// guard interrupts the VM when the timeout or ctx fires. The returned stop
// must be called before the lock is released.
func (r *Runtime) guard(ctx context.Context) func() {
	done := make(chan struct{})
	exited := make(chan struct{})
	timer := time.NewTimer(r.timeout)
	go func() {
		defer close(exited)
		select {
		case <-timer.C:
			r.vm.Interrupt(ErrEvalTimeout)
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
		timer.Stop()
		r.vm.ClearInterrupt()
	}
}

func (r *Runtime) wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("%s: %w", name, cause)
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}

// scriptScene adapts a script scene definition to the scene hooks. Absent
// optional hooks are no-ops.
type scriptScene struct {
	rt      *Runtime
	id      string
	this    *goja.Object
	mount   goja.Callable
	resize  goja.Callable
	unmount goja.Callable
}

func (s *scriptScene) Mount(ctx context.Context, mc scene.MountContext) error {
	host := map[string]interface{}{
		"windowId": mc.Config.ID,
		"sceneId":  s.id,
		"title":    mc.Config.Title,
	}
	host["setCanvasAttr"] = func(name, value string) {
		if mc.Canvas == nil {
			return
		}
		mc.Write(func() { dom.SetAttr(mc.Canvas, name, value) })
	}
	if err := s.rt.call(ctx, s.id+".mount", s.mount, s.this, host); err != nil {
		return fmt.Errorf("%w: %w", ErrScriptScene, err)
	}
	return nil
}

func (s *scriptScene) Resize(width, height float64) {
	if s.resize == nil {
		return
	}
	if err := s.rt.call(context.Background(), s.id+".resize", s.resize, s.this, width, height); err != nil {
		s.rt.log.Warn("scene resize failed", zap.String("scene", s.id), zap.Error(err))
	}
}

func (s *scriptScene) Unmount() error {
	if s.unmount == nil {
		return nil
	}
	if err := s.rt.call(context.Background(), s.id+".unmount", s.unmount, s.this); err != nil {
		return fmt.Errorf("%w: %w", ErrScriptScene, err)
	}
	return nil
}
