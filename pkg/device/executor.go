package device

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/inventory"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Mode selects what the executor does with a command list.
type Mode string

const (
	// ModeQuery runs read-only show commands.
	ModeQuery Mode = "query"
	// ModeDryRun renders the commands without any device interaction.
	ModeDryRun Mode = "dry-run"
	// ModeCommitCheck applies in config mode, validates with "commit
	// check", and leaves without committing.
	ModeCommitCheck Mode = "commit-check"
	// ModeCommit applies in config mode and commits with "commit and-exit".
	ModeCommit Mode = "commit"
)

// Status is the per-device outcome.
type Status string

const (
	StatusOK          Status = "ok"
	StatusWouldChange Status = "would_change"
	StatusNoChange    Status = "no_change" // drift signal, not a success
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

// CommandOutput pairs one sent command with its captured output.
type CommandOutput struct {
	Command string
	Output  string
}

// Result is the outcome of one device task.
type Result struct {
	Device    string
	Mode      Mode
	Status    Status
	Outputs   []CommandOutput
	Err       error
	Cancelled bool
}

// Config bounds the executor's timing and parallelism.
type Config struct {
	Parallelism    int
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Parallelism <= 0 {
		c.Parallelism = 10
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 30 * time.Second
	}
}

// Executor runs command plans against the fleet: parallel across devices,
// strictly serialized per device. Sessions are opened per operation and
// never pooled.
type Executor struct {
	inv  *inventory.Inventory
	cfg  Config
	dial DialFunc

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an executor over the inventory.
func New(inv *inventory.Inventory, cfg Config) *Executor {
	cfg.applyDefaults()
	return &Executor{
		inv:   inv,
		cfg:   cfg,
		dial:  Dial,
		locks: make(map[string]*sync.Mutex),
	}
}

// SetDialFunc replaces the SSH dialer. Used by tests.
func (e *Executor) SetDialFunc(dial DialFunc) {
	e.dial = dial
}

// HasDevice reports whether the inventory knows the named device, letting
// planners reject a bad target before any connection is attempted.
func (e *Executor) HasDevice(name string) bool {
	_, ok := e.inv.Get(name)
	return ok
}

// deviceLock returns the mutex serializing operations on one device.
func (e *Executor) deviceLock(name string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[name]
	if !ok {
		l = &sync.Mutex{}
		e.locks[name] = l
	}
	return l
}

// Execute runs one command list against one device in the given mode.
// The returned Result is never nil; failures are carried in Result.Err
// with a normalized error kind.
func (e *Executor) Execute(ctx context.Context, device string, commands []string, mode Mode) *Result {
	res := &Result{Device: device, Mode: mode, Status: StatusOK}

	if mode == ModeDryRun {
		for _, cmd := range commands {
			res.Outputs = append(res.Outputs, CommandOutput{Command: cmd})
		}
		return res
	}

	lock := e.deviceLock(device)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return cancelled(res)
	}

	info, ok := e.inv.Get(device)
	if !ok {
		res.Status = StatusError
		res.Err = util.NewDeviceError(util.ErrValidation, device, "plan", "", "device not in inventory")
		return res
	}

	shell, err := e.dial(ctx, info, e.cfg.ConnectTimeout)
	if err != nil {
		res.Status = StatusError
		res.Err = err
		return res
	}
	defer shell.Close()

	switch mode {
	case ModeQuery:
		e.runQuery(ctx, shell, commands, res)
	case ModeCommitCheck:
		e.runConfig(ctx, shell, commands, res, false)
	case ModeCommit:
		e.runConfig(ctx, shell, commands, res, true)
	}
	return res
}

// Plan is a per-device ordered command list.
type Plan map[string][]string

// Devices returns the plan's device names, sorted.
func (p Plan) Devices() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecuteParallel fans a plan out across devices with one worker per
// device, bounded by the configured parallelism. Per-device failures are
// independent; the result map always contains one entry per plan device.
// Ordering across devices is unspecified; within a device, command order
// is preserved exactly as supplied.
func (e *Executor) ExecuteParallel(ctx context.Context, plan Plan, mode Mode) map[string]*Result {
	results := make(map[string]*Result, len(plan))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Parallelism)

	for _, device := range plan.Devices() {
		device := device
		commands := plan[device]
		g.Go(func() error {
			res := e.Execute(ctx, device, commands, mode)
			mu.Lock()
			results[device] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

func (e *Executor) runQuery(ctx context.Context, shell Shell, commands []string, res *Result) {
	log := util.WithDevice(res.Device)
	for _, cmd := range commands {
		if ctx.Err() != nil {
			cancelled(res)
			return
		}
		out, err := shell.Send(cmd, true, e.cfg.CommandTimeout)
		res.Outputs = append(res.Outputs, CommandOutput{Command: cmd, Output: out})
		if err != nil {
			res.Status = StatusError
			res.Err = err
			return
		}
		if line, bad := DetectError(out); bad {
			res.Status = StatusError
			res.Err = util.NewDeviceError(util.ErrProtocol, res.Device, "query", cmd, line)
			return
		}
		log.Debugf("query %q: %d bytes", cmd, len(out))
	}
}

// runConfig implements the two write modes. It enters configuration mode,
// applies the commands, then validates or commits. On any device-side
// error the session is never left in configuration mode: a best-effort
// rollback and exit run before the shell closes.
func (e *Executor) runConfig(ctx context.Context, shell Shell, commands []string, res *Result, commit bool) {
	phase := "commit-check"
	if commit {
		phase = "commit"
	}
	log := util.WithDevice(res.Device).WithField("phase", phase)

	abort := func(err error) {
		res.Status = StatusError
		res.Err = err
		shell.Send("rollback", true, e.cfg.CommandTimeout)
		shell.Send("exit", true, e.cfg.CommandTimeout)
	}

	if out, err := shell.Send("configure", true, e.cfgTimeout()); err != nil {
		res.Status = StatusError
		res.Err = err
		return
	} else if line, bad := DetectError(out); bad {
		res.Status = StatusError
		res.Err = util.NewDeviceError(util.ErrProtocol, res.Device, phase, "configure", line)
		return
	}

	for _, cmd := range commands {
		if ctx.Err() != nil {
			cancelled(res)
			shell.Send("rollback", true, e.cfg.CommandTimeout)
			shell.Send("exit", true, e.cfg.CommandTimeout)
			return
		}
		out, err := shell.Send(cmd, true, e.cfg.CommandTimeout)
		res.Outputs = append(res.Outputs, CommandOutput{Command: cmd, Output: out})
		if err != nil {
			abort(err)
			return
		}
		if line, bad := DetectError(out); bad {
			abort(util.NewDeviceError(util.ErrProtocol, res.Device, phase, cmd, line))
			return
		}
	}

	if !commit {
		out, err := shell.Send("commit check", true, e.cfg.CommandTimeout)
		res.Outputs = append(res.Outputs, CommandOutput{Command: "commit check", Output: out})
		if err != nil {
			abort(err)
			return
		}
		if line, bad := DetectError(out); bad {
			abort(util.NewDeviceError(util.ErrProtocol, res.Device, phase, "commit check", line))
			return
		}
		if IsNoChange(out) {
			res.Status = StatusNoChange
			log.Info("commit check reported no configuration changes")
		} else {
			res.Status = StatusWouldChange
		}
		shell.Send("exit", true, e.cfg.CommandTimeout)
		return
	}

	out, err := shell.Send("commit and-exit", true, e.cfg.CommandTimeout)
	res.Outputs = append(res.Outputs, CommandOutput{Command: "commit and-exit", Output: out})
	if err != nil {
		abort(err)
		return
	}
	if line, bad := DetectError(out); bad {
		abort(util.NewDeviceError(util.ErrProtocol, res.Device, phase, "commit and-exit", line))
		return
	}
	log.Infof("committed %d commands", len(commands))
}

// cfgTimeout allows extra grace for the configuration-mode transition.
func (e *Executor) cfgTimeout() time.Duration {
	return e.cfg.CommandTimeout + 5*time.Second
}

func cancelled(res *Result) *Result {
	res.Status = StatusCancelled
	res.Cancelled = true
	res.Err = util.NewDeviceError(util.ErrCancelled, res.Device, string(res.Mode), "", "context cancelled")
	return res
}
