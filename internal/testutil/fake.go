package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/device"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/inventory"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Canned commit-check outputs.
const (
	CommitCheckOK       = "Validation succeeded; configuration staged"
	CommitCheckNoChange = "INFO: no configuration changes were made"
	CommitOK            = "Commit complete"
)

// FakeShell is a scripted device.Shell. Responses map commands to canned
// output; unscripted commands return an empty block, which reads as
// success.
type FakeShell struct {
	Device    string
	Responses map[string]string

	mu     sync.Mutex
	Sent   []string
	Closed bool
}

// Send implements device.Shell.
func (f *FakeShell) Send(cmd string, readUntilPrompt bool, timeout time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, cmd)
	return f.Responses[cmd], nil
}

// Close implements device.Shell.
func (f *FakeShell) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// SentCommands returns a copy of everything sent so far.
func (f *FakeShell) SentCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Sent))
	copy(out, f.Sent)
	return out
}

// FakeFleet hands out FakeShells per device and records every shell it
// opened, in order.
type FakeFleet struct {
	mu        sync.Mutex
	Responses map[string]map[string]string // device -> command -> output
	DialErr   map[string]error             // device -> error on dial
	Opened    []*FakeShell
}

// NewFakeFleet creates an empty fleet script.
func NewFakeFleet() *FakeFleet {
	return &FakeFleet{
		Responses: make(map[string]map[string]string),
		DialErr:   make(map[string]error),
	}
}

// Script sets the canned output for one command on one device.
func (f *FakeFleet) Script(deviceName, command, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Responses[deviceName] == nil {
		f.Responses[deviceName] = make(map[string]string)
	}
	f.Responses[deviceName][command] = output
}

// Dial is a device.DialFunc.
func (f *FakeFleet) Dial(ctx context.Context, info inventory.DeviceInfo, connectTimeout time.Duration) (device.Shell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.DialErr[info.Name]; err != nil {
		return nil, util.NewDeviceError(util.ErrConnectivity, info.Name, "connect", "", err.Error())
	}
	shell := &FakeShell{Device: info.Name, Responses: f.Responses[info.Name]}
	f.Opened = append(f.Opened, shell)
	return shell, nil
}

// ShellsFor returns the shells opened on one device, in open order.
func (f *FakeFleet) ShellsFor(deviceName string) []*FakeShell {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*FakeShell
	for _, s := range f.Opened {
		if s.Device == deviceName {
			out = append(out, s)
		}
	}
	return out
}
