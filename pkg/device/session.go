// Package device implements the DNOS device interaction core: one
// interactive SSH shell per device, and an executor that runs command
// plans against the fleet in QUERY, DRY-RUN, COMMIT-CHECK, and COMMIT
// modes with bounded parallelism.
package device

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/inventory"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Shell is one interactive device shell. Sessions are not goroutine-safe;
// the executor serializes access per device and opens one shell per
// logical operation.
type Shell interface {
	// Send writes one command line and captures output. With
	// readUntilPrompt, it drains until the device prompt returns or the
	// timeout elapses; the returned block excludes the echoed command and
	// the prompt itself.
	Send(cmd string, readUntilPrompt bool, timeout time.Duration) (string, error)
	Close() error
}

// DialFunc opens a shell on one device. Swapped for a fake in tests.
type DialFunc func(ctx context.Context, info inventory.DeviceInfo, connectTimeout time.Duration) (Shell, error)

// Session is the SSH implementation of Shell.
type Session struct {
	device string
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	outc   chan string
	excess string // output read past the previous prompt

	closeOnce sync.Once
}

// operational "DNAAS-LEAF-B14#" or configuration "DNAAS-LEAF-B14(cfg)#",
// "DNAAS-LEAF-B14(cfg-if)#" prompts at end of output
var promptRe = regexp.MustCompile(`[A-Za-z0-9._:-]+(\(cfg[^)#]*\))?#$`)

// Dial opens an interactive shell within the connect timeout and drains
// the login banner up to the first prompt. Connection failures come back
// as unambiguous connectivity errors.
func Dial(ctx context.Context, info inventory.DeviceInfo, connectTimeout time.Duration) (Shell, error) {
	config := &ssh.ClientConfig{
		User: info.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(info.Password),
		},
		// Fabric management network — host keys are not verified.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}

	client, err := ssh.Dial("tcp", info.Addr(), config)
	if err != nil {
		return nil, util.NewDeviceError(util.ErrConnectivity, info.Name, "connect", "", err.Error())
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, util.NewDeviceError(util.ErrConnectivity, info.Name, "connect", "", err.Error())
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm", 200, 500, modes); err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewDeviceError(util.ErrConnectivity, info.Name, "connect", "", "pty: "+err.Error())
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewDeviceError(util.ErrConnectivity, info.Name, "connect", "", err.Error())
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewDeviceError(util.ErrConnectivity, info.Name, "connect", "", err.Error())
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewDeviceError(util.ErrConnectivity, info.Name, "connect", "", "shell: "+err.Error())
	}

	s := &Session{
		device: info.Name,
		client: client,
		sess:   sess,
		stdin:  stdin,
		outc:   make(chan string, 16),
	}
	go s.readLoop(stdout)

	// Drain the login banner until the first prompt appears.
	if _, err := s.readUntilPrompt(connectTimeout); err != nil {
		s.Close()
		return nil, util.NewDeviceError(util.ErrConnectivity, info.Name, "connect", "", "no prompt after login")
	}

	util.WithDevice(info.Name).Debug("shell established")
	return s, nil
}

func (s *Session) readLoop(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.outc <- string(buf[:n])
		}
		if err != nil {
			close(s.outc)
			return
		}
	}
}

// Send implements Shell. Back-to-back commands cannot interleave: each
// Send waits for the prompt (or timeout) before returning, and the next
// command is not written until then.
func (s *Session) Send(cmd string, readUntilPrompt bool, timeout time.Duration) (string, error) {
	if _, err := io.WriteString(s.stdin, cmd+"\n"); err != nil {
		return "", util.NewDeviceError(util.ErrConnectivity, s.device, "command", cmd, "write: "+err.Error())
	}

	if !readUntilPrompt {
		// Bounded grace period; whatever arrived is returned.
		out, _ := s.readFor(timeout)
		return stripEcho(out, cmd), nil
	}

	out, err := s.readUntilPrompt(timeout)
	if err != nil {
		return stripEcho(out, cmd), util.NewDeviceError(util.ErrConnectivity, s.device, "command", cmd, err.Error())
	}
	return stripEcho(out, cmd), nil
}

// readUntilPrompt accumulates output until the device prompt terminates
// it. The prompt line is removed from the returned block.
func (s *Session) readUntilPrompt(timeout time.Duration) (string, error) {
	var sb strings.Builder
	sb.WriteString(s.excess)
	s.excess = ""

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if body, rest, ok := splitAtPrompt(sb.String()); ok {
			s.excess = rest
			return body, nil
		}
		select {
		case chunk, ok := <-s.outc:
			if !ok {
				return sb.String(), fmt.Errorf("connection closed")
			}
			sb.WriteString(chunk)
		case <-deadline.C:
			return sb.String(), fmt.Errorf("timeout after %s waiting for prompt", timeout)
		}
	}
}

// readFor accumulates output for a fixed duration.
func (s *Session) readFor(d time.Duration) (string, error) {
	var sb strings.Builder
	sb.WriteString(s.excess)
	s.excess = ""

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	for {
		select {
		case chunk, ok := <-s.outc:
			if !ok {
				return sb.String(), nil
			}
			sb.WriteString(chunk)
		case <-deadline.C:
			return sb.String(), nil
		}
	}
}

// Close releases the shell. Idempotent and never fails loudly: close
// errors on an already-dead transport carry no information.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.sess.Close()
		s.client.Close()
	})
	return nil
}

// splitAtPrompt scans the captured block for a device prompt line. On a
// match it returns the output before the prompt and whatever arrived
// after it; the caller keeps the remainder for the next read so a chunk
// spanning the prompt loses nothing.
func splitAtPrompt(out string) (body, rest string, ok bool) {
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if !promptRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		if i+1 < len(lines) {
			rest = strings.Join(lines[i+1:], "\n")
		}
		return strings.Join(lines[:i], "\n"), rest, true
	}
	return "", "", false
}

// stripEcho removes the echoed command from the head of a captured block.
func stripEcho(out, cmd string) string {
	out = strings.TrimLeft(out, "\r\n")
	if line, rest, found := strings.Cut(out, "\n"); found {
		if strings.TrimSpace(strings.ReplaceAll(line, "\r", "")) == strings.TrimSpace(cmd) {
			return rest
		}
	} else if strings.TrimSpace(strings.ReplaceAll(out, "\r", "")) == strings.TrimSpace(cmd) {
		return ""
	}
	return out
}

// InConfigMode reports whether a prompt fragment indicates configuration
// mode (a "cfg" marker inside the prompt parentheses).
func InConfigMode(prompt string) bool {
	return strings.Contains(prompt, "(cfg")
}
