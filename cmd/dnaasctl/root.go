package main

import (
	"fmt"
	"os"
	"os/user"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/audit"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/device"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/inventory"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/settings"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/store"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/workspace"
)

var (
	flagLogLevel  string
	flagVerbose   bool
	flagInventory string
	flagDB        string
	flagUser      string
)

var rootCmd = &cobra.Command{
	Use:           "dnaasctl",
	Short:         "Bridge-domain lifecycle manager for the DNAAS lab fabric",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagVerbose {
			flagLogLevel = "debug"
		}
		return util.SetLogLevel(flagLogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "shorthand for --log-level debug")
	rootCmd.PersistentFlags().StringVar(&flagInventory, "inventory", "", "inventory file (overrides settings)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database file (overrides settings)")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "acting user (default: current OS user)")
}

// app lazily wires the layers a command needs. Nothing connects or opens
// until a command asks for it.
type app struct {
	cfg *settings.Settings
	inv *inventory.Inventory
	db  *store.Store
	log audit.Logger
}

func newApp() (*app, error) {
	cfg, err := settings.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if flagInventory != "" {
		cfg.InventoryPath = flagInventory
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	return &app{cfg: cfg}, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.log != nil {
		a.log.Close()
	}
}

func (a *app) inventory() (*inventory.Inventory, error) {
	if a.inv != nil {
		return a.inv, nil
	}
	inv, err := inventory.Load(a.cfg.InventoryPath)
	if err != nil {
		return nil, err
	}
	inv, err = resolvePrompts(inv)
	if err != nil {
		return nil, err
	}
	a.inv = inv
	return inv, nil
}

// resolvePrompts fills in passwords for inventory entries configured as
// "prompt", asking once per device before any connection is attempted.
func resolvePrompts(inv *inventory.Inventory) (*inventory.Inventory, error) {
	var resolved []inventory.DeviceInfo
	changed := false
	for _, name := range inv.Names() {
		info, _ := inv.Get(name)
		if info.Password == "prompt" {
			pw, err := promptPassword(name)
			if err != nil {
				return nil, err
			}
			info.Password = pw
			changed = true
		}
		resolved = append(resolved, info)
	}
	if !changed {
		return inv, nil
	}
	return inventory.NewStatic(resolved...), nil
}

func (a *app) store() (*store.Store, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) auditLog() audit.Logger {
	if a.log != nil {
		return a.log
	}
	log, err := audit.NewFileLogger(a.cfg.AuditLogPath, audit.DefaultRotation)
	if err != nil {
		util.Warnf("audit logging disabled: %v", err)
		a.log = audit.NopLogger{}
		return a.log
	}
	a.log = log
	return log
}

func (a *app) executor() (*device.Executor, error) {
	inv, err := a.inventory()
	if err != nil {
		return nil, err
	}
	return device.New(inv, device.Config{
		Parallelism:    a.cfg.Parallelism,
		ConnectTimeout: a.cfg.ConnectTimeout(),
		CommandTimeout: a.cfg.CommandTimeout(),
	}), nil
}

func (a *app) workspace() (*workspace.Manager, error) {
	db, err := a.store()
	if err != nil {
		return nil, err
	}
	policy := workspace.Policy{Admins: a.cfg.Admins, UserVLANs: a.cfg.UserVLANs}
	return workspace.NewManager(db, policy, a.auditLog()), nil
}

// actingUser resolves --user, falling back to the OS user.
func actingUser() (string, error) {
	if flagUser != "" {
		return flagUser, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("cannot determine acting user, pass --user: %w", err)
	}
	return u.Username, nil
}

// promptPassword reads a password without echo for inventory entries
// configured as "prompt".
func promptPassword(deviceName string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("device %s needs an interactive password prompt", deviceName)
	}
	fmt.Fprintf(os.Stderr, "password for %s: ", deviceName)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
