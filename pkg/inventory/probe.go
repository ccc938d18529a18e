package inventory

import (
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Reachable probes the device's SSH port with a short TCP connect.
// The probe is idempotent, so it is retried once with a brief backoff
// before the device is reported unreachable. Unknown devices are
// unreachable by definition.
func (i *Inventory) Reachable(name string, timeout time.Duration) bool {
	info, ok := i.devices[name]
	if !ok {
		return false
	}

	probe := func() error {
		conn, err := net.DialTimeout("tcp", info.Addr(), timeout)
		if err != nil {
			return err
		}
		conn.Close()
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 1)
	if err := backoff.Retry(probe, policy); err != nil {
		util.WithDevice(name).Warnf("unreachable at %s: %v", info.Addr(), err)
		return false
	}
	return true
}
