package workspace

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// ChangeOp is one kind of staged modification.
type ChangeOp string

const (
	OpAddInterface    ChangeOp = "add_interface"
	OpRemoveInterface ChangeOp = "remove_interface"
	OpModifyVLAN      ChangeOp = "modify_vlan"
	OpMoveInterface   ChangeOp = "move_interface"
)

// Change is one staged modification to a bridge domain. Changes accumulate
// in an edit session and only touch devices when the session is deployed.
type Change struct {
	Op        ChangeOp `json:"op"`
	Device    string   `json:"device"`
	Interface string   `json:"interface"`
	// ToDevice/ToInterface are the destination for move_interface.
	ToDevice    string `json:"to_device,omitempty"`
	ToInterface string `json:"to_interface,omitempty"`
	// VlanID is the new VLAN for modify_vlan.
	VlanID int `json:"vlan_id,omitempty"`
	// OuterVlan/InnerVlan carry the tags for add_interface on a QinQ
	// service; zero means inherit the record's tags.
	OuterVlan int `json:"outer_vlan,omitempty"`
	InnerVlan int `json:"inner_vlan,omitempty"`
}

// EditSession is an in-memory staging area for changes to one bridge
// domain. Sessions are not persisted: an abandoned session costs nothing
// and leaves no state to clean up.
type EditSession struct {
	ID             string
	User           string
	BridgeDomain   string
	BridgeDomainID int64
	Changes        []Change
	StartedAt      time.Time
}

func newSession(user, bdName string, bdID int64) *EditSession {
	return &EditSession{
		ID:             uuid.NewString(),
		User:           user,
		BridgeDomain:   bdName,
		BridgeDomainID: bdID,
		StartedAt:      time.Now(),
	}
}

// validateChange checks one change's shape before it is staged.
func validateChange(c Change) error {
	var v util.ValidationBuilder
	switch c.Op {
	case OpAddInterface, OpRemoveInterface:
		v.Add(c.Device != "", "change without device")
		v.Add(c.Interface != "", "change without interface")
	case OpModifyVLAN:
		v.Add(c.Device != "", "change without device")
		v.Add(c.Interface != "", "change without interface")
		if err := util.ValidateVLANID(c.VlanID); err != nil {
			v.AddErrorf("%v", err)
		}
	case OpMoveInterface:
		v.Add(c.Device != "", "move without source device")
		v.Add(c.Interface != "", "move without source interface")
		v.Add(c.ToDevice != "", "move without destination device")
		v.Add(c.ToInterface != "", "move without destination interface")
		v.Add(c.Device != c.ToDevice || c.Interface != c.ToInterface,
			fmt.Sprintf("move of %s/%s onto itself", c.Device, c.Interface))
	default:
		v.AddErrorf("unknown change op %q", c.Op)
	}
	return v.Build()
}
