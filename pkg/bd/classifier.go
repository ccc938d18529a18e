package bd

import "sort"

// Classification is the classifier verdict with a confidence score.
// Confidence is 1.0 for a clean rule match and degrades toward 0 as the
// member set diverges from every known tagging model.
type Classification struct {
	Type       DNAASType
	Confidence float64
}

// Classify determines the DNAAS service type from a bridge domain's member
// interfaces. Pure and deterministic: the verdict is stable under member
// reordering and does no I/O.
//
// Rules, in order:
//  1. Every sub-interface carries a single vlan-id equal to the service
//     VLAN with l2-service enabled -> SINGLE_TAGGED. Bundles follow the
//     same tagging model as physical members.
//  2. Members carry vlan-tags with a constant outer tag -> QinQ; single
//     inner value vs varying inner values picks the variant.
//  3. Anything else -> UNKNOWN with a confidence score.
func Classify(vlanID int, members []Interface) Classification {
	if len(members) == 0 {
		return Classification{Type: TypeUnknown, Confidence: 0}
	}

	sorted := make([]Interface, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Device != sorted[j].Device {
			return sorted[i].Device < sorted[j].Device
		}
		return sorted[i].Name < sorted[j].Name
	})

	qinq := 0
	singleOK := 0
	outers := make(map[int]bool)
	inners := make(map[int]bool)

	for _, m := range sorted {
		if m.OuterVlan > 0 {
			qinq++
			outers[m.OuterVlan] = true
			if m.InnerVlan > 0 {
				inners[m.InnerVlan] = true
			}
			continue
		}
		if m.VlanID == vlanID && m.L2Service {
			singleOK++
		}
	}

	switch {
	case qinq == len(sorted) && len(outers) == 1:
		if len(inners) <= 1 {
			return Classification{Type: TypeQinQSingle, Confidence: 1}
		}
		return Classification{Type: TypeQinQRange, Confidence: 1}
	case qinq == 0 && singleOK == len(sorted) && vlanID > 0:
		return Classification{Type: TypeSingleTagged, Confidence: 1}
	}

	// Mixed or partial match: report unknown with how close it came.
	best := singleOK
	if qinq > best {
		best = qinq
	}
	return Classification{
		Type:       TypeUnknown,
		Confidence: float64(best) / float64(len(sorted)),
	}
}
