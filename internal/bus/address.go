package bus

import "strconv"

// Address identifies a bus participant.
//
// The address space is partitioned by sign:
//   - zero is never a valid destination
//   - negative values are connected endpoints
//   - positive values are groups
type Address int32

// Invalid is the zero address. Lookups that fail return Invalid.
const Invalid Address = 0

// IsValid reports whether a is non-zero.
func (a Address) IsValid() bool {
	return a != Invalid
}

// IsEndpoint reports whether a belongs to the endpoint partition.
func (a Address) IsEndpoint() bool {
	return a < 0
}

// IsGroup reports whether a belongs to the group partition.
func (a Address) IsGroup() bool {
	return a > 0
}

// String formats the address with a partition prefix, e.g. "ep:-3" or "grp:2".
func (a Address) String() string {
	switch {
	case a.IsEndpoint():
		return "ep:" + strconv.Itoa(int(a))
	case a.IsGroup():
		return "grp:" + strconv.Itoa(int(a))
	default:
		return "invalid"
	}
}
