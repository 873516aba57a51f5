// Package lorabridge defines the identities, sentinels and external contracts
// shared by the sensor nodes, the master node and the gateway.
package lorabridge

import "strconv"

// NodeID is the identity of a physical unit on the mesh.
type NodeID uint8

const (
	// MasterID is the identity reserved for the mesh root.
	MasterID NodeID = 1

	// NoHop is the next-hop value of an unreachable destination.
	NoHop NodeID = 0
	// SelfHop is the next-hop value a node records for itself.
	SelfHop NodeID = 255

	// MaxNodeCount bounds the mesh size so that no identity collides with SelfHop.
	MaxNodeCount = 254
)

// Role describes what a node does on the mesh.
type Role uint8

const (
	RoleSensor Role = iota
	RoleMaster
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleSensor:
		return "sensor"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// RoleOf returns the role of a node. Only MasterID is the master.
func RoleOf(id NodeID) Role {
	if id == MasterID {
		return RoleMaster
	}
	return RoleSensor
}

// ValidIdentity reports whether id addresses a node in a mesh of count nodes.
func ValidIdentity(id NodeID, count int) bool {
	return id >= MasterID && int(id) <= count && count <= MaxNodeCount
}
