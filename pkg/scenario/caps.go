package scenario

// Capability is the compile-time capability witness parameterizing Scenario
// and the Deployer implementations that can run it. It plays the role the
// original system gives to a phantom type parameter; Go has no phantom
// types, so the witness is a real (zero-size) value whose only job is to
// answer RequiresNodeControl.
type Capability interface {
	RequiresNodeControl() bool
}

// NoCapability is the default capability set: no runtime powers beyond the
// baseline node clients are required from the deployer.
type NoCapability struct{}

func (NoCapability) RequiresNodeControl() bool { return false }

// NodeControlCapability marks a scenario that requires a NodeControlHandle
// from its deployer (currently: the chaos-restart workload). Only builders
// that have called EnableNodeControl can produce a Scenario[NodeControlCapability],
// and only deployers that are generic over a capability that includes node
// control (or that are instantiated at NodeControlCapability) can accept one.
type NodeControlCapability struct{}

func (NodeControlCapability) RequiresNodeControl() bool { return true }
