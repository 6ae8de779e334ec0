package container

// RestartParams defines parameters for a node-control restart.
type RestartParams struct {
	// GracePeriod is the number of seconds to wait before force-killing the container
	GracePeriod int `yaml:"grace_period,omitempty"`

	// RestartDelay is the number of seconds to wait after stop before restart
	RestartDelay int `yaml:"restart_delay,omitempty"`
}
