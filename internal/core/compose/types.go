package compose

// =============================================================================
// Manifest - Parsed Output Type
// =============================================================================

// Manifest is the loader's view of a compose manifest, decoupled from
// compose-go types. Services and volumes are sorted by name.
type Manifest struct {
	Version  string    `json:"version,omitempty"`
	Services []Service `json:"services"`
	Volumes  []string  `json:"volumes,omitempty"`
}

// Service returns the named service.
func (m *Manifest) Service(name string) (Service, bool) {
	for _, s := range m.Services {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// Service represents a single loaded service definition.
type Service struct {
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Ports       []Port            `json:"ports,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Volumes     []VolumeMount     `json:"volumes,omitempty"`
}

// Port represents a port mapping.
type Port struct {
	Target    uint32 `json:"target"`              // Container port
	Published string `json:"published,omitempty"` // Host port or range
	Protocol  string `json:"protocol,omitempty"`  // tcp, udp
	HostIP    string `json:"host_ip,omitempty"`   // Bind IP
}

// VolumeMount represents a volume mount in a service.
type VolumeMount struct {
	Type     string `json:"type"`   // bind, volume, tmpfs
	Source   string `json:"source"` // Path or volume name
	Target   string `json:"target"` // Container path
	ReadOnly bool   `json:"readonly"`
}
