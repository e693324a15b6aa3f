package request

// CheckCommand is the agent's admission check payload.
type CheckCommand struct {
	Command    string `json:"command" validate:"required,cmdtoken"`
	UserID     string `json:"user_id" validate:"required"`
	EndpointID string `json:"endpoint_id" validate:"required"`
}

// RegisterEndpoint is the agent's registration payload. EndpointID is set
// when the agent already holds an id from a previous registration.
type RegisterEndpoint struct {
	UserID     string  `json:"user_id" validate:"required"`
	EndpointID string  `json:"endpoint_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Hostname   string  `json:"hostname,omitempty"`
	UserName   string  `json:"user_name,omitempty"`
	IPAddress  *string `json:"ip_address,omitempty"`
	OSInfo     string  `json:"os_info,omitempty"`
}

// DeregisterEndpoint is the agent's self-deactivation payload.
type DeregisterEndpoint struct {
	EndpointID string `json:"endpoint_id" validate:"required"`
}
