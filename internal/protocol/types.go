package protocol

// Version is the only request protocol version this package speaks.
const Version = 1

// Commands understood by handler modules.
const (
	CommandDescribe = "describe"
	CommandRegister = "register"
	CommandHandle   = "handle"
)

// Request is the envelope sent to a handler module via stdin.
type Request struct {
	Protocol int    `json:"protocol"`
	Module   string `json:"module"`
	Command  string `json:"command"` // describe | register | handle

	// Data is the run's opaque context; sent with register and handle.
	Data any `json:"data,omitempty"`

	// Handle fields. Frequency is sent to register, and to handle only for
	// handler_version >= 2.
	ContentType string         `json:"content_type,omitempty"`
	Filename    string         `json:"filename,omitempty"`
	Payload     []byte         `json:"payload,omitempty"` // base64 on the wire
	Frequency   string         `json:"frequency,omitempty"`
	State       map[string]any `json:"state,omitempty"`
}

// Response is the envelope a handler module writes to stdout.
type Response struct {
	Status string `json:"status"` // ok | error
	Error  string `json:"error,omitempty"`

	// Describe fields.
	Frequency      string `json:"frequency,omitempty"`
	HandlerVersion int    `json:"handler_version,omitempty"`

	// Register fields.
	ContentTypes []string       `json:"content_types,omitempty"`
	State        map[string]any `json:"state,omitempty"`

	// Handle fields.
	StateUpdates map[string]any `json:"state_updates,omitempty"`

	Logs []LogEntry `json:"logs,omitempty"`
}

// LogEntry represents a log message from a handler module.
type LogEntry struct {
	Level   string `json:"level"` // info | warn | error | debug
	Message string `json:"message"`
}
