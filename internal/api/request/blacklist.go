package request

// AddBlacklistEntry is the payload for blocking a command.
type AddBlacklistEntry struct {
	Command string `json:"command" validate:"required,cmdtoken"`
}
