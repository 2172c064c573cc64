package messages

const (
	// ErrUserErrorProcessing is sent to the user when a command fails for a
	// reason that is not their fault.
	ErrUserErrorProcessing = "Something went wrong while processing that, please try again later."

	// ErrNotAdministrator is sent when a non-administrator runs an
	// administrator command.
	ErrNotAdministrator = "You must be an administrator to use this command."

	// ErrNotATicketChannel is sent when a ticket command is run outside a
	// ticket channel.
	ErrNotATicketChannel = "This is not a ticket channel."

	// ErrTicketCooldown is sent when a user is creating tickets too quickly.
	ErrTicketCooldown = "You are creating tickets too quickly, please wait a moment."
)
