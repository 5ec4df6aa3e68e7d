package errcode

// Error code convention:
// - 0: no error
// - 4xxx: recoverable business errors (flow may continue, operator action)
// - 5xxx: system errors (flow must stop)
const (
	OK                  = 0
	ResourceMissing     = 4004
	RecipientUnresolved = 4010
	SystemError         = 5000
)
