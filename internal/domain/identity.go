package domain

// Identity is the resolved user behind a session token. It is immutable for
// the lifetime of a connection; /setname changes take effect on reconnect.
type Identity struct {
	// Subject is the OAuth provider's stable user ID ("sub" claim).
	Subject string `json:"sub,omitempty"`

	Name  string `json:"name"`
	Email string `json:"email"`

	// DisplayName is the user-chosen visible name. Empty until set via
	// /setname, in which case Name is the label used everywhere.
	DisplayName string `json:"display_name,omitempty"`
}

// Label returns the name shown to other participants.
func (i Identity) Label() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Name
}
