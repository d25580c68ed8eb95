package authclient

// Navigator abstracts "where the user is and how to send them elsewhere".
// In a real frontend this maps to the location/history API; embedders of the
// SDK provide their own, and tests assert on recorded calls.
type Navigator interface {
	// CurrentPath reports the path the user is currently on.
	CurrentPath() string

	// NavigateTo sends the user to the target path.
	NavigateTo(path string)
}

// NopNavigator ignores all navigation. Useful for headless or CLI embedders
// that handle session loss themselves.
type NopNavigator struct{}

func (NopNavigator) CurrentPath() string { return "" }
func (NopNavigator) NavigateTo(string)   {}
