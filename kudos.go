package kudos

// Sentinel is a constant error. Declare them with const so they can't be reassigned.
type Sentinel string

func (s Sentinel) Error() string {
	return string(s)
}
