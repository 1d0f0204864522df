package model

// Actor identifies who published a model.
type Actor struct {
	// Hostname is the machine name the publish was started from.
	Hostname string
	// Username is the system user who started the publish.
	Username string
}

// Tags renders the actor as run tags for a bookkeeping run.
func (a *Actor) Tags() map[string]string {
	if a == nil {
		return map[string]string{}
	}

	return map[string]string{
		TagUser:              a.Username,
		"mlflow.source.host": a.Hostname,
	}
}
