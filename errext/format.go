package errext

import "errors"

// Format splits the given error into a message and a map of logrus fields.
// Hints become the "hint" field; exit codes are not included since they are
// reported through the process status.
func Format(err error) (string, map[string]interface{}) {
	if err == nil {
		return "", nil
	}

	fields := make(map[string]interface{})
	var herr HasHint
	if errors.As(err, &herr) {
		fields["hint"] = herr.Hint()
	}

	return err.Error(), fields
}
