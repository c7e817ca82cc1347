package notifier

import (
	"errors"
	"net/url"
)

// redactURLError drops the request URL from a *url.Error so secrets in the
// path or query never reach the logs.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
