package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appconfig "fundingwatch/config"
	"fundingwatch/logger"
)

// Notifier delivers one finished digest.
type Notifier interface {
	Name() string
	Deliver(ctx context.Context, message string) error
}

// DeliveryError reports that a notifier failed to deliver a message.
type DeliveryError struct {
	Notifier string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Notifier, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Multi delivers every message to each notifier in turn. One notifier
// failing does not stop the others.
type Multi []Notifier

func (m Multi) Name() string {
	names := make([]string, 0, len(m))
	for _, n := range m {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

// Deliver returns the joined delivery errors of every failed notifier.
func (m Multi) Deliver(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Deliver(ctx, message); err != nil {
			var de *DeliveryError
			if !errors.As(err, &de) {
				err = &DeliveryError{Notifier: n.Name(), Err: err}
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the notifiers enabled in cfg. When none is enabled the
// digests are written to the log instead.
func FromConfig(cfg appconfig.NotifierConfig) Notifier {
	var out Multi
	if cfg.Telegram.Enabled {
		out = append(out, NewTelegram(cfg.Telegram))
	}
	if cfg.Wechat.Enabled {
		out = append(out, NewWechat(cfg.Wechat))
	}

	switch len(out) {
	case 0:
		logger.GetLogger().WithComponent("notifier").Warn("no notifier configured, digests will only be logged")
		return NewLog(nil)
	case 1:
		return out[0]
	default:
		return out
	}
}
