package notification

import "errors"

// manager implements NotificationManager
type manager struct {
	channels        []NotificationChannel
	commandExecutor CommandExecutor
	platform        string
}

// NewManager creates a NotificationManager with one channel per enabled
// entry of cfg. A manager without channels drops every notification.
func NewManager(cfg *Config, opts ...Option) NotificationManager {
	m := &manager{}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.OSNotification.Enabled {
		var osOpts []Option
		if m.commandExecutor != nil {
			osOpts = append(osOpts, WithCommandExecutor(m.commandExecutor))
		}
		if m.platform != "" {
			osOpts = append(osOpts, WithPlatform(m.platform))
		}
		m.channels = append(m.channels, NewOSNotificationChannel(&cfg.OSNotification, osOpts...))
	}

	if cfg.LogNotification.Enabled {
		m.channels = append(m.channels, NewLogNotificationChannel(&cfg.LogNotification))
	}

	return m
}

// Send dispatches the notification to every channel and joins their errors.
func (m *manager) Send(n Notification) error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close cleans up resources
func (m *manager) Close() error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChannelCount returns the number of active channels
func (m *manager) ChannelCount() int {
	return len(m.channels)
}
