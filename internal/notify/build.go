package notify

import "github.com/drydock/drydock/internal/config"

// Build constructs the notifier chain from configuration: a LogNotifier is
// always present, plus a Webhook, Gotify, and/or MQTT notifier for each one
// whose configuration is non-empty.
func Build(cfg *config.Config, log Logger) *Multi {
	notifiers := []Notifier{NewLogNotifier(log)}

	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, NewWebhook(cfg.NotifyWebhookURL, nil))
	}
	if cfg.NotifyGotifyURL != "" {
		notifiers = append(notifiers, NewGotify(cfg.NotifyGotifyURL, cfg.NotifyGotifyToken))
	}
	if cfg.NotifyMQTTBroker != "" && cfg.NotifyMQTTTopic != "" {
		notifiers = append(notifiers, NewMQTT(cfg.NotifyMQTTBroker, cfg.NotifyMQTTTopic, "", "", "", 0))
	}

	return NewMulti(log, notifiers...)
}
