/*
Package config loads changefeed settings from YAML or JSON files and the
environment.

# Settings

Load starts from DefaultSettings, applies an optional YAML or JSON file and
then any CHANGEFEED_* environment variables that are set. Later sources win.

	settings, err := config.Load("changefeed.yaml")
	if err != nil {
	    log.Fatal(err)
	}

A file looks like:

	log_level: debug
	metrics: true
	delivery:
	  queue_size: 4096
	  retry:
	    attempts: 5
	    backoff: 250ms
	  outbox_path: /var/lib/changefeed/outbox.db
	  redis:
	    url: redis://localhost:6379/0
	    channel: redfish.events

# Raw access

Config wraps the decoded map and extracts typed values with defaults.
Keys may be dotted paths into nested maps:

	cfg, _ := config.FromFile("changefeed.yaml")
	size := cfg.Int("delivery.queue_size", 1024)
	redis := cfg.Section("delivery.redis")
	channel := redis.String("channel", "changefeed.events")

Config is safe for concurrent reads.
*/
package config
