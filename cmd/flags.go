package cmd

import (
	"github.com/urfave/cli/v2"
)

// Flags are the options of the fritz command. Every flag can also be given
// through its environment variable.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "fritz-entry-id",
			EnvVars: []string{"FRITZ_ENTRY_ID"},
			Usage:   "id of the config entry, defaults to the host",
		},
		&cli.StringFlag{
			Name:    "fritz-host",
			EnvVars: []string{"FRITZ_HOST"},
			Value:   "fritz.box",
		},
		&cli.StringFlag{
			Name:    "fritz-username",
			EnvVars: []string{"FRITZ_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "fritz-password",
			EnvVars: []string{"FRITZ_PASSWORD"},
		},
		&cli.BoolFlag{
			Name:    "fritz-ssl",
			EnvVars: []string{"FRITZ_SSL"},
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			EnvVars: []string{"POLL_INTERVAL"},
		},
		&cli.StringFlag{
			Name:    "mqtt-host",
			EnvVars: []string{"MQTT_HOST"},
		},
		&cli.StringFlag{
			Name:    "mqtt-user",
			EnvVars: []string{"MQTT_USER"},
		},
		&cli.StringFlag{
			Name:    "mqtt-pass",
			EnvVars: []string{"MQTT_PASS"},
		},
		&cli.StringFlag{
			Name:    "mqtt-discovery-prefix",
			EnvVars: []string{"MQTT_DISCOVERY_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "influx-url",
			EnvVars: []string{"INFLUX_URL"},
		},
		&cli.StringFlag{
			Name:    "influx-token",
			EnvVars: []string{"INFLUX_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "influx-org",
			EnvVars: []string{"INFLUX_ORG"},
		},
		&cli.StringFlag{
			Name:    "influx-bucket",
			EnvVars: []string{"INFLUX_BUCKET"},
		},
		&cli.StringFlag{
			Name:    "api-addr",
			EnvVars: []string{"API_ADDR"},
		},
		&cli.StringFlag{
			Name:    "api-password-hash",
			EnvVars: []string{"API_PASSWORD_HASH"},
			Usage:   "bcrypt hash from the hash-password command, empty disables auth",
		},
		&cli.StringFlag{
			Name:    "api-jwt-secret",
			EnvVars: []string{"API_JWT_SECRET"},
		},
		&cli.DurationFlag{
			Name:    "api-token-ttl",
			EnvVars: []string{"API_TOKEN_TTL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			EnvVars: []string{"DATABASE_URL"},
			Usage:   "postgres dsn, empty keeps the registries in memory",
		},
		&cli.StringFlag{
			Name:    "migrations-folder",
			EnvVars: []string{"MIGRATIONS_FOLDER"},
		},
		&cli.StringFlag{
			Name:    "automations-file",
			EnvVars: []string{"AUTOMATIONS_FILE"},
		},
		&cli.StringFlag{
			Name:    "cleanup-schedule",
			EnvVars: []string{"CLEANUP_SCHEDULE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"LOG_LEVEL"},
			Value:   "INFO",
		},
	}
}
