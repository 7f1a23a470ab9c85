package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cvele/playnite-web-mqtt/cmd"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/config"
)

func main() {
	app := &cli.App{
		Name:   "playnite-web-mqtt",
		Usage:  "bridge a Playnite Web game library to Home Assistant over MQTT",
		Action: cmd.BridgeCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "mqtt-broker",
				EnvVars:  []string{"MQTT_BROKER"},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "mqtt-port",
				EnvVars: []string{"MQTT_PORT"},
				Value:   config.DefaultMqttPort,
			},
			&cli.StringFlag{
				Name:    "mqtt-user",
				EnvVars: []string{"MQTT_USER"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-pass",
				EnvVars: []string{"MQTT_PASS"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-client-id",
				EnvVars: []string{"MQTT_CLIENT_ID"},
				Value:   "playnite-web-mqtt",
			},
			&cli.StringFlag{
				Name:     "topic-base",
				Usage:    "topic prefix of the remote library, e.g. playnite/playniteweb_gamerig",
				EnvVars:  []string{"TOPIC_BASE"},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "max-image-size",
				Usage:   "cover byte budget after transcoding",
				EnvVars: []string{"MAX_IMAGE_SIZE"},
				Value:   config.DefaultMaxImageSize,
			},
			&cli.IntFlag{
				Name:    "min-quality",
				EnvVars: []string{"MIN_QUALITY"},
				Value:   config.DefaultMinQuality,
			},
			&cli.IntFlag{
				Name:    "initial-quality",
				EnvVars: []string{"INITIAL_QUALITY"},
				Value:   config.DefaultInitialQuality,
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
