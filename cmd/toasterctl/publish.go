package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/lashbits/silicon-toaster/host/calibration"
	"github.com/lashbits/silicon-toaster/host/toaster"
)

var (
	mqttBroker   string
	mqttTopic    string
	mqttInterval time.Duration
)

// telemetry is one published reading.
type telemetry struct {
	Time    time.Time `json:"time"`
	Raw     uint16    `json:"raw"`
	Voltage float64   `json:"voltage"`
	Control bool      `json:"control"`
	Errors  uint16    `json:"errors,omitempty"`
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish voltage telemetry to an MQTT broker",
	Long: `Periodically read the capacitor voltage and publish it to an MQTT
broker as JSON, until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := paho.NewClientOptions().
			AddBroker(mqttBroker).
			SetAutoReconnect(true).
			SetCleanSession(true)
		client := paho.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("connecting to broker %s: %w", mqttBroker, token.Error())
		}
		defer client.Disconnect(250)

		return withToaster(func(t *toaster.Toaster) error {
			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)

			ticker := time.NewTicker(mqttInterval)
			defer ticker.Stop()

			for {
				select {
				case <-interrupt:
					return nil
				case <-ticker.C:
				}

				raw, err := t.ReadVoltageRaw()
				if err != nil {
					return err
				}
				enabled, err := t.ControlEnabled()
				if err != nil {
					return err
				}

				payload, err := json.Marshal(telemetry{
					Time:    time.Now(),
					Raw:     raw,
					Voltage: calibration.ToVolts(raw),
					Control: enabled,
				})
				if err != nil {
					return err
				}
				if token := client.Publish(mqttTopic, 0, false, payload); token.Wait() && token.Error() != nil {
					return fmt.Errorf("publishing: %w", token.Error())
				}
			}
		})
	},
}

func init() {
	publishCmd.Flags().StringVar(&mqttBroker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	publishCmd.Flags().StringVar(&mqttTopic, "topic", "toaster/telemetry", "MQTT topic")
	publishCmd.Flags().DurationVar(&mqttInterval, "interval", time.Second, "Publish interval")

	rootCmd.AddCommand(publishCmd)
}
