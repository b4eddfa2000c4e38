package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

type locationMessage struct {
	VehicleID string  `json:"vehicleId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
}

// bus drives back and forth along a straight leg around its depot.
type bus struct {
	id       string
	lat, lng float64
	heading  float64
	speed    float64
}

func (b *bus) step(dt time.Duration) {
	b.speed = math.Max(0, math.Min(60, b.speed+(rand.Float64()-0.5)*10))
	km := b.speed * dt.Hours()
	b.lat += km / 111 * math.Cos(b.heading)
	b.lng += km / 111 * math.Sin(b.heading)
	if rand.Float64() < 0.05 {
		b.heading += math.Pi
	}
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <vehicle_id>[,<vehicle_id>...] <interval_seconds>\n", os.Args[0])
		os.Exit(1)
	}

	intervalSec, err := strconv.Atoi(os.Args[2])
	if err != nil || intervalSec <= 0 {
		fmt.Fprintf(os.Stderr, "error: interval must be a positive integer\n")
		os.Exit(1)
	}
	interval := time.Duration(intervalSec) * time.Second

	broker := "tcp://localhost:1883"
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		broker = v
	}

	var fleet []*bus
	for _, id := range splitIDs(os.Args[1]) {
		fleet = append(fleet, &bus{
			id:      id,
			lat:     17.385 + (rand.Float64()-0.5)*0.05,
			lng:     78.4867 + (rand.Float64()-0.5)*0.05,
			heading: rand.Float64() * 2 * math.Pi,
			speed:   30,
		})
	}

	var clients []mqtt.Client
	for _, b := range fleet {
		// One client per bus so the broker publishes each bus's last will on its own.
		opts := mqtt.NewClientOptions().
			AddBroker(broker).
			SetClientID("bus-simulator-"+b.id).
			SetWill(domain.StatusTopic(b.id), domain.StatusOffline, 1, false).
			SetAutoReconnect(true)

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			logger.Fatal().Err(token.Error()).Str("vehicle_id", b.id).Msg("mqtt connect")
		}
		client.Publish(domain.StatusTopic(b.id), 1, false, domain.StatusOnline).Wait()
		clients = append(clients, client)
	}

	logger.Info().Str("broker", broker).Int("buses", len(fleet)).Dur("interval", interval).Msg("simulating")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for i, b := range fleet {
				b.step(interval)
				payload, _ := json.Marshal(locationMessage{
					VehicleID: b.id,
					Latitude:  b.lat,
					Longitude: b.lng,
					Speed:     math.Round(b.speed*10) / 10,
				})
				topic := domain.LocationTopic(b.id)
				token := clients[i].Publish(topic, 1, false, payload)
				token.Wait()
				if err := token.Error(); err != nil {
					logger.Error().Err(err).Str("topic", topic).Msg("publish")
					continue
				}
				logger.Debug().Str("topic", topic).RawJSON("payload", payload).Msg("published")
			}
		case <-sig:
			for i, b := range fleet {
				clients[i].Publish(domain.StatusTopic(b.id), 1, false, domain.StatusOffline).Wait()
				clients[i].Disconnect(250)
			}
			logger.Info().Msg("stopped")
			return
		}
	}
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
