package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/uartcon/pkg/transport/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/uartcon/"
)

func init() {
	if val := os.Getenv("UARTCON_BROKER"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/meta") {
			if len(payload) == 0 {
				log.Printf("%s: offline", topic)
				return
			}
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		log.Printf("%s: %q", topic, payload)
	}))
	if err = q.ConnectAndWait(); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
