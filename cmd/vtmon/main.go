package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/robotalks/vterm.go/pkg/bridge/mqtt"
	"github.com/robotalks/vterm.go/pkg/status"
)

var (
	mqttURL = "mqtt://localhost:1883/vterm/"
	device  = "+"
)

func init() {
	if val := os.Getenv("VTERM_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&device, "device", device, "Device ID to monitor, + for all.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL, "")
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub(device+"/"+mqtt.TopicStatus, func(topic string, payload []byte) {
		r, err := status.DecodeReport(payload)
		if err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		log.Printf("%s: baud=%.1f mode=%s tx=%d/%d rx=%d/%d discarded=%d xon=%v bus=%v keys=%#x",
			topic, r.Baud, r.Mode, r.TxQueued, r.TxDropped, r.RxQueued, r.RxDropped,
			r.Discarded, r.XOn, r.BusOwned, r.KeysPressed)
	})
	q.Sub(device+"/"+mqtt.TopicOut, func(topic string, payload []byte) {
		log.Printf("%s: %s", topic, strconv.Quote(string(payload)))
	})
	q.Sub(device+"/"+mqtt.TopicKeys, func(topic string, payload []byte) {
		codes := make([]string, len(payload))
		for i, c := range payload {
			codes[i] = fmt.Sprint(c)
		}
		log.Printf("%s: %s", topic, strings.Join(codes, " "))
	})
	<-(chan struct{})(nil)
}
