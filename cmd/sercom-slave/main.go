//go:build tinygo && atsamd21

package main

import (
	"context"
	"time"

	"sercomspi-go/bus"
	"sercomspi-go/drivers/samd21"
	"sercomspi-go/services/config"
	"sercomspi-go/services/hal"
	"sercomspi-go/services/heartbeat"
	"sercomspi-go/types"
	"sercomspi-go/x/conv"
)

const board = "feather_m0"

func printTopic(prefix string, t bus.Topic) {
	var buf [20]byte
	print(prefix, " ")
	for i, tok := range t {
		if i > 0 {
			print("/")
		}
		switch v := tok.(type) {
		case string:
			print(v)
		case int:
			print(string(conv.AppendInt(buf[:0], int64(v))))
		default:
			print("?")
		}
	}
	println()
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot", board)

	ctx := context.Background()
	b := bus.NewBus(4)
	uiConn := b.NewConnection("ui")

	mon := uiConn.Subscribe(bus.T("hal", "#"))
	go func() {
		for m := range mon.Channel() {
			printTopic("[monitor] <-", m.Topic)
			if st, ok := m.Payload.(types.HALState); ok {
				println("[monitor] hal", st.Level, st.Status, st.Error)
			}
		}
	}()

	go hal.Run(ctx, b.NewConnection("hal"), samd21.MMIO{})

	hb := &heartbeat.Service{Interval: 5 * time.Second, Rearm: true}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	cfg := config.NewConfigService()
	cfg.OnError = func(err error) { println("[main] config:", err.Error()) }
	cfg.Start(config.WithDevice(ctx, board), b.NewConnection("config"))

	select {}
}
