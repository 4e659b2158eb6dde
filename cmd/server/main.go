package main

import (
	"fmt"
	"log"

	"cipherchat/internal/chat"
	"cipherchat/internal/monitor"
)

func main() {
	fmt.Println("Starting CipherChat server...")

	// Fixed-address configuration; the service takes no flags.
	chat.SetConfig(chat.NewConfig())
	monitorCfg := monitor.NewConfig()
	monitor.SetConfig(monitorCfg)

	hub := monitor.NewHub()
	go hub.Run()

	mux := monitor.SetupRoutes(hub)
	monitorServer := monitor.CreateServer(monitorCfg.Addr, mux)
	go func() {
		// The monitor endpoint is best-effort; the chat service keeps
		// running without it.
		if err := monitor.StartServer(monitorServer); err != nil {
			log.Printf("Monitor server stopped: %v", err)
		}
	}()

	coordinator := chat.NewCoordinator(hub)
	go coordinator.Run()

	log.Fatal(chat.ListenAndServe(coordinator))
}
