package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"

	"cipherchat/internal/chat"
)

const serverAddr = "127.0.0.1:6000"

func main() {
	fmt.Println("Connecting to CipherChat server...")

	conn, err := net.Dial("tcp", serverAddr)
	if err != nil {
		log.Fatalf("Could not connect to %s: %v", serverAddr, err)
	}

	ch, err := chat.Establish(conn)
	if err != nil {
		log.Fatalf("Handshake failed: %v", err)
	}
	fmt.Println("Handshake complete!")

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := ch.Send(scanner.Text()); err != nil {
				log.Printf("Send failed: %v", err)
				return
			}
		}
	}()

	for {
		text, ok, err := ch.Recv()
		if err != nil {
			// Server gone, or our own /quit took effect.
			fmt.Println("Disconnected.")
			os.Exit(0)
		}
		if !ok {
			continue
		}
		fmt.Println(text)
	}
}
