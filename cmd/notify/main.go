package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Server base URL")
	user := flag.String("user", "admin", "Admin username")
	password := flag.String("password", "", "Admin password")
	channel := flag.String("channel", "all", "Target channel name, or \"all\"")
	text := flag.String("text", "", "Message text (or use stdin)")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "Usage: notify -password <admin-password> [-channel <name>] [-text <message>]")
		fmt.Fprintln(os.Stderr, "  Reads message from stdin if -text not specified")
		os.Exit(1)
	}

	// Read message
	message := *text
	if message == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read message: %v\n", err)
			os.Exit(1)
		}
		message = string(bytes.TrimSpace(data))
	}
	if message == "" {
		fmt.Fprintln(os.Stderr, "Message is empty")
		os.Exit(1)
	}

	body, err := json.Marshal(map[string]string{
		"channel": *channel,
		"text":    message,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode request: %v\n", err)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodPost, *server+"/admin/notify", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(*user, *password)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, respBody)
		os.Exit(1)
	}

	fmt.Printf("Broadcast sent: %s\n", respBody)
}
