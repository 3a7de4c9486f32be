package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joshp123/tiko-golang/tiko"
)

func main() {
	baseURL := flag.String("base-url", os.Getenv("TIKO_BASE_URL"), "service base URL override")
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	client, err := tiko.NewClient(tiko.Config{
		Credentials: tiko.Credentials{
			Email:    os.Getenv("TIKO_EMAIL"),
			Password: os.Getenv("TIKO_PASSWORD"),
		},
		BaseURL: *baseURL,
	})
	if err != nil {
		fatal("client", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "verify":
		if err := client.Verify(ctx); err != nil {
			fatal("verify", err)
		}
		fmt.Println("ok")
	case "rooms":
		roomsCmd(ctx, client)
	case "devices":
		devicesCmd(ctx, client)
	case "set-temp":
		setTempCmd(ctx, client, args[1:])
	case "set-mode":
		setModeCmd(ctx, client, args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func roomsCmd(ctx context.Context, client *tiko.Client) {
	if err := client.Authenticate(ctx); err != nil {
		fatal("authenticate", err)
	}
	rooms, err := client.Rooms(ctx)
	if err != nil {
		fatal("rooms", err)
	}
	for _, room := range rooms {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
			room.ID, room.Name,
			formatTemp(room.CurrentTemperature),
			formatTemp(room.TargetTemperature),
			room.HeatingState())
	}
}

func devicesCmd(ctx context.Context, client *tiko.Client) {
	if err := client.Authenticate(ctx); err != nil {
		fatal("authenticate", err)
	}
	devices, err := client.Devices(ctx)
	if err != nil {
		fatal("devices", err)
	}
	for _, device := range devices {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n", device.ID, device.Code, device.Type, device.Name, device.MAC)
	}
}

func setTempCmd(ctx context.Context, client *tiko.Client, args []string) {
	if len(args) < 2 {
		fatal("set-temp", fmt.Errorf("usage: set-temp <room-id> <celsius>"))
	}
	celsius, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fatal("set-temp", err)
	}
	if err := client.Authenticate(ctx); err != nil {
		fatal("authenticate", err)
	}
	if err := client.SetTemperature(ctx, args[0], celsius); err != nil {
		fatal("set-temp", err)
	}
}

func setModeCmd(ctx context.Context, client *tiko.Client, args []string) {
	if len(args) < 1 {
		fatal("set-mode", fmt.Errorf("usage: set-mode <normal|off|frost|absence>"))
	}
	if err := client.Authenticate(ctx); err != nil {
		fatal("authenticate", err)
	}
	if err := client.SetMode(ctx, tiko.Mode(args[0])); err != nil {
		fatal("set-mode", err)
	}
}

func formatTemp(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *value)
}

func usage() {
	fmt.Println("tiko-cli [-base-url URL] <command> [args]")
	fmt.Println("")
	fmt.Println("Credentials come from TIKO_EMAIL and TIKO_PASSWORD.")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  verify")
	fmt.Println("  rooms")
	fmt.Println("  devices")
	fmt.Println("  set-temp <room-id> <celsius>")
	fmt.Println("  set-mode <normal|off|frost|absence>")
}

func fatal(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", action, err)
	os.Exit(1)
}
