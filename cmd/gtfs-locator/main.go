package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	lib "github.com/theoremus-urban-solutions/gtfs-locator"
	"github.com/theoremus-urban-solutions/gtfs-locator/config"
	"github.com/theoremus-urban-solutions/gtfs-locator/gtfs"
	"github.com/theoremus-urban-solutions/gtfs-locator/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfs-locator/internal/logging"
)

func main() {
	mode := flag.String("mode", "serve", "serve|oneshot")
	cfgPath := flag.String("config", "config.yml", "path to config.yml")
	call := flag.String("call", "vehicles", "oneshot call: vehicles|trip-updates|alerts|enriched")
	file := flag.String("file", "", "realtime feed file (.pb)")
	bundle := flag.String("zip", "", "static bundle file (.zip)")
	tripUpdates := flag.String("tripUpdates", "", "optional trip-updates feed file (.pb)")
	flag.Parse()

	logger := logging.New(os.Stdout, slog.LevelInfo)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logging.Error(logger, "load config", err)
		os.Exit(1)
	}

	switch *mode {
	case "serve":
		srv := lib.NewServer(cfg, logger)
		srv.Start()
		srv.HandleGracefulShutdown()
	case "oneshot":
		if err := oneshot(*call, *file, *bundle, *tripUpdates); err != nil {
			logging.Error(logger, "oneshot", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
}

func oneshot(call, file, bundle, tripUpdates string) error {
	var out any
	switch call {
	case "vehicles", "trip-updates", "alerts":
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		switch call {
		case "vehicles":
			out, err = gtfsrt.DecodeVehicles(data)
		case "trip-updates":
			out, err = gtfsrt.DecodeTripUpdates(data)
		case "alerts":
			out, err = gtfsrt.DecodeAlerts(data)
		}
		if err != nil {
			return err
		}
	case "enriched":
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		idx, err := gtfs.BuildIndexFromZip(bundle)
		if err != nil {
			return err
		}
		var tub []byte
		if tripUpdates != "" {
			tub, err = os.ReadFile(tripUpdates)
			if err != nil {
				return err
			}
		}
		out, err = gtfsrt.EnrichVehicles(data, idx, tub)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown call %q", call)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
