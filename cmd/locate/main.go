// Command locate is a thin wiring demo for the locator engine (A8): it
// reads a small JSON input envelope, locates it against the in-memory
// fixture travel-time provider (no auxiliary data), and prints a Markdown
// bulletin. It is not a production entry point -- JSON schema
// negotiation, a real Earth model, and an HTTP wrapper remain out of
// scope (spec.md §1 Non-goals).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"hypolocator/internal/config"
	"hypolocator/internal/fixture"
	"hypolocator/internal/locate"
	"hypolocator/internal/report"
)

// fileInput is the on-disk JSON shape this demo command accepts --
// deliberately a plain subset of locate.Input, since full envelope
// parsing (affinity defaulting, ms-vs-seconds, enum validation) belongs
// to a real service boundary, not this smoke CLI.
type fileInput struct {
	ID             string `json:"id"`
	OriginTimeUnix int64  `json:"originTimeUnixMillis"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	DepthKm        float64 `json:"depthKm"`
	IsDepthHeld    bool    `json:"isDepthHeld"`
	IsLocationHeld bool    `json:"isLocationHeld"`

	Picks []struct {
		ID             string  `json:"id"`
		Network        string  `json:"network"`
		Station        string  `json:"station"`
		Channel        string  `json:"channel"`
		Lat            float64 `json:"lat"`
		Lon            float64 `json:"lon"`
		ElevationM     float64 `json:"elevationM"`
		AuthorType     string  `json:"authorType"`
		TimeUnixMillis int64   `json:"timeUnixMillis"`
		Phase          string  `json:"phase"`
		Use            bool    `json:"use"`
		QualitySec     float64 `json:"qualitySec"`
	} `json:"picks"`
}

func main() {
	path := flag.String("input", "", "path to a JSON input envelope")
	earthModel := flag.String("earth-model", "ak135", "earth model name passed to the travel-time session")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: locate -input event.json")
		os.Exit(2)
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read input:", err)
		os.Exit(1)
	}

	var fi fileInput
	if err := json.Unmarshal(data, &fi); err != nil {
		fmt.Fprintln(os.Stderr, "parse input:", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	in := locate.Input{
		ID:                     fi.ID,
		EarthModel:             *earthModel,
		SourceOriginTimeMillis: fi.OriginTimeUnix,
		SourceLatitude:         fi.Latitude,
		SourceLongitude:        fi.Longitude,
		SourceDepthKm:          fi.DepthKm,
		IsDepthHeld:            fi.IsDepthHeld,
		IsLocationHeld:         fi.IsLocationHeld,
	}
	for _, p := range fi.Picks {
		in.Picks = append(in.Picks, locate.InputPick{
			ID: p.ID, Network: p.Network, Station: p.Station, Channel: p.Channel,
			Lat: p.Lat, Lon: p.Lon, ElevationM: p.ElevationM,
			AuthorType: p.AuthorType, TimeMillis: p.TimeUnixMillis,
			PickedPhase: p.Phase, Use: p.Use, QualitySec: p.QualitySec,
		})
	}

	table := fixture.NewDefaultTable()
	deps := locate.Deps{TravelTimes: table}

	out, err := locate.Locate(cfg, deps, in)
	if err != nil {
		fmt.Fprintln(os.Stderr, "locate:", err)
		os.Exit(1)
	}

	fmt.Println(report.RenderMarkdown(out))
}
