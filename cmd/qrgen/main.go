// Command qrgen renders a QR placard PNG for every known passport location.
// Placards encode a bot deep link whose payload resolves back to the location.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"emirates-passport/internal/config"
	"emirates-passport/internal/location"
	"emirates-passport/internal/qrcode"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate placards")
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("qrgen", flag.ContinueOnError)
	configDir := fs.String("config", "config", "directory containing config.yaml")
	outDir := fs.String("out", "", "output directory (overrides qrcode.output_dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		return err
	}

	dir := cfg.QRCode.OutputDir
	if *outDir != "" {
		dir = *outDir
	}

	gen, err := qrcode.NewGenerator(cfg.QRCode.BaseURL, cfg.QRCode.Size, cfg.QRCode.RecoveryLevel)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	registry := location.Default()
	paths, err := gen.WriteAll(dir, registry)
	if err != nil {
		return err
	}

	for i, entry := range registry.Entries() {
		payload, _ := gen.Payload(entry)
		log.Info().
			Str("location", entry.Location.Name).
			Str("payload", payload).
			Str("file", paths[i]).
			Msg("Placard written")
	}
	log.Info().Int("count", len(paths)).Str("dir", dir).Msg("Placards generated")

	return nil
}
