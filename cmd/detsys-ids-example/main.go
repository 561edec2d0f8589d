// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

// detsys-ids-example is a small standalone CLI that exercises a
// Recorder end to end: it builds one from flags or a config file,
// records a single event, prints a feature flag, and flushes before
// exiting. Useful for poking at a transport endpoint by hand.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	detsysids "github.com/DeterminateSystems/detsys-ids-client"
)

// fileConfig is the shape of an optional YAML defaults file, layered
// underneath whatever flags the caller passes on the command line.
type fileConfig struct {
	Endpoint    string         `yaml:"endpoint"`
	Library     string         `yaml:"library"`
	DistinctID  string         `yaml:"distinct_id"`
	EventName   string         `yaml:"event"`
	Properties  map[string]any `yaml:"properties"`
	FeatureFlag string         `yaml:"feature_flag"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var endpoint string
	var libraryFlag string
	var distinctID string
	var eventName string
	var featureFlag string
	var timeout time.Duration

	flagSet := pflag.NewFlagSet("detsys-ids-example", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML file supplying defaults for the other flags")
	flagSet.StringVar(&endpoint, "endpoint", "", "transport endpoint (bare host for SRV, URL for HTTP, file:// for File)")
	flagSet.StringVar(&libraryFlag, "library", "", "library name:version reported on every event")
	flagSet.StringVar(&distinctID, "distinct-id", "", "distinct ID to identify as before recording")
	flagSet.StringVar(&eventName, "event", "", "name of the event to record (default \"cli_invoked\")")
	flagSet.StringVar(&featureFlag, "feature", "", "feature flag name to print after check-in")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "deadline for check-in and flush")
	flagSet.BoolP("help", "h", false, "show help")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := loadFileConfig(configPath)
	if err != nil {
		return err
	}
	endpoint = firstNonEmpty(endpoint, cfg.Endpoint)
	libraryFlag = firstNonEmpty(libraryFlag, cfg.Library)
	distinctID = firstNonEmpty(distinctID, cfg.DistinctID)
	eventName = firstNonEmpty(eventName, cfg.EventName, "cli_invoked")
	featureFlag = firstNonEmpty(featureFlag, cfg.FeatureFlag)

	builder := detsysids.NewBuilder().WithLogger(slog.Default())
	if endpoint != "" {
		builder = builder.WithEndpoint(endpoint)
	}
	if name, version, ok := strings.Cut(libraryFlag, ":"); ok {
		builder = builder.WithLibrary(name, version)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	recorder, err := builder.Build(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("building recorder: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if err := recorder.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: shutdown: %v\n", err)
		}
	}()

	if distinctID != "" {
		recorder.Identify(distinctID)
	}

	properties := cfg.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	recorder.Record(eventName, properties, nil)

	if featureFlag != "" {
		flag, ok := recorder.GetFeature(featureFlag)
		if ok {
			fmt.Printf("%s: variant=%q payload=%v\n", featureFlag, flag.Variant, flag.Payload)
		} else {
			fmt.Printf("%s: no value from the most recent check-in\n", featureFlag)
		}
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), timeout)
	defer flushCancel()
	return recorder.Flush(flushCtx)
}

func loadFileConfig(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("reading config file %q: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
