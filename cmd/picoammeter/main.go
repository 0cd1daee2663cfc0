// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Command picoammeter drives a Keithley 6485/6487 over a serial port: list
// candidate ports, zero the meter, pass raw SCPI through, or perform a full
// buffered measurement run and save the readings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/soypat/cereal"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/device/k6485"
	"github.com/EPFL-LPI/keithley-picoammeter-controller/lib/cmdlog"
	"github.com/EPFL-LPI/keithley-picoammeter-controller/lib/config"
	"github.com/EPFL-LPI/keithley-picoammeter-controller/lib/find"
	"github.com/EPFL-LPI/keithley-picoammeter-controller/run"
	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

func main() {
	var (
		configPath string
		port       string
		listPorts  bool
		zero       bool
		queryCmd   string
		writeCmd   string
		doRun      bool
		outPath    string
		rangeStr   string
		intTime    float64
		readings   int
		trigger    string
		useTarm    bool
	)

	flag.StringVar(&configPath, "config", "", "path to the YAML configuration file")
	flag.StringVar(&port, "port", "", "serial port of the picoammeter, e.g. COM14")
	flag.BoolVar(&listPorts, "list", false, "list candidate serial ports and exit")
	flag.BoolVar(&zero, "zero", false, "zero correct the meter")
	flag.StringVar(&queryCmd, "query", "", "send a raw SCPI query and print the response")
	flag.StringVar(&writeCmd, "write", "", "send a raw SCPI command")
	flag.BoolVar(&doRun, "run", false, "perform a measurement run")
	flag.StringVar(&outPath, "out", "", "output file for the readings table")
	flag.StringVar(&rangeStr, "range", "", `current range ("auto", "2 nA" ... "20 mA")`)
	flag.Float64Var(&intTime, "int", 0, "integration time in ms")
	flag.IntVar(&readings, "readings", 0, "number of readings to buffer")
	flag.StringVar(&trigger, "trigger", "", "trigger source: immediate or external")
	flag.BoolVar(&useTarm, "tarm", false, "open the port with the tarm serial backend")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("config", configPath).Msg("loading configuration failed")
		}
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if listPorts {
		ports, err := find.Ports()
		if err != nil {
			log.Fatal().Err(err).Msg("listing serial ports failed")
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
			return
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if port != "" {
		cfg.Port = port
	}
	if cfg.Port == "" {
		// no port configured, try to spot the adapter
		dev, err := find.Find(find.Keithley)
		if err != nil {
			log.Fatal().Err(err).Msg("no port given and discovery failed")
		}
		cfg.Port = dev
	}

	backend, err := cfg.SessionBackend()
	if err != nil {
		log.Fatal().Err(err).Msg("bad backend")
	}
	opts := []scpi.Option{
		scpi.WithBackend(backend),
		scpi.WithBaudRate(cfg.Baud),
		scpi.WithTimeout(cfg.Timeout),
	}
	if useTarm {
		opts = append(opts, scpi.WithOpener(cereal.Tarm{}))
	}

	am := k6485.New(cfg.Port, opts...)
	am.SetLineFreq(cfg.LineFreq)

	log.Info().Str("port", cfg.Port).Str("rid", am.ResourceID()).Msg("connecting")
	if err := am.Connect(); err != nil {
		log.Fatal().Err(err).Msg("could not connect")
	}
	defer func() {
		if err := am.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("disconnect failed")
		}
	}()

	id, err := am.ID()
	if err != nil {
		log.Fatal().Err(err).Msg("identity query failed")
	}
	log.Info().Str("id", id).Msg("connected")

	query, write := cmdlog.Funcs(am.Session)
	switch {
	case queryCmd != "":
		query(queryCmd)

	case writeCmd != "":
		write(writeCmd)

	case zero:
		if err := am.Zero(); err != nil {
			log.Fatal().Err(err).Msg("zero correction failed")
		}
		log.Info().Msg("meter zeroed, auto-ranging enabled")

	case doRun:
		rcfg := cfg.RunSettings()
		if rangeStr != "" {
			rcfg.Range = rangeStr
		}
		if intTime > 0 {
			rcfg.IntegrationTime = intTime
		}
		if readings > 0 {
			rcfg.Readings = readings
		}
		if trigger != "" {
			rcfg.Trigger = trigger
		}
		if outPath != "" {
			rcfg.OutPath = outPath
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := run.New(am, rcfg, log.Logger)
		results, err := runner.Run(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			log.Warn().Msg("run cancelled, partial data saved if readable")
		case err != nil:
			log.Fatal().Err(err).Msg("measurement run failed")
		default:
			log.Info().Int("readings", len(results)).Str("path", rcfg.OutPath).Msg("data saved")
		}

	default:
		flag.Usage()
	}
}
