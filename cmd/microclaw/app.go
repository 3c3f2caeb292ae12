package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/oraraka-deko/microclaw/claw"
	"github.com/oraraka-deko/microclaw/device"
	"github.com/oraraka-deko/microclaw/store"
)

// clawServoPin drives the gripper servo.
const clawServoPin = 13

// app holds the wired engine and its collaborators.
type app struct {
	files    *store.Files
	settings *store.SettingsStore
	board    *device.Board
	claw     *device.Servo
	runner   *claw.ScriptRunner
	agent    *claw.Agent
	registry *prometheus.Registry
	logger   *slog.Logger
}

func openStores(dataDir string) (*store.Files, *store.SettingsStore, error) {
	files, err := store.OpenDir(dataDir)
	if err != nil {
		return nil, nil, err
	}
	settings := store.NewSettingsStore(files)
	if err := settings.Load(store.SettingsFromEnv()); err != nil {
		return nil, nil, err
	}
	return files, settings, nil
}

func newApp(opts *globalOptions, logger *slog.Logger, link device.Link) (*app, error) {
	files, settings, err := openStores(opts.DataDir)
	if err != nil {
		return nil, err
	}
	if err := files.SeedMemory(); err != nil {
		return nil, fmt.Errorf("failed to seed memory: %w", err)
	}

	s := settings.Get()
	cfg := claw.DefaultConfig()
	cfg.GeminiAPIKey = s.GeminiKey
	cfg.GroqAPIKey = s.GroqKey
	cfg.DetectEnv = true

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := claw.NewMetrics(registry)

	board := device.NewBoard()
	servo := device.NewServo(clawServoPin)
	radio := &device.Radio{}
	runner := claw.NewScriptRunner(board).WithLogger(logger.With("component", "script")).WithMetrics(metrics)

	tools := claw.NewToolRegistry()
	if err := claw.RegisterDeviceTools(tools, claw.DeviceTools{
		Pins:    board,
		Claw:    servo,
		WiFi:    radio,
		BLE:     radio,
		Memory:  files,
		Scripts: runner,
	}); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	agent := claw.New(cfg, tools,
		claw.WithLogger(logger.With("component", "agent")),
		claw.WithMemory(files),
		claw.WithPreferences(settings),
		claw.WithLink(link),
		claw.WithMetrics(metrics),
	)

	return &app{
		files:    files,
		settings: settings,
		board:    board,
		claw:     servo,
		runner:   runner,
		agent:    agent,
		registry: registry,
		logger:   logger,
	}, nil
}
