package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	serial "github.com/jacobsa/go-serial/serial"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relabs-tech/shake_monitor/internal/app"
	"github.com/relabs-tech/shake_monitor/internal/config"
	"github.com/relabs-tech/shake_monitor/internal/logging"
	"github.com/relabs-tech/shake_monitor/internal/sensors"
	"github.com/relabs-tech/shake_monitor/internal/ui"
)

var (
	flagConfig  string
	flagSource  string
	flagConsole bool
	flagPort    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shakemon",
		Short: "Shake Monitor - accelerometer tilt, shake and proximity feedback",
		Long: `Shake Monitor reads accelerometer and proximity samples, detects shakes,
tracks a calibrated tilt and maps everything onto display colors.

Frames are served over HTTP/websocket and optionally published to MQTT
and drawn on an SSD1306 OLED.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to KEY=VALUE config file (defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&flagSource, "source", "", "Override SOURCE (mock, mpu9250, serial)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitor headless",
		RunE:  runMonitor,
	}
	runCmd.Flags().BoolVar(&flagConsole, "console", false, "Print frames to stdout")

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the monitor with a terminal dashboard",
		RunE:  runTUI,
	}

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "Print frames and shakes published on MQTT",
		RunE:  runConsole,
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write generated serial bridge sentences to stdout or a serial port",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().StringVar(&flagPort, "port", "", "Serial port to write to (stdout when empty)")

	rootCmd.AddCommand(runCmd, tuiCmd, consoleCmd, simulateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.InitGlobal(flagConfig); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Get()
	if flagSource != "" {
		cfg.Source = flagSource
	}
	return cfg, nil
}

func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, "shakemon-"+cmd.Name())
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	p, err := app.NewPipeline(cfg, log)
	if err != nil {
		return err
	}
	if flagConsole {
		p.AddSink(app.NewConsoleSink(os.Stdout, 100))
	}

	log.Info("starting shake monitor", zap.String("source", cfg.Source))
	return p.Run(ctx)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// the dashboard owns the terminal, so logs go to a file
	log, err := logging.NewFileLogger(cfg.LogLevel, "shakemon-tui.log", "shakemon-tui")
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	pipeline, err := app.NewPipeline(cfg, log)
	if err != nil {
		return err
	}
	sink := ui.NewProgramSink()
	pipeline.AddSink(sink)

	p := tea.NewProgram(
		ui.New(pipeline.Monitor),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithFPS(30),
	)

	errc := make(chan error, 1)
	go func() { errc <- pipeline.Run(ctx) }()
	go sink.Forward(ctx, p)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	cancel()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("pipeline did not stop")
	}
}

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	return app.RunConsoleMQTT(ctx, cfg, os.Stdout, log)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	interval := time.Duration(cfg.SampleInterval) * time.Millisecond
	src := sensors.NewMockSource(interval, cfg.ProximityMaxRangeCm, nil)

	if flagPort == "" {
		return app.RunSimulator(ctx, src, os.Stdout)
	}

	port, err := serial.Open(serial.OpenOptions{
		PortName:        flagPort,
		BaudRate:        uint(cfg.SerialBaudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", flagPort, err)
	}
	defer port.Close()

	log.Info("simulating sensor bridge", zap.String("port", flagPort))
	return app.RunSimulator(ctx, src, port)
}
