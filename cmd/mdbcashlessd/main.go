// Command mdbcashlessd runs a single MDB cashless-device peripheral against
// a real serial port, printing decoded bus traffic and accepting vend
// decisions over stdin.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/vendbus/mdbcashless/mdb"
	"github.com/vendbus/mdbcashless/serial"
)

func main() {
	configPath := pflag.StringP("config", "c", "mdbcashlessd.yaml", "Path to YAML configuration file.")
	device := pflag.StringP("device", "d", "", "Serial device path, overrides the config file.")
	logLevel := pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mdbcashlessd - an MDB cashless-device peripheral daemon.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: mdbcashlessd [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "path", *configPath, "err", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Device = *device
	}

	port, err := openMDBPort(cfg.Device)
	if err != nil {
		logger.Error("failed to open serial device", "device", cfg.Device, "err", err)
		os.Exit(1)
	}

	p := mdb.NewPeripheral(port,
		mdb.WithSlot(cfg.slotValue()),
		mdb.WithReaderConfig(cfg.readerConfigValue()),
		mdb.WithIdentity(cfg.identityValue()),
		mdb.WithLogger(logger),
		mdb.WithReadTimeout(time.Duration(cfg.ReadTimeoutMS)*time.Millisecond),
		mdb.WithAutoRestartSession(cfg.AutoRestartSession),
		mdb.WithSurfaceBusNoise(cfg.SurfaceBusNoise),
		mdb.WithScale(int(cfg.ReaderConfig.ScaleFactor)),
	)
	p.Start()
	logger.Info("peripheral started", "device", cfg.Device, "slot", cfg.Slot)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go consoleCommands(p, logger)

	for {
		select {
		case ev, ok := <-p.Events():
			if !ok {
				logger.Warn("event stream closed, exiting")
				return
			}
			logEvent(logger, ev)
		case <-sigCh:
			logger.Info("shutting down")
			if err := p.Stop(); err != nil {
				logger.Error("error during shutdown", "err", err)
			}
			return
		}
	}
}

func openMDBPort(path string) (*serial.Port, error) {
	port, err := serial.Open(path, serial.NewOptions().SetReadTimeout(10*time.Millisecond))
	if err != nil {
		return nil, err
	}
	attrs, err := port.GetAttr()
	if err != nil {
		return nil, err
	}
	attrs.MakeRaw()
	attrs.SetSpeed(serial.B9600)
	attrs.Cflag |= serial.CREAD | serial.CLOCAL
	attrs.SetParityMarkingInput()
	if err := port.SetAttr(serial.TCSANOW, attrs); err != nil {
		return nil, err
	}
	if err := port.SetParitySpace(); err != nil {
		return nil, err
	}
	return port, nil
}

func logEvent(logger *log.Logger, ev mdb.Event) {
	switch ev.Kind {
	case mdb.EventTerminal:
		logger.Error("peripheral stopped", "detail", ev.Detail, "err", ev.Err)
	case mdb.EventProtocolWarning:
		logger.Warn("protocol warning", "detail", ev.Detail, "tag", ev.Command.Tag)
	default:
		logger.Info("command", "tag", ev.Command.Tag, "slot", ev.Command.Slot)
	}
}

// consoleCommands offers a minimal line-oriented control surface over
// stdin, so the daemon can be driven manually during bench testing:
//
//	start <cents>     begin a session with a known balance
//	start unknown     begin a session with an unknown balance
//	approve <cents>   approve the pending vend
//	deny              deny the pending vend
//	end               end the current session
//	cancel            report a reader-initiated cancellation
func consoleCommands(p *mdb.Peripheral, logger *log.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "start":
			if len(fields) == 2 && fields[1] == "unknown" {
				err = p.StartSession(0, false)
			} else if len(fields) == 2 {
				cents, perr := strconv.Atoi(fields[1])
				if perr != nil {
					logger.Warn("invalid amount", "input", fields[1])
					continue
				}
				err = p.StartSession(mdb.Money(cents), true)
			}
		case "approve":
			if len(fields) == 2 {
				cents, perr := strconv.Atoi(fields[1])
				if perr != nil {
					logger.Warn("invalid amount", "input", fields[1])
					continue
				}
				err = p.ApproveVend(mdb.Money(cents))
			}
		case "deny":
			err = p.DenyVend()
		case "end":
			err = p.EndSession()
		case "cancel":
			err = p.Cancel()
		default:
			logger.Warn("unrecognised console command", "input", fields[0])
			continue
		}
		if err != nil {
			logger.Warn("console command rejected", "err", err)
		}
	}
}
