package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	lupi "github.com/lupi-os/lupi"
	"github.com/lupi-os/lupi/internal/boardinfo"
	"github.com/lupi-os/lupi/internal/hosted"
	"github.com/lupi-os/lupi/internal/logging"
)

func main() {
	var (
		ramMB   = flag.Int("ram", 16, "simulated RAM size in megabytes")
		mmu     = flag.Bool("mmu", true, "boot with the full MMU manager instead of MPU-only")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	k := lupi.NewKernel(lupi.Config{
		RAMBytes:   uint64(*ramMB) << 20,
		MMUPresent: *mmu,
		Board: boardinfo.Info{
			RAMBytes:      uint64(*ramMB) << 20,
			BootMode:      0,
			ScreenWidth:   320,
			ScreenHeight:  240,
			ScreenFormat:  16,
			Version:       "lupi-boot dev",
			BoardRevision: "hosted",
		},
	})

	console, err := hosted.NewRawConsole(os.Stdin, k.UART)
	if err != nil {
		logger.Error("failed to enter raw console mode", "error", err)
		os.Exit(1)
	}
	defer console.Restore()
	k.Dispatch.Console = console

	ticker := hosted.NewTicker(k.Tick)
	defer ticker.Stop()

	go console.Run(os.Stdin)
	defer console.Stop()

	fmt.Fprintf(os.Stdout, "LuPi boot menu. RAM=%dMB mmu=%v\r\n", *ramMB, *mmu)
	fmt.Fprintf(os.Stdout, "Enter/0 start interpreter, 1 debugger, 3-5 user apps,\r\n")
	fmt.Fprintf(os.Stdout, "a/b/m/t/y self-tests, r or Ctrl-X reboot.\r\n")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		b, ok := pollMenuKey(k)
		if !ok {
			select {
			case <-sigCh:
				logger.Info("received shutdown signal")
				k.Shutdown()
				return
			default:
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}
		if handleMenuKey(k, logger, b) {
			return
		}
	}
}

// pollMenuKey drains one buffered byte from the UART ring without
// blocking the boot-menu loop on a kernel Getch SVC.
func pollMenuKey(k *lupi.Kernel) (byte, bool) {
	return k.UART.TryGetch()
}

// handleMenuKey dispatches one boot-menu selection, per spec.md §6's
// key table. Returns true if the loop should exit (reboot).
func handleMenuKey(k *lupi.Kernel, logger *logging.Logger, b byte) bool {
	switch b {
	case '\r', '\n', '0':
		logger.Info("starting interpreter process")
		if _, err := k.Boot("interpreter"); err != nil {
			logger.Error("failed to start interpreter", "error", err)
		}
	case '1':
		logger.Info("debugger overlay requested (external collaborator, not booted)")
	case '3', '4', '5':
		name := fmt.Sprintf("app%c", b)
		logger.Info("starting user application", "name", name)
		if _, err := k.Boot(name); err != nil {
			logger.Error("failed to start application", "error", err, "name", name)
		}
	case 'a', 'b', 'm', 't', 'y':
		logger.Info("running self-test", "suite", string(b))
		runSelfTest(k, logger, b)
	case 'r', 0x18: // Ctrl-X
		logger.Info("reboot requested")
		k.Shutdown()
		return true
	}
	return false
}

// runSelfTest boots a throwaway process standing in for one of the
// kernel self-test suites spec.md §6 lists by key letter.
func runSelfTest(k *lupi.Kernel, logger *logging.Logger, suite byte) {
	name := fmt.Sprintf("selftest-%c", suite)
	p, err := k.Boot(name)
	if err != nil {
		logger.Error("self-test failed to start", "error", err, "suite", string(suite))
		return
	}
	logger.Info("self-test process started", "pid", p.PID(), "suite", string(suite))
}
