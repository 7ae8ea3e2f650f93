package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solar3s/gomore/microbit"
	"github.com/solar3s/gomore/web"
)

var (
	rootConfig *web.Config
	log        = logrus.StandardLogger()
)

var (
	device   = flag.String("dev", "", "serial port of a micro:bit running the serial bridge, implies serial transport")
	bleAddr  = flag.String("ble", "", "MAC address of the micro:bit, implies ble transport")
	sim      = flag.Bool("sim", false, "use a simulated micro:bit")
	rootPath = flag.String("root", "", "path to gomore's main directory (defaults to executable path)")
	cfgPath  = flag.String("config", "", "path to config (defaults to <root>/config.toml)")
	verbose  = flag.Bool("v", false, "higher verbosity")
	version  = flag.Bool("version", false, "print version & exit")
)

func init() {
	flag.Parse()

	// print version & exit
	if *version {
		fmt.Printf("gomore %s\n", Version)
		os.Exit(0)
	}

	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *rootPath == "" {
		exe, err := os.Executable()
		if err != nil {
			log.Fatalf("couldn't get path to executable: %s", err)
		}
		*rootPath = filepath.Dir(exe)
	}
	if *cfgPath == "" {
		*cfgPath = filepath.Join(*rootPath, "config.toml")
	}

	var err error
	rootConfig, err = web.ReadConfig(*cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("error reading config \"%s\": %s", *cfgPath, err)
		}
		rootConfig = web.NewConfig()
		err = web.WriteConfig(rootConfig, *cfgPath)
		if err != nil {
			log.Fatalf("error creating config \"%s\": %s", *cfgPath, err)
		}
		log.Infof("created new config file \"%s\"", *cfgPath)
	}

	switch {
	case *sim:
		rootConfig.Device.Transport = web.TransportSim
	case *device != "":
		rootConfig.Device.Transport = web.TransportSerial
		rootConfig.Driver.Peripheral = *device
	case *bleAddr != "":
		rootConfig.Device.Transport = web.TransportBLE
		rootConfig.Driver.Peripheral = *bleAddr
	}
	if *verbose {
		rootConfig.Web.Verbose = true
	}
	if err := rootConfig.Validate(); err != nil {
		log.Fatalf("invalid config \"%s\": %s", *cfgPath, err)
	}

	log.Infof("using config file: %s", *cfgPath)
}

// newTransport returns the transport named by the config, and for the
// simulator a function running its telemetry generator.
func newTransport(cfg *web.Config) (microbit.Transport, func(context.Context)) {
	switch cfg.Device.Transport {
	case web.TransportSerial:
		mode := cfg.Serial
		return microbit.NewSerial(&mode, log), nil
	case web.TransportSim:
		s := microbit.NewSimulator(nil)
		s.SetHold(time.Duration(cfg.Device.SimHold))
		return s, func(ctx context.Context) {
			s.Run(ctx, time.Duration(cfg.Device.SimInterval))
		}
	default:
		return microbit.NewBLE(nil, log), nil
	}
}

func main() {
	transport, run := newTransport(rootConfig)
	d, err := microbit.NewDriver(transport, &rootConfig.Driver,
		microbit.WithLogger(log),
		microbit.WithLinkLostHandler(func(err error) {
			log.WithError(err).Warn("micro:bit link lost")
		}),
	)
	if err != nil {
		log.Fatalf("error initializing micro:bit driver: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if run != nil {
		go run(ctx)
	}

	connCtx, connCancel := context.WithTimeout(ctx, time.Duration(rootConfig.Watcher.ConnectTimeout))
	err = d.Connect(connCtx)
	connCancel()
	if err != nil {
		log.Warnf("no micro:bit on %s \"%s\": %s", rootConfig.Device.Transport, rootConfig.Driver.Peripheral, err)
	}

	var watcher *microbit.Watcher
	if rootConfig.Device.Reconnect {
		log.Infof("starting conn watcher (poll rate: %s)", rootConfig.Watcher.ConnPollRate)
		watcher = microbit.NewWatcher(d, &rootConfig.Watcher)
		watcher.WatchConn()
	}

	log.Infof("starting webserver on http://%s ...", rootConfig.Web.ListenAddr)
	srv := web.NewServer(Version, d, rootConfig, log)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Fatalf("http.ListenAndServe: %s", err)
		}
	}()

	// small delay to allow for a listen failure
	<-time.After(time.Millisecond * 500)
	log.Info("Press <Ctrl-C> to quit")

	trap := make(chan os.Signal, 1)
	signal.Notify(trap, syscall.SIGTERM, os.Interrupt)
	<-trap
	fmt.Println()
	log.Info("quit received...")

	cleanExit := make(chan struct{})
	go func() {
		if watcher != nil {
			watcher.Stop()
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("in srv.Shutdown")
		}
		if d.IsConnected() {
			// leave the display dark
			d.DisplayMatrix([microbit.MatrixRows]uint8{})
			if err := d.Disconnect(); err != nil {
				log.WithError(err).Warn("in d.Disconnect")
			}
		}
		cancel()
		close(cleanExit)
	}()
	select {
	case <-time.After(time.Second * 10):
		log.Panicln("no clean exit after 10sec, please report panic log to https://github.com/solar3s/gomore/issues")
	case <-cleanExit:
	}
}
