package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/CodedInternet/gorover/comms"
	"github.com/CodedInternet/gorover/onboard"
	"github.com/CodedInternet/gorover/onboard/hardware"
	"github.com/CodedInternet/gorover/onboard/input"
	"github.com/abiosoft/ishell"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"
)

type EnvConfig struct {
	CONFIG  string `env:"ROVER_CONFIG" envDefault:"./rover_config.yaml"`
	DEBUG   bool   `env:"ROVER_DEBUG" envDefault:"0"`
	HTMLDIR string `env:"ROVER_HTMLDIR" envDefault:"./frontend/dist/"`
	SIM     bool   `env:"ROVER_SIM" envDefault:"0"`

	Rover     *onboard.Rover
	Conductor *comms.Conductor
	Board     *onboard.SimulatedBoard
}

var (
	ENV *EnvConfig
)

func init() {
	ENV = new(EnvConfig)
	if err := env.Parse(ENV); err != nil {
		log.WithError(err).Fatal("unable to parse environment")
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if ENV.DEBUG {
		log.SetLevel(log.DebugLevel)
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "gorover"
	app.Usage = "drive a two wheeled rover from a gamepad or the dashboard"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: ENV.CONFIG,
			Usage: "path to the rover config",
		},
		cli.StringFlag{
			Name:  "listen",
			Value: "0.0.0.0:80",
			Usage: "ip:port for the dashboard",
		},
		cli.BoolFlag{
			Name:  "sim",
			Usage: "drive a simulated board instead of the serial port",
		},
		cli.StringFlag{
			Name:  "joystick",
			Usage: "joystick device, overrides the config",
		},
		cli.BoolFlag{
			Name:  "shell",
			Usage: "start the development shell",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	config, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	simulated := ENV.SIM || c.Bool("sim")
	channel, relays, err := buildHardware(config, simulated)
	if err != nil {
		return err
	}

	remote := input.NewRemote()
	sources := input.Merge{remote}
	device := config.Joystick.Device
	if c.String("joystick") != "" {
		device = c.String("joystick")
	}
	if device != "" {
		js, err := input.OpenJoystick(device, config.Joystick.Mapping)
		if err != nil {
			log.WithError(err).Warn("continuing without a joystick")
		} else {
			defer js.Close()
			sources = append(sources, js)
		}
	}

	ENV.Rover, err = onboard.NewRover(config, channel, relays, sources)
	if err != nil {
		return err
	}
	ENV.Conductor = comms.NewConductor(ENV.Rover, remote)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- ENV.Rover.Run(ctx)
	}()

	if config.MQTT.Broker != "" {
		tm := comms.NewTelemetry(config.MQTT)
		tm.Pose = currentPose
		if err := tm.Connect(); err != nil {
			log.WithError(err).Warn("MQTT broker not reachable yet, retrying in the background")
		}
		defer tm.Close()

		states, cancel := ENV.Rover.Subscribe(STATE_BUFFER)
		defer cancel()
		go tm.Run(ctx, states)
	}

	if c.Bool("shell") {
		go newShell().Start()
	}

	srv := &http.Server{
		Addr:    c.String("listen"),
		Handler: NewRouter(ENV.HTMLDIR),
	}
	go func() {
		log.WithField("listen", srv.Addr).Info("dashboard listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("dashboard stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	return <-done
}

func loadConfig(filename string) (onboard.RoverConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		log.WithField("config", filename).Warn("no config file, using defaults")
		return onboard.DefaultConfig(), nil
	}
	return onboard.LoadConfig(filename)
}

func buildHardware(config onboard.RoverConfig, simulated bool) (channel hardware.Channel, relays onboard.Relays, err error) {
	if simulated {
		log.Info("creating simulator")
		ENV.Board = onboard.NewSimulatedBoard(config.Serial.Nodes, config.Presets.High)
		channel, err = hardware.NewMSDEM(ENV.Board, config.Serial.Nodes, 0)
		relays = hardware.NewRelayBank(onboard.NewSimulatedPins(len(config.Relays.Pins)), config.Relays.ActiveLow)
		return
	}

	driver, err := hardware.OpenMSDEM(config.Serial)
	if err != nil {
		return
	}
	bank, err := hardware.OpenRelayBank(config.Relays)
	if err != nil {
		driver.Close()
		return
	}
	return driver, bank, nil
}

func NewRouter(htmlDir string) chi.Router {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", StateHandler)
		r.Post("/speed/{preset}", SpeedHandler)
		r.Post("/light/{button}", LightHandler)
		r.Post("/stop", StopHandler)
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/control", ControlHandler)
		r.Get("/state", StateStreamHandler)
	})

	// add static base routes
	FileServer(r, "/", http.Dir(htmlDir))
	return r
}

func newShell() *ishell.Shell {
	shell := ishell.New()
	shell.Println("Rover development shell")
	shell.ShowPrompt(true)

	moves := map[string]string{
		"f":  "step forward",
		"b":  "step backward",
		"lf": "turn left while going forward",
		"lb": "turn left while going backward",
		"rf": "turn right while going forward",
		"rb": "turn right while going backward",
	}
	for name, help := range moves {
		name := name
		shell.AddCmd(&ishell.Cmd{
			Name: name,
			Help: help,
			Func: func(c *ishell.Context) {
				if err := ENV.Conductor.ProcessCommand(comms.Cmd{Cmd: "move", Value: name}); err != nil {
					c.Err(err)
				}
			},
		})
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "s",
		Help: "coast to a stop",
		Func: func(c *ishell.Context) {
			if err := ENV.Conductor.ProcessCommand(comms.Cmd{Cmd: "stop"}); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "speed",
		Help: "speed [high|low], toggles without an argument",
		Completer: func([]string) []string {
			return []string{"high", "low"}
		},
		Func: func(c *ishell.Context) {
			cmd := comms.Cmd{Cmd: "speed", Value: strings.Join(c.Args, "")}
			if err := ENV.Conductor.ProcessCommand(cmd); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "light",
		Help: "light <L1|L2|R1|R2|off>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: light <L1|L2|R1|R2|off>"))
				return
			}
			if err := ENV.Conductor.ProcessCommand(comms.Cmd{Cmd: "light", Value: c.Args[0]}); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "state",
		Help: "print the current rover state",
		Func: func(c *ishell.Context) {
			msg, err := jsoniter.MarshalIndent(comms.NewStatePayload(ENV.Rover.State(), currentPose()), "", "  ")
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(string(msg))
		},
	})

	return shell
}

// FileServer conveniently sets up a http.FileServer handler to serve
// static files from a http.FileSystem.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit URL parameters.")
	}

	fs := http.StripPrefix(path, http.FileServer(root))

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.ServeHTTP(w, r)
	}))
}
