// cmd/sunspec-scan/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jwthecolorist/sunspec-scan/internal/cache"
	"github.com/jwthecolorist/sunspec-scan/internal/config"
	"github.com/jwthecolorist/sunspec-scan/internal/engine"
	"github.com/jwthecolorist/sunspec-scan/internal/logging"
	"github.com/jwthecolorist/sunspec-scan/internal/pool"
	"github.com/jwthecolorist/sunspec-scan/internal/retry"
	"github.com/jwthecolorist/sunspec-scan/internal/scan"
	"github.com/jwthecolorist/sunspec-scan/internal/sunspec"
	"github.com/jwthecolorist/sunspec-scan/internal/transport"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to YAML config (defaults apply when empty)")
		mode     = flag.String("mode", "read", "discover | read | write | watch")
		hosts    = flag.String("hosts", "", "address range spec: single, comma list, a.b.c.d-e, CIDR, or 'local'")
		host     = flag.String("host", "", "device address for read/write/watch")
		port     = flag.Int("port", 0, "TCP port (config default when 0)")
		unitSpec = flag.String("units", "", "unit-ID spec for discover: empty = all, N, N,M, A-B")
		unitID   = flag.Int("unit", 1, "unit ID for read/write/watch")
		model    = flag.Int("model", 103, "SunSpec model ID")
		field    = flag.String("field", "W", "field name")
		value    = flag.String("value", "", "value for write mode")
		timeout  = flag.Duration("timeout", 0, "per-operation timeout (config default when 0)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config validation failed: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Engine.LogLevel)

	if *port == 0 {
		*port = cfg.Engine.DefaultPort
	}
	if *timeout == 0 {
		*timeout = time.Duration(cfg.Engine.ReadTimeoutMs) * time.Millisecond
	}

	models, err := sunspec.LoadModels(cfg.Engine.SchemaPath)
	if err != nil {
		log.Fatalf("schema load failed: %v", err)
	}

	store, err := cache.NewFileStore(cfg.Engine.CachePath)
	if err != nil {
		log.Fatalf("cache open failed: %v", err)
	}

	p := pool.New(transport.DialTCP, pool.Config{
		ConnectTimeout: time.Duration(cfg.Engine.ConnectTimeoutMs) * time.Millisecond,
		Cooldown:       time.Duration(cfg.Engine.CooldownMs) * time.Millisecond,
		IdleTimeout:    time.Duration(cfg.Engine.IdleTimeoutMs) * time.Millisecond,
		SweepInterval:  time.Duration(cfg.Engine.SweepIntervalMs) * time.Millisecond,
	}, log)
	defer p.Close()

	eng := engine.New(p, transport.DialTCP, models, store, engine.Config{
		MaxChainHops:    cfg.Engine.MaxChainHops,
		RevalidateCache: cfg.Engine.RevalidateCache,
		RoundDecimals:   cfg.Engine.RoundDecimals,
	}, log)

	switch *mode {
	case "discover":
		if *hosts == "" {
			log.Fatal("discover needs -hosts")
		}
		ss := scan.NewSession()

		// Ctrl-C cancels cooperatively; the scan stops at the next
		// host or unit boundary.
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigs
			log.Info("cancelling scan")
			ss.Cancel()
		}()

		report, err := eng.Discover(ss, *hosts, *port, *timeout, *unitSpec)
		if err != nil {
			log.Fatalf("discover failed: %v", err)
		}
		printJSON(report)
		log.Info(ss.Status())

	case "read":
		requireHost(log, *host)
		v, err := eng.ReadSingleField(*host, *port, uint8(*unitID), uint16(*model), *field, *timeout)
		if err != nil {
			log.Fatalf("read failed: %v", err)
		}
		printValue(v)

	case "write":
		requireHost(log, *host)
		if *value == "" {
			log.Fatal("write needs -value")
		}
		err := eng.WriteField(*host, *port, uint8(*unitID), uint16(*model), *field, parseValue(*value), *timeout)
		if err != nil {
			log.Fatalf("write failed: %v", err)
		}
		log.Infof("wrote %s=%s to model %d on %s unit %d", *field, *value, *model, *host, *unitID)

	case "watch":
		requireHost(log, *host)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sched := retry.New(retry.Config{
			Interval:  time.Duration(cfg.Engine.IntervalMs) * time.Millisecond,
			BaseDelay: time.Duration(cfg.Engine.BackoffBaseMs) * time.Millisecond,
			CapDelay:  time.Duration(cfg.Engine.BackoffCapMs) * time.Millisecond,
		}, log)

		sched.Run(ctx, func(context.Context) error {
			v, err := eng.ReadSingleField(*host, *port, uint8(*unitID), uint16(*model), *field, *timeout)
			if err != nil {
				return err
			}
			printValue(v)
			return nil
		})

	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func requireHost(log interface{ Fatal(...interface{}) }, host string) {
	if host == "" {
		log.Fatal("this mode needs -host")
	}
}

// parseValue keeps write input loose: numbers become numbers, anything
// else is passed through as a string.
func parseValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func printValue(v sunspec.Value) {
	if v.Nil() {
		fmt.Printf("%s = (not implemented)\n", v.Name)
		return
	}
	if v.Units != "" {
		fmt.Printf("%s = %v %s\n", v.Name, v.Value, v.Units)
		return
	}
	fmt.Printf("%s = %v\n", v.Name, v.Value)
}

func printJSON(v interface{}) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		return
	}
	fmt.Println(string(raw))
}
