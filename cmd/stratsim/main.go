package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/quantetra/stratsim/backtest"
	"github.com/quantetra/stratsim/config"
	"github.com/quantetra/stratsim/data/kline"
	clickhouseloader "github.com/quantetra/stratsim/data/kline/clickhouse"
	"github.com/quantetra/stratsim/log"
	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/strategies/doublesma"
	"github.com/quantetra/stratsim/strategies/rsi"
	"github.com/quantetra/stratsim/strategy"
)

const version = "0.1.0"

// strategyBuilders maps config strategy names to constructors fed from the
// config's settings map
var strategyBuilders = map[string]func(c *config.Config) strategy.Template{
	rsi.Name: func(c *config.Config) strategy.Template {
		return rsi.New(rsi.Settings{
			Period:      int(c.Setting("period", rsi.DefaultPeriod)),
			Low:         c.Setting("low", rsi.DefaultLow),
			High:        c.Setting("high", rsi.DefaultHigh),
			Volume:      c.Setting("volume", rsi.DefaultVolume),
			PriceOffset: c.Setting("price-offset", 0),
		})
	},
	doublesma.Name: func(c *config.Config) strategy.Template {
		return doublesma.New(doublesma.Settings{
			FastPeriod:  int(c.Setting("fast-period", doublesma.DefaultFastPeriod)),
			SlowPeriod:  int(c.Setting("slow-period", doublesma.DefaultSlowPeriod)),
			Volume:      c.Setting("volume", doublesma.DefaultVolume),
			PriceOffset: c.Setting("price-offset", 0),
		})
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "stratsim"
	app.Version = version
	app.Usage = "run trading strategies against historical candle data"
	app.Commands = []*cli.Command{
		{
			Name:      "run",
			Usage:     "execute a backtest described by a JSON config file",
			ArgsUsage: "<config file>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Usage:   "path to the run config",
					Value:   "config.json",
				},
				&cli.StringFlag{
					Name:  "env",
					Usage: "path to a .env file with data store credentials",
				},
				&cli.BoolFlag{
					Name:    "verbose",
					Aliases: []string{"v"},
					Usage:   "enable debug logging",
				},
				&cli.DurationFlag{
					Name:  "timeout",
					Usage: "abort the run after this duration",
				},
			},
			Action: runBacktest,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorf(log.Global, "stratsim: %v", err)
		os.Exit(1)
	}
}

func runBacktest(c *cli.Context) error {
	if envPath := c.String("env"); envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else {
		// a missing default .env is fine
		_ = godotenv.Load()
	}
	if c.Bool("verbose") {
		enableDebugLogging()
	}

	cfgPath := c.String("config")
	if c.Args().Present() {
		cfgPath = c.Args().First()
	}
	cfg, err := config.ReadConfigFromFile(cfgPath)
	if err != nil {
		return err
	}

	builder, ok := strategyBuilders[cfg.Strategy.Name]
	if !ok {
		return fmt.Errorf("unknown strategy %q", cfg.Strategy.Name)
	}

	params, err := cfg.Parameters()
	if err != nil {
		return err
	}

	ctx := c.Context
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	bars, err := loadBars(ctx, cfg, params.Instrument, params.Interval, params.Start, params.End)
	if err != nil {
		return err
	}
	log.Infof(log.Global, "loaded %v bars for %v", len(bars), params.Instrument)

	bt := backtest.New()
	if err := bt.SetParameters(params); err != nil {
		return err
	}
	if err := bt.SetHistoryData(bars); err != nil {
		return err
	}
	if err := bt.AddStrategy(builder(cfg)); err != nil {
		return err
	}

	start := time.Now()
	if err := bt.Run(ctx); err != nil {
		return err
	}
	log.Infof(log.Global, "run completed in %v", time.Since(start).Round(time.Millisecond))

	if _, err := bt.CalculateResult(); err != nil {
		return err
	}
	_, err = bt.CalculateStatistics(true)
	return err
}

func loadBars(ctx context.Context, cfg *config.Config, i market.Instrument, interval market.Interval, start, end time.Time) ([]market.Bar, error) {
	if cfg.Data.ClickHouse != nil {
		loader, err := clickhouseloader.NewLoader(ctx, *cfg.Data.ClickHouse)
		if err != nil {
			return nil, err
		}
		defer loader.Close()
		return loader.LoadBars(ctx, i, interval, start, end)
	}
	bars, err := kline.LoadCSV(cfg.Data.CSVPath, i, interval)
	if err != nil {
		return nil, err
	}
	return kline.FilterRange(bars, start, end)
}

func enableDebugLogging() {
	debug := log.Levels{Debug: true, Info: true, Warn: true, Error: true}
	for _, sl := range []*log.SubLogger{
		log.Global, log.Backtest, log.Portfolio, log.Strategy,
		log.Statistics, log.Data, log.Config,
	} {
		sl.SetLevels(debug)
	}
}
