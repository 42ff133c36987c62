package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/okian/gamebot/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.DedupeEnabled, convey.ShouldBeTrue)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.ScoringStrategy, convey.ShouldEqual, "diff_weighted")
			convey.So(cfg.LedgerDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New(context.Background())

		cases := map[string]func(*config.Config){
			"empty addr":               func(c *config.Config) { c.Addr = "" },
			"zero workers":             func(c *config.Config) { c.WorkerCount = 0 },
			"zero queue":               func(c *config.Config) { c.QueueSize = 0 },
			"zero payload limit":       func(c *config.Config) { c.MaxPayloadBytes = 0 },
			"unknown strategy":         func(c *config.Config) { c.ScoringStrategy = "lines_only" },
			"relative github url":      func(c *config.Config) { c.GitHubAPIURL = "api.github.com" },
			"unknown driver":           func(c *config.Config) { c.LedgerDriver = "mongo" },
			"sqlite without path":      func(c *config.Config) { c.LedgerDriver, c.SQLitePath = config.DriverSQLite, "" },
			"postgres without url":     func(c *config.Config) { c.LedgerDriver = config.DriverPostgres },
			"zero ledger retries":      func(c *config.Config) { c.LedgerMaxRetries = 0 },
			"negative github retries":  func(c *config.Config) { c.GitHubMaxRetries = -1 },
			"zero leaderboard maximum": func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
		}
		for name, mutate := range cases {
			convey.Convey("Then "+name+" is rejected", func() {
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then a disabled dedupe cache may have no size", func() {
			cfg.DedupeEnabled = false
			cfg.DedupeSize = 0
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
