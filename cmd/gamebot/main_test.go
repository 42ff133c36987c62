package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/gamebot/internal/adapters/repository"
	"github.com/okian/gamebot/internal/config"
	"github.com/okian/gamebot/internal/domain/model"
	"github.com/okian/gamebot/internal/domain/normalize"
	"github.com/smartystreets/goconvey/convey"
)

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "GAMEBOT_") {
			t.Setenv(name, "")
			_ = os.Unsetenv(name)
		}
	}
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then it exposes serve, replay and level", func() {
			names := map[string]bool{}
			for _, c := range root.Commands() {
				names[c.Name()] = true
			}
			convey.So(names["serve"], convey.ShouldBeTrue)
			convey.So(names["replay"], convey.ShouldBeTrue)
			convey.So(names["level"], convey.ShouldBeTrue)
		})
	})
}

func TestLevelCommand(t *testing.T) {
	convey.Convey("Given the level command", t, func() {
		convey.Convey("When asked for several totals", func() {
			out, err := execute("level", "0", "10", "24", "25", "40")

			convey.Convey("Then it prints one row per total", func() {
				convey.So(err, convey.ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(out), "\n")
				convey.So(lines, convey.ShouldHaveLength, 6)
				convey.So(strings.Fields(lines[1]), convey.ShouldResemble, []string{"0", "1", "10"})
				convey.So(strings.Fields(lines[3]), convey.ShouldResemble, []string{"24", "2", "25"})
				convey.So(strings.Fields(lines[4]), convey.ShouldResemble, []string{"25", "3", "50"})
			})
		})

		convey.Convey("When given a negative total", func() {
			_, err := execute("level", "-5")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestReplayCommand(t *testing.T) {
	convey.Convey("Given the flat strategy", t, func() {
		clearEnv(t)
		t.Setenv("GAMEBOT_SCORING_STRATEGY", "flat")

		convey.Convey("When a push is replayed without --apply", func() {
			out, err := execute("replay", "--kind", "push", "--file", filepath.Join("testdata", "push.json"), "--delivery", "r-1")

			convey.Convey("Then the award is printed and nothing is stored", func() {
				convey.So(err, convey.ShouldBeNil)
				var res replayResult
				convey.So(json.Unmarshal([]byte(out), &res), convey.ShouldBeNil)
				convey.So(res.DeliveryID, convey.ShouldEqual, "r-1")
				convey.So(res.Kind, convey.ShouldEqual, model.KindPush)
				convey.So(res.Repository, convey.ShouldEqual, "ptatg/senior-design")
				convey.So(res.Username, convey.ShouldEqual, "octocat")
				convey.So(res.ExpEarned, convey.ShouldEqual, 18)
				convey.So(res.Commits, convey.ShouldHaveLength, 2)
				convey.So(res.Entry, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a closed issue is applied to a sqlite ledger", func() {
			dbPath := filepath.Join(t.TempDir(), "ledger.db")
			t.Setenv("GAMEBOT_LEDGER_DRIVER", "sqlite")
			t.Setenv("GAMEBOT_SQLITE_PATH", dbPath)

			args := []string{"replay", "--kind", "issues", "--file", filepath.Join("testdata", "issues_closed.json"), "--apply"}
			_, err := execute(args...)
			convey.So(err, convey.ShouldBeNil)
			out, err := execute(args...)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the entry accumulates across runs", func() {
				var res replayResult
				convey.So(json.Unmarshal([]byte(out), &res), convey.ShouldBeNil)
				convey.So(res.ExpEarned, convey.ShouldEqual, 40)
				convey.So(res.Entry, convey.ShouldNotBeNil)
				convey.So(res.Entry.IssuesClosed, convey.ShouldEqual, 2)
				convey.So(res.Entry.Experience, convey.ShouldEqual, 80)
				convey.So(res.Entry.Level, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the action is not scored", func() {
			_, err := execute("replay", "--kind", "issues", "--action", "reopened", "--file", filepath.Join("testdata", "issues_closed.json"))
			convey.So(errors.Is(err, normalize.ErrUnsupportedEvent), convey.ShouldBeTrue)
		})

		convey.Convey("When the file is missing", func() {
			_, err := execute("replay", "--file", filepath.Join("testdata", "missing.json"))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestNewService(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then diff_weighted wires a diff provider", func() {
			svc, err := newService(cfg, repository.NewMemoryStore(context.Background()))
			convey.So(err, convey.ShouldBeNil)
			defer svc.Stop()
			convey.So(svc.GetStats()["fetchesDiffs"], convey.ShouldBeTrue)
		})

		convey.Convey("Then flat scores without one", func() {
			cfg.ScoringStrategy = "flat"
			svc, err := newService(cfg, repository.NewMemoryStore(context.Background()))
			convey.So(err, convey.ShouldBeNil)
			defer svc.Stop()
			convey.So(svc.GetStats()["fetchesDiffs"], convey.ShouldBeFalse)
			convey.So(svc.GetStats()["strategy"], convey.ShouldEqual, "flat")
		})

		convey.Convey("Then an unknown strategy is an error", func() {
			cfg.ScoringStrategy = "random"
			_, err := newService(cfg, repository.NewMemoryStore(context.Background()))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
