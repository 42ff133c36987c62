package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gamebot/internal/adapters/repository"
	"github.com/okian/gamebot/internal/domain/ledger"
	"github.com/okian/gamebot/internal/domain/model"
	"github.com/okian/gamebot/internal/domain/normalize"
	"github.com/okian/gamebot/internal/domain/resolve"
	"github.com/okian/gamebot/internal/domain/scoring"
)

const repoName = "ptatg/senior-design"

// stubDiffs answers compare calls from a table keyed by "base...head".
// When gate is set every call blocks until it is closed.
type stubDiffs struct {
	mu      sync.Mutex
	calls   int
	changes map[string]int
	fail    error
	entered chan struct{}
	gate    chan struct{}
}

func (d *stubDiffs) CompareRange(ctx context.Context, _, base, head string) ([]resolve.FileChange, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.entered != nil {
		select {
		case d.entered <- struct{}{}:
		default:
		}
	}
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.fail != nil {
		return nil, d.fail
	}
	return []resolve.FileChange{{Filename: "main.go", Changes: d.changes[base+"..."+head]}}, nil
}

func (d *stubDiffs) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func fixtureDiffs() *stubDiffs {
	return &stubDiffs{changes: map[string]int{
		"111111111111...aaaaaaaaaaaa": 10,
		"bbbbbbbbbbbb...cccccccccccc": 5,
	}}
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return b
}

// waitForEntry polls until username has at least exp experience.
func waitForEntry(s *Service, username string, exp int64) (ledger.Entry, error) {
	deadline := time.Now().Add(2 * time.Second)
	key := ledger.Key{RepoFullName: repoName, Username: username}
	for {
		e, err := s.store.Find(context.Background(), key)
		if err == nil && e.Experience >= exp {
			return e, nil
		}
		if time.Now().After(deadline) {
			if err == nil {
				err = errors.New("experience not reached")
			}
			return e, err
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newStarted(opts ...Option) (*Service, *repository.MemoryStore) {
	store := repository.NewMemoryStore(context.Background())
	s := New(append([]Option{WithStore(store), WithWorkerCount(2), WithQueueSize(16)}, opts...)...)
	_ = s.Start(context.Background())
	return s, store
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		s := New()
		defer s.Stop()

		Convey("Accept fails with ErrNotStarted", func() {
			_, _, err := s.Accept(context.Background(), "push", "", "d-1", []byte(`{}`))
			So(errors.Is(err, ErrNotStarted), ShouldBeTrue)
		})

		Convey("Stats report the configuration", func() {
			stats := s.GetStats()
			So(stats["started"], ShouldBeFalse)
			So(stats["strategy"], ShouldEqual, string(scoring.DiffWeighted))
			So(stats["dedupeEnabled"], ShouldBeTrue)
		})

		Convey("Starting without a diff provider is refused", func() {
			err := s.Start(context.Background())
			So(errors.Is(err, ErrNoDiffProvider), ShouldBeTrue)
			So(s.GetStats()["started"], ShouldBeFalse)
		})
	})

	Convey("Given a service with a diff provider", t, func() {
		s := New(WithDiffProvider(fixtureDiffs()))
		defer s.Stop()

		Convey("Starting twice is harmless", func() {
			So(s.Start(context.Background()), ShouldBeNil)
			So(s.Start(context.Background()), ShouldBeNil)
			So(s.GetStats()["started"], ShouldBeTrue)
		})
	})

	Convey("Given the flat strategy without a diff provider", t, func() {
		s := New(WithStrategy(scoring.Flat))
		defer s.Stop()

		Convey("Start succeeds", func() {
			So(s.Start(context.Background()), ShouldBeNil)
		})
	})
}

func TestServiceRequiresDiffsForWeightedPushes(t *testing.T) {
	Convey("Given a diff_weighted service built without a diff provider", t, func() {
		s := New()
		defer s.Stop()
		ctx := context.Background()

		Convey("A push is refused instead of scored without changed lines", func() {
			push, err := s.Normalize("push", "", fixture(t, "push.json"))
			So(err, ShouldBeNil)
			_, inc, err := s.Evaluate(ctx, "p-1", push)
			So(errors.Is(err, ErrNoDiffProvider), ShouldBeTrue)
			So(errors.Is(err, resolve.ErrDiffUnavailable), ShouldBeTrue)
			So(inc, ShouldResemble, ledger.Increment{})
		})

		Convey("A closed issue still earns its flat award", func() {
			issue, err := s.Normalize("issues", "closed", fixture(t, "issues_closed.json"))
			So(err, ShouldBeNil)
			scored, _, err := s.Evaluate(ctx, "i-1", issue)
			So(err, ShouldBeNil)
			So(scored.ExperienceAwarded, ShouldEqual, scoring.IssueClosedAward)
		})
	})
}

func TestServiceApplyWritesAuditAfterMerge(t *testing.T) {
	Convey("Given a scored closed issue", t, func() {
		s, store := newStarted(WithStrategy(scoring.Flat))
		defer s.Stop()
		ctx := context.Background()
		issue, err := s.Normalize("issues", "closed", fixture(t, "issues_closed.json"))
		So(err, ShouldBeNil)
		scored, inc, err := s.Evaluate(ctx, "i-7", issue)
		So(err, ShouldBeNil)

		Convey("A rejected merge leaves no audit document", func() {
			_, err := s.Apply(ctx, scored, time.Now(), ledger.Increment{Experience: -1})
			So(errors.Is(err, ledger.ErrInvalidIncrement), ShouldBeTrue)
			So(store.Documents(), ShouldBeEmpty)

			Convey("And a later successful apply records exactly one", func() {
				_, err := s.Apply(ctx, scored, time.Now(), inc)
				So(err, ShouldBeNil)
				So(store.Documents(), ShouldHaveLength, 1)
				So(store.Documents()[0].DeliveryID, ShouldEqual, "i-7")
			})
		})
	})
}

func TestServiceScoresDeliveries(t *testing.T) {
	Convey("Given a started service with a diff provider", t, func() {
		diffs := fixtureDiffs()
		s, store := newStarted(WithDiffProvider(diffs))
		defer s.Stop()
		ctx := context.Background()

		Convey("When a push is accepted", func() {
			status, id, err := s.Accept(ctx, "push", "", "push-1", fixture(t, "push.json"))
			So(err, ShouldBeNil)
			So(status, ShouldEqual, AckAccepted)
			So(id, ShouldEqual, "push-1")

			Convey("Then the sender earns 5 + 2*2 + 15", func() {
				e, err := waitForEntry(s, "octocat", 24)
				So(err, ShouldBeNil)
				So(e.Experience, ShouldEqual, 24)
				So(e.Commits, ShouldEqual, 2)
				So(e.IssuesClosed, ShouldEqual, 0)
				So(e.Level, ShouldEqual, 2)
				So(diffs.Calls(), ShouldEqual, 2)
			})

			Convey("Then an audit document lands in the pushes collection", func() {
				_, err := waitForEntry(s, "octocat", 24)
				So(err, ShouldBeNil)
				docs := store.Documents()
				So(docs, ShouldHaveLength, 1)
				So(docs[0].Collection, ShouldEqual, ledger.CollectionPushes)
				So(docs[0].DeliveryID, ShouldEqual, "push-1")
				So(docs[0].Experience, ShouldEqual, 24)

				var body map[string]any
				So(json.Unmarshal(docs[0].Payload, &body), ShouldBeNil)
				So(body["num_commits"], ShouldEqual, float64(2))
				So(body["username"], ShouldEqual, "octocat")
				So(body["repo_full_name"], ShouldEqual, repoName)
			})

			Convey("Then a redelivery with the same id is a duplicate", func() {
				status, _, err := s.Accept(ctx, "push", "", "push-1", fixture(t, "push.json"))
				So(err, ShouldBeNil)
				So(status, ShouldEqual, AckDuplicate)
			})
		})

		Convey("When an issue is closed", func() {
			status, _, err := s.Accept(ctx, "issues", "closed", "issue-1", fixture(t, "issues_closed.json"))
			So(err, ShouldBeNil)
			So(status, ShouldEqual, AckAccepted)

			Convey("Then the sender earns 40", func() {
				e, err := waitForEntry(s, "mona", 40)
				So(err, ShouldBeNil)
				So(e.IssuesClosed, ShouldEqual, 1)
				So(e.Commits, ShouldEqual, 0)
				So(e.Level, ShouldEqual, 3)

				entry, err := s.Entry(ctx, repoName, "mona")
				So(err, ShouldBeNil)
				So(entry.Experience, ShouldEqual, 40)
			})
		})

		Convey("When both deliveries are scored the leaderboard ranks them", func() {
			_, _, err := s.Accept(ctx, "push", "", "push-2", fixture(t, "push.json"))
			So(err, ShouldBeNil)
			_, _, err = s.Accept(ctx, "issues", "closed", "issue-2", fixture(t, "issues_closed.json"))
			So(err, ShouldBeNil)
			_, err = waitForEntry(s, "octocat", 24)
			So(err, ShouldBeNil)
			_, err = waitForEntry(s, "mona", 40)
			So(err, ShouldBeNil)

			board, err := s.Leaderboard(ctx, repoName, 10)
			So(err, ShouldBeNil)
			So(board.Entries, ShouldHaveLength, 2)
			So(board.Entries[0].Username, ShouldEqual, "mona")
			So(board.Entries[0].Rank, ShouldEqual, 1)
			So(board.Entries[1].Username, ShouldEqual, "octocat")
		})

		Convey("When the delivery id is missing one is generated", func() {
			status, id, err := s.Accept(ctx, "issues", "closed", "", fixture(t, "issues_closed.json"))
			So(err, ShouldBeNil)
			So(status, ShouldEqual, AckAccepted)
			So(id, ShouldNotBeEmpty)
		})

		Convey("When the event is not scored it is ignored", func() {
			status, _, err := s.Accept(ctx, "issues", "reopened", "x-1", fixture(t, "issues_closed.json"))
			So(err, ShouldBeNil)
			So(status, ShouldEqual, AckIgnored)

			status, _, err = s.Accept(ctx, "star", "created", "x-2", []byte(`{}`))
			So(err, ShouldBeNil)
			So(status, ShouldEqual, AckIgnored)
		})

		Convey("When the payload is malformed it is rejected", func() {
			_, _, err := s.Accept(ctx, "push", "", "bad-1", []byte(`{"ref": 3}`))
			So(errors.Is(err, normalize.ErrMalformedPayload), ShouldBeTrue)

			Convey("And its id is not remembered", func() {
				status, _, err := s.Accept(ctx, "push", "", "bad-1", fixture(t, "push.json"))
				So(err, ShouldBeNil)
				So(status, ShouldEqual, AckAccepted)
			})
		})
	})
}

func TestServiceDiffFailure(t *testing.T) {
	Convey("Given a diff provider that fails", t, func() {
		diffs := fixtureDiffs()
		diffs.fail = errors.New("github unavailable")
		s, store := newStarted(WithDiffProvider(diffs))
		defer s.Stop()
		ctx := context.Background()

		Convey("When a push is processed directly", func() {
			push, err := s.Normalize("push", "", fixture(t, "push.json"))
			So(err, ShouldBeNil)
			s.deduper.SeenAndRecord(ctx, "push-9")
			err = s.Process(ctx, model.Delivery{ID: "push-9", ReceivedAt: time.Now(), Event: push})

			Convey("Then nothing is applied and the id can be redelivered", func() {
				So(errors.Is(err, resolve.ErrDiffUnavailable), ShouldBeTrue)
				_, err := s.Entry(ctx, repoName, "octocat")
				So(errors.Is(err, ledger.ErrNotFound), ShouldBeTrue)
				So(store.Documents(), ShouldBeEmpty)
				So(s.deduper.SeenAndRecord(ctx, "push-9"), ShouldBeFalse)
			})
		})
	})
}

func TestServiceFlatStrategy(t *testing.T) {
	Convey("Given the flat strategy", t, func() {
		diffs := fixtureDiffs()
		s, _ := newStarted(WithStrategy(scoring.Flat), WithDiffProvider(diffs))
		defer s.Stop()

		Convey("A push earns 10 + 4*2 without fetching diffs", func() {
			push, err := s.Normalize("push", "", fixture(t, "push.json"))
			So(err, ShouldBeNil)
			scored, inc, err := s.Evaluate(context.Background(), "p", push)
			So(err, ShouldBeNil)
			So(scored.ExperienceAwarded, ShouldEqual, 18)
			So(inc.Commits, ShouldEqual, 2)
			So(diffs.Calls(), ShouldEqual, 0)
			for _, c := range scored.ResolvedCommits {
				So(c.Classification, ShouldEqual, model.Unclassified)
			}
		})
	})
}

func TestServiceDedupeDisabled(t *testing.T) {
	Convey("Given deduplication turned off", t, func() {
		s, _ := newStarted(WithStrategy(scoring.Flat), WithDedupeEnabled(false))
		defer s.Stop()
		ctx := context.Background()

		Convey("The same delivery id is applied twice", func() {
			for range 2 {
				status, _, err := s.Accept(ctx, "issues", "closed", "same", fixture(t, "issues_closed.json"))
				So(err, ShouldBeNil)
				So(status, ShouldEqual, AckAccepted)
			}
			e, err := waitForEntry(s, "mona", 80)
			So(err, ShouldBeNil)
			So(e.IssuesClosed, ShouldEqual, 2)
		})
	})
}

func TestServiceBackpressure(t *testing.T) {
	Convey("Given one busy worker and a queue of one", t, func() {
		diffs := fixtureDiffs()
		diffs.entered = make(chan struct{}, 1)
		diffs.gate = make(chan struct{})
		store := repository.NewMemoryStore(context.Background())
		s := New(WithStore(store), WithWorkerCount(1), WithQueueSize(1), WithDiffProvider(diffs), WithDiffConcurrency(1))
		So(s.Start(context.Background()), ShouldBeNil)
		defer s.Stop()
		ctx := context.Background()
		body := fixture(t, "push.json")

		_, _, err := s.Accept(ctx, "push", "", "p-1", body)
		So(err, ShouldBeNil)
		<-diffs.entered
		_, _, err = s.Accept(ctx, "push", "", "p-2", body)
		So(err, ShouldBeNil)

		Convey("The next delivery is refused and forgotten", func() {
			_, _, err := s.Accept(ctx, "push", "", "p-3", body)
			So(errors.Is(err, ErrBackpressure), ShouldBeTrue)

			close(diffs.gate)
			_, err = waitForEntry(s, "octocat", 48)
			So(err, ShouldBeNil)

			status, _, err := s.Accept(ctx, "push", "", "p-3", body)
			So(err, ShouldBeNil)
			So(status, ShouldEqual, AckAccepted)
		})
	})
}
