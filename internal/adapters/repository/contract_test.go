package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gamebot/internal/domain/ledger"
	"github.com/okian/gamebot/internal/domain/level"
)

// runStoreContract exercises the behaviour every Store must share. Each
// scenario uses fresh repository names so shared databases need no reset.
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	Convey("Given a ledger store", t, func() {
		s := open(t)
		Reset(func() { _ = s.Close() })
		repo := "octo/" + uuid.NewString()

		Convey("When an unknown key is looked up", func() {
			_, err := s.Find(ctx, ledger.Key{RepoFullName: repo, Username: "nobody"})

			Convey("Then it is not found", func() {
				So(errors.Is(err, ledger.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a key receives its first increment and then another", func() {
			key := ledger.Key{RepoFullName: repo, Username: "alice"}
			first, err1 := s.ApplyIncrement(ctx, key, ledger.Increment{Commits: 2, Experience: 9}, level.Of)
			second, err2 := s.ApplyIncrement(ctx, key, ledger.Increment{Commits: 1, Experience: 3}, level.Of)
			found, err3 := s.Find(ctx, key)

			Convey("Then the entry is created and then added to", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(err3, ShouldBeNil)
				So(first, ShouldResemble, ledger.Entry{Key: key, Commits: 2, Experience: 9, Level: 1})
				So(second, ShouldResemble, ledger.Entry{Key: key, Commits: 3, Experience: 12, Level: level.Of(12)})
				So(found, ShouldResemble, second)
			})
		})

		Convey("When increments for one key race", func() {
			key := ledger.Key{RepoFullName: repo, Username: "racer"}
			var wg sync.WaitGroup
			errs := make(chan error, 22)
			for _, exp := range []int64{5, 7} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.ApplyIncrement(ctx, key, ledger.Increment{Experience: exp}, level.Of)
					errs <- err
				}()
			}
			for range 20 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.ApplyIncrement(ctx, key, ledger.Increment{Commits: 1, IssuesClosed: 1, Experience: 1}, level.Of)
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			Convey("Then no increment is lost", func() {
				for err := range errs {
					So(err, ShouldBeNil)
				}
				e, err := s.Find(ctx, key)
				So(err, ShouldBeNil)
				So(e.Experience, ShouldEqual, 32)
				So(e.Commits, ShouldEqual, 20)
				So(e.IssuesClosed, ShouldEqual, 20)
				So(e.Level, ShouldEqual, level.Of(32))
			})
		})

		Convey("When several users have experience", func() {
			other := "octo/" + uuid.NewString()
			for user, exp := range map[string]int64{"alice": 10, "bob": 30, "carol": 10, "dave": 5} {
				_, err := s.ApplyIncrement(ctx, ledger.Key{RepoFullName: repo, Username: user}, ledger.Increment{Experience: exp}, level.Of)
				So(err, ShouldBeNil)
			}
			_, err := s.ApplyIncrement(ctx, ledger.Key{RepoFullName: other, Username: "zed"}, ledger.Increment{Experience: 999}, level.Of)
			So(err, ShouldBeNil)

			Convey("Then the leaderboard orders by experience then username", func() {
				board, err := s.Leaderboard(ctx, repo, 3)
				So(err, ShouldBeNil)
				So(usernames(board), ShouldResemble, []string{"bob", "alice", "carol"})
			})

			Convey("Then a later increment moves a user up", func() {
				_, err := s.ApplyIncrement(ctx, ledger.Key{RepoFullName: repo, Username: "dave"}, ledger.Increment{Experience: 40}, level.Of)
				So(err, ShouldBeNil)
				board, err := s.Leaderboard(ctx, repo, 10)
				So(err, ShouldBeNil)
				So(usernames(board), ShouldResemble, []string{"dave", "bob", "alice", "carol"})
				So(board[0].Experience, ShouldEqual, 45)
			})

			Convey("Then other repositories are not mixed in", func() {
				board, err := s.Leaderboard(ctx, other, 10)
				So(err, ShouldBeNil)
				So(usernames(board), ShouldResemble, []string{"zed"})
			})

			Convey("Then a non-positive limit is rejected", func() {
				_, err := s.Leaderboard(ctx, repo, 0)
				So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
			})
		})

		Convey("When audit documents are recorded", func() {
			before, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			doc := ledger.Document{
				ID:         uuid.NewString(),
				Collection: ledger.CollectionPushes,
				DeliveryID: "delivery-1",
				Experience: 23,
				RecordedAt: time.Now(),
				Payload:    []byte(`{"username":"alice","exp_earned":23}`),
			}
			err1 := s.RecordEvent(ctx, doc)
			err2 := s.RecordEvent(ctx, doc)
			after, err := s.Stats(ctx)
			So(err, ShouldBeNil)

			Convey("Then each document id is written once", func() {
				So(err1, ShouldBeNil)
				So(errors.Is(err2, ErrDuplicateDocument), ShouldBeTrue)
				So(after.Documents-before.Documents, ShouldEqual, 1)
			})
		})
	})
}

func usernames(entries []ledger.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key.Username
	}
	return out
}
