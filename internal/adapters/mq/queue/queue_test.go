package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gamebot/internal/domain/model"
)

func delivery(id string) model.Delivery {
	return model.Delivery{ID: id, Event: model.IssueClosed{Sender: model.Actor{Login: "u"}}}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity two", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		So(q.Capacity(), ShouldEqual, 2)
		So(q.Len(), ShouldEqual, 0)

		Convey("When two deliveries are enqueued", func() {
			So(q.Enqueue(ctx, delivery("d1")), ShouldBeNil)
			So(q.Enqueue(ctx, delivery("d2")), ShouldBeNil)

			Convey("Then a third is refused as full", func() {
				err := q.Enqueue(ctx, delivery("d3"))
				So(errors.Is(err, ErrFull), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 2)
			})

			Convey("Then they come out in order", func() {
				So((<-q.Dequeue()).ID, ShouldEqual, "d1")
				So((<-q.Dequeue()).ID, ShouldEqual, "d2")
				So(q.Len(), ShouldEqual, 0)
			})

			Convey("Then closing still lets consumers drain", func() {
				So(q.Close(), ShouldBeNil)
				So(q.Close(), ShouldBeNil)
				So(q.IsClosed(), ShouldBeTrue)
				var ids []string
				for d := range q.Dequeue() {
					ids = append(ids, d.ID)
				}
				So(ids, ShouldResemble, []string{"d1", "d2"})
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue fails with ErrClosed", func() {
				So(errors.Is(q.Enqueue(ctx, delivery("late")), ErrClosed), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then enqueue reports the cancellation", func() {
				So(errors.Is(q.Enqueue(cctx, delivery("x")), context.Canceled), ShouldBeTrue)
			})
		})
	})

	Convey("Given concurrent producers and a close", t, func() {
		q := NewInMemoryQueue(WithCapacity(1000))
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 50 {
					_ = q.Enqueue(ctx, delivery(fmt.Sprintf("%d-%d", i, j)))
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Close()
		}()
		wg.Wait()

		Convey("Then nothing panics and accepted deliveries are readable", func() {
			n := 0
			for range q.Dequeue() {
				n++
			}
			So(n, ShouldBeLessThanOrEqualTo, 400)
		})
	})
}
