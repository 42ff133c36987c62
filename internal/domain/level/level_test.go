package level_test

import (
	"testing"

	"github.com/okian/gamebot/internal/domain/level"
	. "github.com/smartystreets/goconvey/convey"
)

func TestOf(t *testing.T) {
	Convey("Given the level function", t, func() {
		Convey("Then zero experience is level 1", func() {
			So(level.Of(0), ShouldEqual, 1)
		})

		Convey("Then negative experience is clamped to level 1", func() {
			So(level.Of(-50), ShouldEqual, 1)
		})

		Convey("Then known points map to known levels", func() {
			cases := map[int64]int{
				5:   1,
				9:   1,
				10:  2,
				12:  2,
				25:  3,
				40:  3,
				50:  4,
				505: 11,
			}
			for exp, want := range cases {
				So(level.Of(exp), ShouldEqual, want)
			}
		})

		Convey("Then it is monotonic non-decreasing", func() {
			prev := level.Of(0)
			for exp := int64(1); exp <= 20_000; exp++ {
				cur := level.Of(exp)
				So(cur, ShouldBeGreaterThanOrEqualTo, prev)
				prev = cur
			}
		})
	})
}

func TestThreshold(t *testing.T) {
	Convey("Given level thresholds", t, func() {
		Convey("Then each threshold is the first experience reaching that level", func() {
			for lvl := 2; lvl <= 40; lvl++ {
				th := level.Threshold(lvl)
				So(level.Of(th), ShouldEqual, lvl)
				So(level.Of(th-1), ShouldEqual, lvl-1)
			}
		})

		Convey("Then level 1 and below start at zero", func() {
			So(level.Threshold(1), ShouldEqual, 0)
			So(level.Threshold(0), ShouldEqual, 0)
		})
	})
}
