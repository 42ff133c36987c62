package model

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestShortSHA(t *testing.T) {
	Convey("Given commit identifiers", t, func() {
		So(ShortSHA("0123456789abcdef0123456789abcdef01234567"), ShouldEqual, "0123456789ab")
		So(ShortSHA("0123456789ab"), ShouldEqual, "0123456789ab")
		So(ShortSHA("abc"), ShouldEqual, "abc")
		So(ShortSHA(""), ShouldEqual, "")
	})
}

func TestNewPush(t *testing.T) {
	Convey("Given a commit slice passed to NewPush", t, func() {
		commits := []RawCommit{{SHA: "a", Distinct: true}, {SHA: "b"}}
		p := NewPush(Repository{FullName: "o/r"}, Actor{Login: "u"}, "0", "refs/heads/main", commits)

		Convey("Then the push owns its copy", func() {
			commits[0].SHA = "changed"
			So(p.Commits[0].SHA, ShouldEqual, "a")
			So(p.Kind(), ShouldEqual, KindPush)
			So(p.Repository().FullName, ShouldEqual, "o/r")
			So(p.Actor().Login, ShouldEqual, "u")
		})
	})

	Convey("Given an issue event", t, func() {
		var ev Event = IssueClosed{Sender: Actor{Login: "m"}}
		So(ev.Kind(), ShouldEqual, KindIssueClosed)
		So(ev.Actor().Login, ShouldEqual, "m")
	})
}
