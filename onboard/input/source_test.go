package input

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type failingSource struct{}

func (failingSource) Poll() (Reading, error) {
	return Reading{Buttons: Up}, errors.New("this is a simulated poll error")
}

func TestRemote(t *testing.T) {
	Convey("remote buttons latch until released", t, func() {
		r := NewRemote()
		r.Press(Up)
		r.Press(L1)
		r.Release(L1)

		reading, err := r.Poll()
		So(err, ShouldBeNil)
		So(reading.Buttons, ShouldEqual, Up)
		So(reading.Stick, ShouldResemble, Center)
		So(r.Updated().IsZero(), ShouldBeFalse)

		Convey("reset drops everything", func() {
			r.SetStick(Stick{X: 0, Y: 0})
			r.Reset()
			reading, _ := r.Poll()
			So(reading, ShouldResemble, Neutral)
		})
	})
}

func TestMerge(t *testing.T) {
	Convey("buttons from every source are combined", t, func() {
		a, b := NewRemote(), NewRemote()
		a.Press(Up)
		b.Press(Triangle)
		b.SetStick(Stick{X: 10, Y: 127})

		reading, err := Merge{a, b}.Poll()
		So(err, ShouldBeNil)
		So(reading.Buttons, ShouldEqual, Up|Triangle)
		So(reading.Stick, ShouldResemble, Stick{X: 10, Y: 127})
	})

	Convey("a failing source counts as idle", t, func() {
		a := NewRemote()
		a.Press(Down)
		reading, err := Merge{failingSource{}, a}.Poll()
		So(err, ShouldBeNil)
		So(reading.Buttons, ShouldEqual, Down)
	})

	Convey("when every source fails the error is returned", t, func() {
		reading, err := Merge{failingSource{}}.Poll()
		So(err, ShouldNotBeNil)
		So(reading, ShouldResemble, Neutral)
	})
}
