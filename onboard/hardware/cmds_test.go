package hardware

import (
	. "github.com/smartystreets/goconvey/convey"
	"testing"
)

func TestCommandFormat(t *testing.T) {
	Convey("power commands are framed with the node first", t, func() {
		So(PowerCmd(0, 120).String(), ShouldEqual, "{N0 P120}")
		So(PowerCmd(2, -400).String(), ShouldEqual, "{N2 P-400}")
	})

	Convey("mode command selects pwm", t, func() {
		So(ModeCmd(0, MODE_PWM).String(), ShouldEqual, "{N0 M6}")
	})

	Convey("a bare node command has no fields", t, func() {
		So(Command{Node: 1}.String(), ShouldEqual, "{N1}")
	})
}

func TestParseCmd(t *testing.T) {
	Convey("a formatted command parses back", t, func() {
		cmd, err := ParseCmd(PowerCmd(1, -130).String())
		So(err, ShouldBeNil)
		So(cmd.Node, ShouldEqual, 1)
		So(cmd.Mode, ShouldBeNil)
		So(*cmd.Power, ShouldEqual, -130)
	})

	Convey("unknown fields from other modes are ignored", t, func() {
		cmd, err := ParseCmd("{N0 M2 A2000 R}")
		So(err, ShouldBeNil)
		So(*cmd.Mode, ShouldEqual, MODE_PID_POSITION)
		So(cmd.Power, ShouldBeNil)
	})

	Convey("frames without braces are rejected", t, func() {
		_, err := ParseCmd("N0 P0")
		So(err, ShouldEqual, ERR_BAD_FRAME)
	})

	Convey("frames without a node are rejected", t, func() {
		_, err := ParseCmd("{P10}")
		So(err, ShouldEqual, ERR_NO_NODE)
	})

	Convey("non numeric values are an error", t, func() {
		_, err := ParseCmd("{N0 Pfast}")
		So(err, ShouldNotBeNil)
	})
}

func TestSplitFrames(t *testing.T) {
	Convey("a stream is split into whole frames", t, func() {
		frames, rest := SplitFrames("{N0 M6}{N0 P0}{N1 P1")
		So(frames, ShouldResemble, []string{"{N0 M6}", "{N0 P0}"})
		So(rest, ShouldEqual, "{N1 P1")
	})

	Convey("noise between frames is dropped", t, func() {
		frames, rest := SplitFrames("xx{N2 P5}\r\n")
		So(frames, ShouldResemble, []string{"{N2 P5}"})
		So(rest, ShouldEqual, "")
	})
}
