package main

import (
	"fmt"
	"os"
	"time"

	"github.com/CodedInternet/gorover/onboard/hardware"
	"github.com/CodedInternet/gorover/onboard/motion"
)

// Bench check for a freshly wired pair of MSD_EM drivers: ramps forward to
// the low preset, turns right, then releases to a stop. Run with the wheels
// off the ground.
func main() {
	device := "/dev/ttyUSB0"
	if len(os.Args) > 1 {
		device = os.Args[1]
	}

	driver, err := hardware.OpenMSDEM(hardware.MSDEMConfig{
		Address:  device,
		BaudRate: hardware.BAUD_DEFAULT,
		Timeout:  hardware.TIMEOUT_DEFAULT,
		Settle:   hardware.SETTLE_DEFAULT,
		Nodes:    hardware.DefaultNodes,
	})
	if err != nil {
		panic(err)
	}
	defer driver.Close()

	conf := motion.DefaultConfig()
	presets := motion.DefaultPresets()
	presets.Start = motion.Low
	c, err := motion.New(conf, presets, driver)
	if err != nil {
		panic(err)
	}

	for c.Left() < c.MaxPWM() {
		if err := c.MoveForward(conf.Step); err != nil {
			panic(err)
		}
		time.Sleep(150 * time.Millisecond)
	}
	fmt.Printf("forward at %d/%d\n", c.Left(), c.Right())

	for i := 0; i < 5; i++ {
		if err := c.TurnRight(true, conf.Step); err != nil {
			panic(err)
		}
		time.Sleep(150 * time.Millisecond)
	}
	fmt.Printf("turning right at %d/%d\n", c.Left(), c.Right())

	for moving := true; moving; {
		if moving, err = c.Release(); err != nil {
			panic(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	fmt.Println("Success! Both wheels stopped")
}
