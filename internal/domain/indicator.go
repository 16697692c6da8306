package domain

import "time"

// Color is the status indicator vocabulary.
type Color string

const (
	ColorWhite  Color = "white"
	ColorYellow Color = "yellow"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorPurple Color = "purple"
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorOff    Color = "off"
)

// Signal is one indicator instruction. A zero Duration means "until changed".
type Signal struct {
	Color    Color
	Flash    bool
	Duration time.Duration
}
