package device

import "time"

// SteadyInterval is the recheck delay for On and Off devices.
const SteadyInterval = 3000 * time.Millisecond

// Flash patterns in milliseconds. Even indices are high, odd indices low.
var flashTable = map[FlashMode][]int{
	Slow:   {3000, 3000},
	Medium: {1000, 1000},
	Fast:   {200, 200},
	Help: {
		300, 300,
		300, 300,
		300, 900,
		900, 300,
		900, 300,
		900, 900,
		300, 300,
		300, 300,
		300, 2100,
	},
	Mayday: {
		150, 150,
		150, 150,
		150, 450,
		450, 150,
		450, 150,
		450, 450,
		150, 150,
		150, 150,
		150, 1050,
	},
	Beer: {
		450, 150,
		150, 150,
		150, 150,
		150, 450,
		150, 450,
		150, 450,
		150, 150,
		450, 150,
		150, 1050,
	},
	IDK: {
		150, 150,
		150, 450,
		450, 150,
		150, 150,
		150, 450,
		450, 150,
		150, 150,
		450, 1050,
	},
}

// Pattern returns the flash pattern for a mode. Unknown modes fall back to
// the IDK pattern. The returned slice must not be modified.
func Pattern(m FlashMode) []int {
	if p, ok := flashTable[m]; ok {
		return p
	}
	return flashTable[IDK]
}
