package services

import "openduel/models"

// Board cells are numbered 0..8 row by row; bit i is set when the player holds cell i.
const (
	FullBoard uint16 = 0b111111111
)

type Status string

const (
	StatusOngoing Status = "ongoing"
	StatusWin     Status = "win"
	StatusLoss    Status = "loss"
	StatusDraw    Status = "draw"
)

var winLines = [8]uint16{
	0b000000111, 0b000111000, 0b111000000, // rows
	0b001001001, 0b010010010, 0b100100100, // columns
	0b100010001, 0b001010100, // diagonals
}

func hasLine(mask uint16) bool {
	for _, line := range winLines {
		if mask&line == line {
			return true
		}
	}
	return false
}

// ValidMask reports whether mask fits in the 9-cell board.
func ValidMask(mask int) bool {
	return mask >= 0 && mask <= int(FullBoard)
}

// Evaluate returns the game status from the point of view of the owner of self.
// Overlapping masks are not detected.
func Evaluate(self, opponent uint16) Status {
	switch {
	case hasLine(self):
		return StatusWin
	case hasLine(opponent):
		return StatusLoss
	case (self|opponent)&FullBoard == FullBoard:
		return StatusDraw
	default:
		return StatusOngoing
	}
}

// Opposite is the status the other participant observes.
func (s Status) Opposite() Status {
	switch s {
	case StatusWin:
		return StatusLoss
	case StatusLoss:
		return StatusWin
	default:
		return s
	}
}

func (s Status) Terminal() bool {
	return s != StatusOngoing
}

// Result converts a terminal status into a stored match result.
func (s Status) Result() models.Result {
	switch s {
	case StatusWin:
		return models.ResultWin
	case StatusLoss:
		return models.ResultLoss
	default:
		return models.ResultDraw
	}
}
