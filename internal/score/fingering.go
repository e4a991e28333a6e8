package score

const (
	ColorRed        = "#ff4444"
	ColorYellow     = "#ffeb3b"
	ColorGreen      = "#00e676"
	ColorBlue       = "#536dfe"
	ColorPurple     = "#d05ce3"
	ColorMiss       = "#ff1493"
	ColorCorrect    = "#00d2ff"
	ColorUnmapped   = "#888888"
	ColorKeyPressed = "#aaaaaa"
)

var rightFingerColors = [6]string{ColorUnmapped, ColorRed, ColorYellow, ColorGreen, ColorBlue, ColorPurple}

// Left-hand colours run in reverse finger order.
var leftFingerColors = [6]string{ColorUnmapped, ColorPurple, ColorBlue, ColorGreen, ColorYellow, ColorRed}

// FingerColor returns the display colour for a hand/finger pair.
func FingerColor(h Hand, finger int) string {
	if finger < 1 || finger > 5 {
		return ColorUnmapped
	}
	if h == HandLeft {
		return leftFingerColors[finger]
	}
	return rightFingerColors[finger]
}

// Assignment is the hand/finger a MIDI channel encodes.
type Assignment struct {
	Hand   Hand
	Finger int
}

// ChannelAssignments is the static channel table used by fingered exports:
// channels 0-4 carry left fingers 1-5, 5-8 right fingers 1-4 and 10 the right
// little finger (9 is reserved for percussion).
var ChannelAssignments = map[int]Assignment{
	0:  {HandLeft, 1},
	1:  {HandLeft, 2},
	2:  {HandLeft, 3},
	3:  {HandLeft, 4},
	4:  {HandLeft, 5},
	5:  {HandRight, 1},
	6:  {HandRight, 2},
	7:  {HandRight, 3},
	8:  {HandRight, 4},
	10: {HandRight, 5},
}

// AssignmentFor maps a channel through table, defaulting to the right hand
// without a finger.
func AssignmentFor(table map[int]Assignment, channel int) Assignment {
	if a, ok := table[channel]; ok {
		return a
	}
	return Assignment{Hand: HandRight, Finger: NoFinger}
}
