package stage

import (
	"fmt"
	"strings"

	"reelgate/internal/services"
)

// Name identifies one step of the pipeline.
type Name string

const (
	Research Name = "research"
	Script   Name = "script"
	Metadata Name = "metadata"
	Video    Name = "video"
	Upload   Name = "upload"
)

var order = []Name{Research, Script, Metadata, Video, Upload}

// Order returns the fixed stage sequence. The slice is a copy.
func Order() []Name {
	return append([]Name(nil), order...)
}

// Index returns the position of name in the fixed sequence, or -1.
func Index(name Name) int {
	for i, candidate := range order {
		if candidate == name {
			return i
		}
	}
	return -1
}

// Valid reports whether name is one of the pipeline stages.
func (n Name) Valid() bool {
	return Index(n) >= 0
}

func (n Name) String() string {
	return string(n)
}

// Before returns every stage that precedes name in the fixed sequence.
func Before(name Name) []Name {
	idx := Index(name)
	if idx <= 0 {
		return nil
	}
	return append([]Name(nil), order[:idx]...)
}

// Next returns the stage after name, or false for the last stage.
func Next(name Name) (Name, bool) {
	idx := Index(name)
	if idx < 0 || idx+1 >= len(order) {
		return "", false
	}
	return order[idx+1], true
}

// Parse normalizes raw into a stage name.
func Parse(raw string) (Name, error) {
	name := Name(strings.ToLower(strings.TrimSpace(raw)))
	if !name.Valid() {
		return "", services.Wrap(services.ErrValidation, "stage", "parse", fmt.Sprintf("unknown stage %q", raw), nil)
	}
	return name, nil
}
