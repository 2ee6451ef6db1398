// Package scenario reads, writes and drives crowd scenario files.
//
// A scenario file looks like:
//
//	# comment
//	8 x 6
//	obstacles:
//	3, 0 @ 1 x 4
//	persons:
//	0, 0 -> 7, 5
//	insertions: 250
//	7, 0 -> 0, 5
//
// The size line comes first. Obstacles are rectangles anchored at their top
// left cell. Insertions are persons repeatedly plugged and unplugged while a
// run is in progress, pausing the given number of milliseconds in between.
package scenario

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"crowdsim/internal/core"
)

// ErrMalformed is wrapped by every parse and validation error.
var ErrMalformed = errors.New("malformed scenario")

// Rect is an axis aligned block of obstacle cells.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p core.Pos) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Route is a start and goal cell.
type Route struct {
	Start core.Pos
	Goal  core.Pos
}

// Scenario is a parsed scenario file.
type Scenario struct {
	Width, Height     int
	Obstacles         []Rect
	Persons           []Route
	Insertions        []Route
	InsertionInterval time.Duration
}

type section int

const (
	sectionSize section = iota
	sectionObstacles
	sectionPersons
	sectionInsertions
)

var (
	rxObstaclesHdr  = regexp.MustCompile(`^obstacles[ \t]*:$`)
	rxPersonsHdr    = regexp.MustCompile(`^persons[ \t]*:$`)
	rxInsertionsHdr = regexp.MustCompile(`^insertions[ \t]*:[ \t]*([0-9]+)$`)
	rxSize          = regexp.MustCompile(`^([0-9]+)[ \t]*x[ \t]*([0-9]+)$`)
	rxObstacle      = regexp.MustCompile(`^([0-9]+)[ \t]*,[ \t]*([0-9]+)[ \t]*@[ \t]*([0-9]+)[ \t]*x[ \t]*([0-9]+)$`)
	rxRoute         = regexp.MustCompile(`^([0-9]+)[ \t]*,[ \t]*([0-9]+)[ \t]*->[ \t]*([0-9]+)[ \t]*,[ \t]*([0-9]+)$`)
)

func malformed(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformed, line, fmt.Sprintf(format, args...))
}

// atoi converts the numeric submatches of a regexp match.
func atoi(groups []string) ([]int, error) {
	out := make([]int, len(groups))
	for i, g := range groups {
		v, err := strconv.Atoi(g)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ParseFile opens and parses the scenario at path.
func ParseFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	sc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse reads a scenario and validates it against its own grid.
func Parse(r io.Reader) (*Scenario, error) {
	sc := &Scenario{}
	stage := sectionSize
	lineNo := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		header := true
		switch {
		case rxObstaclesHdr.MatchString(line):
			stage = sectionObstacles
		case rxPersonsHdr.MatchString(line):
			stage = sectionPersons
		case rxInsertionsHdr.MatchString(line):
			m := rxInsertionsHdr.FindStringSubmatch(line)
			ms, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, malformed(lineNo, "insertion interval %q: %v", m[1], err)
			}
			sc.InsertionInterval = time.Duration(ms) * time.Millisecond
			stage = sectionInsertions
		default:
			header = false
		}
		if header {
			if sc.Width == 0 {
				return nil, malformed(lineNo, "section header before grid size")
			}
			continue
		}

		switch stage {
		case sectionSize:
			if sc.Width != 0 {
				return nil, malformed(lineNo, "unexpected %q after grid size", line)
			}
			m := rxSize.FindStringSubmatch(line)
			if m == nil {
				return nil, malformed(lineNo, "expected grid size, got %q", line)
			}
			v, err := atoi(m[1:])
			if err != nil {
				return nil, malformed(lineNo, "grid size: %v", err)
			}
			if v[0] <= 0 || v[1] <= 0 {
				return nil, malformed(lineNo, "grid size %dx%d must be positive", v[0], v[1])
			}
			sc.Width, sc.Height = v[0], v[1]
		case sectionObstacles:
			m := rxObstacle.FindStringSubmatch(line)
			if m == nil {
				return nil, malformed(lineNo, "expected obstacle, got %q", line)
			}
			v, err := atoi(m[1:])
			if err != nil {
				return nil, malformed(lineNo, "obstacle: %v", err)
			}
			rect := Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}
			if rect.X+rect.W > sc.Width || rect.Y+rect.H > sc.Height {
				return nil, malformed(lineNo, "obstacle %v exceeds %dx%d grid", rect, sc.Width, sc.Height)
			}
			sc.Obstacles = append(sc.Obstacles, rect)
		case sectionPersons, sectionInsertions:
			m := rxRoute.FindStringSubmatch(line)
			if m == nil {
				return nil, malformed(lineNo, "expected person, got %q", line)
			}
			v, err := atoi(m[1:])
			if err != nil {
				return nil, malformed(lineNo, "person: %v", err)
			}
			route := Route{Start: core.P(v[0], v[1]), Goal: core.P(v[2], v[3])}
			if err := sc.checkRoute(route, stage == sectionPersons); err != nil {
				return nil, malformed(lineNo, "%v", err)
			}
			if stage == sectionPersons {
				sc.Persons = append(sc.Persons, route)
			} else {
				sc.Insertions = append(sc.Insertions, route)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	if sc.Width == 0 {
		return nil, fmt.Errorf("%w: missing grid size", ErrMalformed)
	}
	// Obstacles may follow the persons section.
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks the whole scenario. Errors wrap ErrMalformed.
func (sc *Scenario) Validate() error {
	if sc.Width <= 0 || sc.Height <= 0 {
		return fmt.Errorf("%w: grid size %dx%d must be positive", ErrMalformed, sc.Width, sc.Height)
	}
	for _, r := range sc.Obstacles {
		if r.X < 0 || r.Y < 0 || r.W < 0 || r.H < 0 || r.X+r.W > sc.Width || r.Y+r.H > sc.Height {
			return fmt.Errorf("%w: obstacle %v exceeds %dx%d grid", ErrMalformed, r, sc.Width, sc.Height)
		}
	}
	seen := make(map[core.Pos]int, len(sc.Persons))
	for i, r := range sc.Persons {
		if !sc.inBounds(r.Start) || !sc.inBounds(r.Goal) {
			return fmt.Errorf("%w: person %d outside grid", ErrMalformed, i+1)
		}
		if sc.blocked(r.Start) {
			return fmt.Errorf("%w: person %d placed on obstacle at %v", ErrMalformed, i+1, r.Start)
		}
		if j, dup := seen[r.Start]; dup {
			return fmt.Errorf("%w: persons %d and %d placed at %v", ErrMalformed, j, i+1, r.Start)
		}
		seen[r.Start] = i + 1
	}
	for i, r := range sc.Insertions {
		if !sc.inBounds(r.Start) || !sc.inBounds(r.Goal) {
			return fmt.Errorf("%w: insertion %d outside grid", ErrMalformed, i+1)
		}
	}
	return nil
}

func (sc *Scenario) inBounds(p core.Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < sc.Width && p.Y < sc.Height
}

func (sc *Scenario) blocked(p core.Pos) bool {
	for _, r := range sc.Obstacles {
		if r.Contains(p) {
			return true
		}
	}
	return false
}

// checkRoute validates a route against the grid and, for initial persons,
// against the persons read so far.
func (sc *Scenario) checkRoute(r Route, initial bool) error {
	if !sc.inBounds(r.Start) || !sc.inBounds(r.Goal) {
		return fmt.Errorf("route %v -> %v outside %dx%d grid", r.Start, r.Goal, sc.Width, sc.Height)
	}
	if !initial {
		return nil
	}
	if sc.blocked(r.Start) {
		return fmt.Errorf("person placed on obstacle at %v", r.Start)
	}
	for _, other := range sc.Persons {
		if other.Start.Eq(r.Start) {
			return fmt.Errorf("two persons placed at %v", r.Start)
		}
	}
	return nil
}

// Format writes sc in the text form read by Parse.
func Format(w io.Writer, sc *Scenario) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d x %d\n", sc.Width, sc.Height)
	if len(sc.Obstacles) > 0 {
		fmt.Fprintln(bw, "obstacles:")
		for _, r := range sc.Obstacles {
			fmt.Fprintf(bw, "%d, %d @ %d x %d\n", r.X, r.Y, r.W, r.H)
		}
	}
	if len(sc.Persons) > 0 {
		fmt.Fprintln(bw, "persons:")
		for _, r := range sc.Persons {
			fmt.Fprintf(bw, "%d, %d -> %d, %d\n", r.Start.X, r.Start.Y, r.Goal.X, r.Goal.Y)
		}
	}
	if len(sc.Insertions) > 0 {
		fmt.Fprintf(bw, "insertions: %d\n", sc.InsertionInterval.Milliseconds())
		for _, r := range sc.Insertions {
			fmt.Fprintf(bw, "%d, %d -> %d, %d\n", r.Start.X, r.Start.Y, r.Goal.X, r.Goal.Y)
		}
	}
	return bw.Flush()
}
