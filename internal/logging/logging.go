// Package logging implements §6's four-level logger (warn, info, debug,
// trace) selectable by an environment variable, plus a coloured fitness
// gradient bar the search driver's "info" level uses for its per-generation
// summary line. Grounded on internal/errors/reporter.go's
// color.New(...).SprintFunc() / level-to-colour-function pattern, extended
// with termenv/go-colorful/go-isatty/go-runewidth for terminal capability
// detection and the gradient bar itself.
package logging

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
)

// Level is one of the four verbosity levels §6 specifies, ordered from
// least to most verbose.
type Level int

const (
	Warn Level = iota
	Info
	Debug
	Trace
)

func (l Level) String() string {
	switch l {
	case Warn:
		return "warn"
	case Info:
		return "info"
	case Debug:
		return "debug"
	case Trace:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseLevel maps the §6 environment variable's value to a Level, defaulting
// to Info for an empty or unrecognised value - info is the level that emits
// the per-generation summary line the specification calls out by name.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "warning":
		return Warn
	case "debug":
		return Debug
	case "trace":
		return Trace
	default:
		return Info
	}
}

// EnvVar is the environment variable §6 reserves for selecting the log
// level.
const EnvVar = "WCFUZZ_LOG_LEVEL"

// LevelFromEnv reads EnvVar, defaulting to Info.
func LevelFromEnv() Level {
	return ParseLevel(os.Getenv(EnvVar))
}

// Logger writes level-gated, coloured diagnostic lines. The log format is
// stable across one run (§6) but otherwise unspecified: a timestamp, a
// coloured level tag, and the message.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	level   Level
	color   bool
	profile termenv.Profile
}

// New builds a Logger writing to w at the given level. Colour is enabled
// only when w is a terminal (go-isatty) - trace/debug output piped to a
// file or CI log should never carry ANSI escapes.
func New(w io.Writer, level Level) *Logger {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Logger{
		out:     w,
		level:   level,
		color:   useColor,
		profile: termenv.NewOutput(w).Profile,
	}
}

// NewDefault builds a Logger over os.Stderr at the level named by EnvVar.
func NewDefault() *Logger {
	return New(os.Stderr, LevelFromEnv())
}

func (l *Logger) enabled(level Level) bool { return level <= l.level }

var levelTagColor = map[Level]*color.Color{
	Warn:  color.New(color.FgYellow, color.Bold),
	Info:  color.New(color.FgCyan),
	Debug: color.New(color.FgMagenta),
	Trace: color.New(color.Faint),
}

func (l *Logger) line(level Level, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	tag := fmt.Sprintf("%-5s", level.String())
	if l.color {
		tag = levelTagColor[level].Sprint(tag)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s %s\n", time.Now().UTC().Format(time.RFC3339Nano), tag, msg)
}

func (l *Logger) Warnf(format string, args ...interface{})  { l.line(Warn, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.line(Info, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.line(Debug, format, args...) }
func (l *Logger) Tracef(format string, args ...interface{}) { l.line(Trace, format, args...) }

// --- fitness gradient bar ---------------------------------------------------

const barWidth = 24

var (
	lowColor  = colorful.Color{R: 0.85, G: 0.15, B: 0.15} // residual far from zero
	highColor = colorful.Color{R: 0.15, G: 0.75, B: 0.25} // residual at zero
)

// FitnessBar renders a width-padded, colour-graded bar for one generation's
// best aggregate residual against the worst seen so far in the run, used by
// the "info" level's per-generation summary line. worst <= 0 degrades to an
// all-filled bar (nothing to normalise against yet). Width accounting goes
// through go-runewidth so the block glyphs still line up if the terminal
// renders them at other than one cell wide.
func (l *Logger) FitnessBar(best, worst *big.Int) string {
	frac := 0.0
	if worst != nil && worst.Sign() > 0 && best != nil {
		b := new(big.Float).SetInt(best)
		w := new(big.Float).SetInt(worst)
		ratio := new(big.Float).Quo(b, w)
		f, _ := ratio.Float64()
		frac = 1 - f // smaller residual -> fuller bar
	}
	if worst == nil || worst.Sign() <= 0 {
		frac = 1 // nothing to normalise against yet
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(barWidth))

	glyph := lowColor.BlendLuv(highColor, frac).Hex()
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	if runewidth.StringWidth(bar) != barWidth {
		bar = runewidth.Truncate(bar, barWidth, "")
		bar = bar + strings.Repeat(" ", barWidth-runewidth.StringWidth(bar))
	}
	if !l.color {
		return bar
	}
	return termenv.String(bar).Foreground(l.profile.Color(glyph)).String()
}
