package helpers

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Placeholders carries the values substituted into path and command templates.
// Substitution is literal: unknown braces are left untouched.
type Placeholders struct {
	DeviceName  string
	DeviceIndex int
	Width       int
	Height      int
	Time        time.Time
	Extra       map[string]string // e.g. {framerate}, {videoPath}
}

// Expand replaces every known {placeholder} in template
func (p Placeholders) Expand(template string) string {
	return p.expand(template, nil)
}

// ExpandShell is Expand for a /bin/sh command line: every substituted value
// is passed through ShellQuote so it stays a single word.
func (p Placeholders) ExpandShell(template string) string {
	return p.expand(template, ShellQuote)
}

func (p Placeholders) expand(template string, quote func(string) string) string {
	t := p.Time
	pairs := []string{
		"{deviceName}", p.DeviceName,
		"{deviceIndex}", strconv.Itoa(p.DeviceIndex),
		"{width}", strconv.Itoa(p.Width),
		"{height}", strconv.Itoa(p.Height),
		"{year}", fmt.Sprintf("%04d", t.Year()),
		"{month}", fmt.Sprintf("%02d", int(t.Month())),
		"{day}", fmt.Sprintf("%02d", t.Day()),
		"{hour}", fmt.Sprintf("%02d", t.Hour()),
		"{minute}", fmt.Sprintf("%02d", t.Minute()),
		"{second}", fmt.Sprintf("%02d", t.Second()),
		"{millisecond}", fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond)),
		"{timestamp}", t.Format("20060102-150405"),
	}
	for k, v := range p.Extra {
		pairs = append(pairs, k, v)
	}
	if quote != nil {
		for i := 1; i < len(pairs); i += 2 {
			pairs[i] = quote(pairs[i])
		}
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// ShellQuote returns s unchanged when it is made only of characters the
// shell treats literally, otherwise wrapped in single quotes.
func ShellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./:+,@%=", r)
}

// ExpandPath joins dir and name before expanding, so both may carry placeholders
func (p Placeholders) ExpandPath(dir, name string) string {
	return p.Expand(filepath.Join(dir, name))
}

// WithSuffix inserts -n before the extension: a/b.mp4 -> a/b-2.mp4
func WithSuffix(path string, n int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), n, ext)
}
