// internal/parser/apache.go
package parser

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/signalnine/threatscope/internal/model"
)

var months = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// cursor walks a line left to right. Every method either consumes input
// and reports true, or leaves the position unchanged and reports false.
type cursor struct {
	s   string
	pos int
}

func (c *cursor) takeWhile1(pred func(rune) bool) (string, bool) {
	start := c.pos
	for c.pos < len(c.s) {
		r, size := utf8.DecodeRuneInString(c.s[c.pos:])
		if !pred(r) {
			break
		}
		c.pos += size
	}
	if c.pos == start {
		return "", false
	}
	return c.s[start:c.pos], true
}

// space1 consumes one or more spaces or tabs.
func (c *cursor) space1() bool {
	_, ok := c.takeWhile1(func(r rune) bool { return r == ' ' || r == '\t' })
	return ok
}

func (c *cursor) tag(t string) bool {
	if !strings.HasPrefix(c.s[c.pos:], t) {
		return false
	}
	c.pos += len(t)
	return true
}

// until returns the text before the next occurrence of t without
// consuming t. The result may be empty.
func (c *cursor) until(t string) (string, bool) {
	i := strings.Index(c.s[c.pos:], t)
	if i < 0 {
		return "", false
	}
	out := c.s[c.pos : c.pos+i]
	c.pos += i
	return out, true
}

func (c *cursor) digits() (string, bool) {
	return c.takeWhile1(func(r rune) bool { return r >= '0' && r <= '9' })
}

func (c *cursor) quoted() (string, bool) {
	if !c.tag(`"`) {
		return "", false
	}
	s, ok := c.until(`"`)
	if !ok {
		return "", false
	}
	c.pos++
	return s, true
}

func isHostChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == ':'
}

// parseApache matches the Combined Log Format. Trailing text after the
// user agent is ignored.
func parseApache(line string) (*model.WebEntry, bool) {
	c := &cursor{s: line}

	ip, ok := c.takeWhile1(isHostChar)
	if !ok || !c.space1() || !c.tag("-") || !c.space1() || !c.tag("-") || !c.space1() {
		return nil, false
	}

	ts, ok := c.timestamp()
	if !ok || !c.space1() {
		return nil, false
	}

	if !c.tag(`"`) {
		return nil, false
	}
	method, ok := c.takeWhile1(unicode.IsLetter)
	if !ok || !c.space1() {
		return nil, false
	}
	path, ok := c.until(` HTTP`)
	if !ok || !c.space1() {
		return nil, false
	}
	protocol, ok := c.until(`"`)
	if !ok {
		return nil, false
	}
	c.pos++

	if !c.space1() {
		return nil, false
	}
	statusText, ok := c.digits()
	if !ok || !c.space1() {
		return nil, false
	}

	var size uint64
	if !c.tag("-") {
		sizeText, ok := c.digits()
		if !ok {
			return nil, false
		}
		size, _ = strconv.ParseUint(sizeText, 10, 64)
	}

	if !c.space1() {
		return nil, false
	}
	referer, ok := c.quoted()
	if !ok || !c.space1() {
		return nil, false
	}
	userAgent, ok := c.quoted()
	if !ok {
		return nil, false
	}

	// Out-of-range values default to zero.
	status, err := strconv.ParseUint(statusText, 10, 16)
	if err != nil {
		status = 0
	}

	return &model.WebEntry{
		IP:        ip,
		Timestamp: ts,
		Method:    method,
		Path:      path,
		Protocol:  protocol,
		Status:    int(status),
		Size:      size,
		Referer:   referer,
		UserAgent: userAgent,
	}, true
}

// timestamp parses [DD/Mon/YYYY:HH:MM:SS +ZZZZ]. The offset is consumed
// but the wall-clock fields are taken as UTC.
func (c *cursor) timestamp() (time.Time, bool) {
	start := c.pos
	fail := func() (time.Time, bool) {
		c.pos = start
		return time.Time{}, false
	}

	if !c.tag("[") {
		return fail()
	}
	day, ok := c.number()
	if !ok || !c.tag("/") {
		return fail()
	}
	monName, ok := c.takeWhile1(unicode.IsLetter)
	if !ok || !c.tag("/") {
		return fail()
	}
	month, ok := months[monName]
	if !ok {
		return fail()
	}
	year, ok := c.number()
	if !ok || !c.tag(":") {
		return fail()
	}
	hour, ok := c.number()
	if !ok || !c.tag(":") {
		return fail()
	}
	minute, ok := c.number()
	if !ok || !c.tag(":") {
		return fail()
	}
	second, ok := c.number()
	if !ok || !c.space1() {
		return fail()
	}
	if _, ok := c.takeWhile1(func(r rune) bool { return r == '+' || r == '-' || unicode.IsDigit(r) }); !ok {
		return fail()
	}
	if !c.tag("]") {
		return fail()
	}

	if hour > 23 || minute > 59 || second > 59 || day < 1 {
		return fail()
	}
	t := time.Date(year, month, day, hour, minute, second, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return fail()
	}
	return t, true
}

func (c *cursor) number() (int, bool) {
	start := c.pos
	text, ok := c.digits()
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		c.pos = start
		return 0, false
	}
	return n, true
}
