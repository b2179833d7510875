// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"math"
	"regexp"
	"strconv"
)

// UpdateKind classifies a parser output.
type UpdateKind int

const (
	UpdateLog UpdateKind = iota
	UpdateDuration
	UpdateProgress
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateLog:
		return "log"
	case UpdateDuration:
		return "duration"
	case UpdateProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Update is one structured observation derived from a diagnostic line.
type Update struct {
	Kind    UpdateKind
	Line    string  // UpdateLog
	Seconds float64 // UpdateDuration
	Percent int     // UpdateProgress
}

var (
	durationPattern = regexp.MustCompile(`Duration:\s*(\d{2,}):(\d{2}):(\d{2})\.(\d{2})`)
	timePattern     = regexp.MustCompile(`time=\s*(\d{2,}):(\d{2}):(\d{2})\.(\d{2})`)
)

// Parser turns ffmpeg stderr lines into updates. One Parser per job.
//
// The total duration is sticky: the first positive Duration: value wins.
// Progress is only computed once the total is known, is clamped to 100 and
// never decreases; values not above the last emitted one are suppressed.
type Parser struct {
	total       float64
	elapsed     float64
	lastPercent int
}

// NewParser returns a parser with no duration and no progress emitted.
func NewParser() *Parser {
	return &Parser{lastPercent: -1}
}

// Feed consumes one line. The raw line is always returned first as an
// UpdateLog, followed by at most one duration and one progress update.
func (p *Parser) Feed(line string) []Update {
	updates := []Update{{Kind: UpdateLog, Line: line}}

	if p.total == 0 {
		if m := durationPattern.FindStringSubmatch(line); m != nil {
			if secs, ok := clockSeconds(m[1:]); ok && secs > 0 {
				p.total = secs
				updates = append(updates, Update{Kind: UpdateDuration, Seconds: secs})
			}
		}
	}

	if m := timePattern.FindStringSubmatch(line); m != nil {
		if secs, ok := clockSeconds(m[1:]); ok {
			if secs > p.elapsed {
				p.elapsed = secs
			}
			if p.total > 0 {
				pct := percentOf(secs, p.total)
				if pct > p.lastPercent {
					p.lastPercent = pct
					updates = append(updates, Update{Kind: UpdateProgress, Percent: pct})
				}
			}
		}
	}

	return updates
}

// Total returns the known duration in seconds, or 0 when unknown.
func (p *Parser) Total() float64 { return p.total }

// Elapsed returns the furthest encoded position seen, in seconds.
func (p *Parser) Elapsed() float64 { return p.elapsed }

// Percent returns the last emitted percentage, or 0 when none was emitted.
func (p *Parser) Percent() int {
	if p.lastPercent < 0 {
		return 0
	}
	return p.lastPercent
}

func percentOf(elapsed, total float64) int {
	pct := int(math.Round(100 * elapsed / total))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// clockSeconds converts HH, MM, SS, CC captures to seconds.
func clockSeconds(parts []string) (float64, bool) {
	if len(parts) != 4 {
		return 0, false
	}
	var v [4]int
	for i, s := range parts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		v[i] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return 0, false
	}
	return float64(v[0]*3600+v[1]*60+v[2]) + float64(v[3])/100, true
}
