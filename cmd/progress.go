package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/camden-git/photoingest/workers"
)

// progressPrinter renders scan events as a running count. Calls are
// serialized by the orchestrator.
type progressPrinter struct {
	out     io.Writer
	total   int
	every   int
	started time.Time

	finished int
	skipped  int
	failed   int
}

func newProgressPrinter(out io.Writer, total int) *progressPrinter {
	every := total / 20
	if every < 1 {
		every = 1
	}
	return &progressPrinter{out: out, total: total, every: every, started: time.Now()}
}

func (p *progressPrinter) Handle(ev workers.Progress) {
	switch ev.Event {
	case workers.EventEnd:
		p.finished++
	case workers.EventAlreadyProcessed:
		p.finished++
		p.skipped++
	case workers.EventError:
		p.failed++
		// write failures arrive after the file already counted as finished
		if ev.Err == nil || ev.Err.Category != workers.CategoryWriteFailure {
			p.finished++
		}
		color.New(color.FgRed).Fprintf(p.out, "error: %v\n", ev.Err)
	case workers.EventDone:
		p.summary()
		return
	default:
		return
	}

	if p.finished%p.every == 0 || p.finished == p.total {
		fmt.Fprintf(p.out, "%s/%s files%s\n",
			humanize.Comma(int64(p.finished)),
			humanize.Comma(int64(p.total)),
			p.eta())
	}
}

func (p *progressPrinter) eta() string {
	if p.finished == 0 || p.finished >= p.total {
		return ""
	}
	elapsed := time.Since(p.started)
	remaining := time.Duration(float64(elapsed) / float64(p.finished) * float64(p.total-p.finished))
	return ", done " + humanize.RelTime(time.Now(), time.Now().Add(remaining), "ago", "from now")
}

func (p *progressPrinter) summary() {
	c := color.New(color.FgGreen)
	if p.failed > 0 {
		c = color.New(color.FgYellow)
	}
	c.Fprintf(p.out, "finished %s files in %s: %s already processed, %s errors\n",
		humanize.Comma(int64(p.finished)),
		time.Since(p.started).Round(time.Millisecond),
		humanize.Comma(int64(p.skipped)),
		humanize.Comma(int64(p.failed)))
}
