package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dukerupert/recurcal/internal/calendar"
	"github.com/dukerupert/recurcal/internal/config"
	"github.com/dukerupert/recurcal/internal/database"
	"github.com/dukerupert/recurcal/internal/ics"
	"github.com/dukerupert/recurcal/internal/logging"
	"github.com/dukerupert/recurcal/internal/model"
	"github.com/dukerupert/recurcal/internal/overlap"
	"github.com/dukerupert/recurcal/internal/recurrence"
	"github.com/dukerupert/recurcal/internal/store"
)

const (
	exitOK       = 0
	exitError    = 1
	exitConflict = 2
)

const usage = `usage: recur [-config path] <command> [flags]

commands:
  expand  print the occurrence dates of a rule
  check   report stored events that collide with every occurrence
  add     store an event
  ics     write the occurrences as iCalendar
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	stdout   io.Writer
	expander recurrence.CachedExpander
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("recur", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", os.Getenv("RECUR_CONFIG"), "path to YAML config file")
	if err := global.Parse(args); err != nil {
		return exitError
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitError
	}

	a := &app{
		cfg:      cfg,
		logger:   logging.Setup(stderr, cfg.LogLevel, cfg.LogFormat),
		stdout:   stdout,
		expander: recurrence.CachedExpander{
			Expander: cfg.Expander(),
			Cache:    recurrence.NewCache(recurrence.DefaultCacheConfig),
		},
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	var code int
	switch cmd {
	case "expand":
		code, err = a.expand(rest, stderr)
	case "check":
		code, err = a.check(rest, stderr)
	case "add":
		code, err = a.add(rest, stderr)
	case "ics":
		code, err = a.exportICS(rest, stderr)
	default:
		global.Usage()
		return exitError
	}
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			a.logger.Error(cmd+" failed", "error", err)
		}
		return exitError
	}
	return code
}

// seriesFlags are shared by the commands that expand a rule.
type seriesFlags struct {
	anchor string
	rrule  string
}

func (f *seriesFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.anchor, "anchor", "", "first occurrence, YYYY-MM-DD")
	fs.StringVar(&f.rrule, "rrule", "", "RRULE, e.g. FREQ=MONTHLY;COUNT=6 (empty = once)")
}

func (a *app) expandSeries(f seriesFlags) (recurrence.Series, recurrence.Rule, error) {
	anchor, err := calendar.ParseDate(f.anchor)
	if err != nil {
		return recurrence.Series{}, recurrence.Rule{}, fmt.Errorf("anchor: %w", err)
	}
	rule, err := recurrence.ParseRRule(f.rrule)
	if err != nil {
		return recurrence.Series{}, recurrence.Rule{}, err
	}

	series, err := a.expander.Expand(anchor, rule)
	if err != nil {
		return recurrence.Series{}, recurrence.Rule{}, err
	}

	a.logger.Debug("expanded series",
		"anchor", anchor,
		"rule", rule.String(),
		"count", series.Len(),
		"stop", series.Stop,
	)
	if series.Capped() {
		a.logger.Warn("series truncated by hard cap",
			"anchor", anchor,
			"rule", rule.String(),
			"cap", a.cfg.HardCap,
		)
	}
	return series, rule, nil
}

func (a *app) expand(args []string, stderr io.Writer) (int, error) {
	fs := flag.NewFlagSet("expand", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var sf seriesFlags
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitError, err
	}

	series, _, err := a.expandSeries(sf)
	if err != nil {
		return exitError, err
	}
	for _, d := range series.Dates {
		fmt.Fprintln(a.stdout, d)
	}
	return exitOK, nil
}

func (a *app) openStore() (*store.EventStore, func(), error) {
	db, err := database.Open(a.cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return store.NewEventStore(db), func() { db.Close() }, nil
}

func parseSpan(start, end string) (calendar.Clock, calendar.Clock, error) {
	s, err := calendar.ParseClock(start)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	e, err := calendar.ParseClock(end)
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	if e <= s {
		return 0, 0, fmt.Errorf("%w: %s-%s", overlap.ErrEmptyInterval, s, e)
	}
	return s, e, nil
}

func (a *app) check(args []string, stderr io.Writer) (int, error) {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var sf seriesFlags
	sf.register(fs)
	start := fs.String("start", "", "start time, HH:MM")
	end := fs.String("end", "", "end time, HH:MM")
	exclude := fs.Int64("exclude", 0, "stored event id being edited, left out of the check")
	if err := fs.Parse(args); err != nil {
		return exitError, err
	}

	from, to, err := parseSpan(*start, *end)
	if err != nil {
		return exitError, err
	}
	series, _, err := a.expandSeries(sf)
	if err != nil {
		return exitError, err
	}

	events, closeStore, err := a.openStore()
	if err != nil {
		return exitError, err
	}
	defer closeStore()

	stored, err := events.ListByDates(series.Dates)
	if err != nil {
		return exitError, err
	}
	existing := model.Intervals(stored)
	if *exclude != 0 {
		existing = overlap.Exclude(existing, *exclude)
	}

	conflicts, err := overlap.FindSeriesConflicts(series.Dates, from, to, existing)
	if err != nil {
		return exitError, err
	}

	titles := make(map[int64]string, len(stored))
	for _, e := range stored {
		titles[e.ID] = e.Title
	}
	for _, c := range conflicts {
		for _, hit := range c.With {
			fmt.Fprintf(a.stdout, "%s\t%d\t%s-%s\t%s\n", c.Candidate.Date, hit.ID, hit.Start, hit.End, titles[hit.ID])
		}
	}

	a.logger.Info("conflict check finished",
		"occurrences", series.Len(),
		"existing", len(existing),
		"conflicting_occurrences", len(conflicts),
	)
	if len(conflicts) > 0 {
		return exitConflict, nil
	}
	return exitOK, nil
}

func (a *app) add(args []string, stderr io.Writer) (int, error) {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(stderr)
	title := fs.String("title", "", "event title")
	date := fs.String("date", "", "event date, YYYY-MM-DD")
	start := fs.String("start", "", "start time, HH:MM")
	end := fs.String("end", "", "end time, HH:MM")
	if err := fs.Parse(args); err != nil {
		return exitError, err
	}

	iv, err := overlap.NewInterval(0, *date, *start, *end)
	if err != nil {
		return exitError, err
	}

	events, closeStore, err := a.openStore()
	if err != nil {
		return exitError, err
	}
	defer closeStore()

	e, err := events.Create(*title, iv)
	if err != nil {
		return exitError, err
	}
	fmt.Fprintln(a.stdout, e.ID)
	return exitOK, nil
}

func (a *app) exportICS(args []string, stderr io.Writer) (int, error) {
	fs := flag.NewFlagSet("ics", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var sf seriesFlags
	sf.register(fs)
	title := fs.String("title", "", "event title")
	start := fs.String("start", "", "start time, HH:MM")
	end := fs.String("end", "", "end time, HH:MM")
	tz := fs.String("tz", "UTC", "IANA time zone of the wall-clock times")
	if err := fs.Parse(args); err != nil {
		return exitError, err
	}

	from, to, err := parseSpan(*start, *end)
	if err != nil {
		return exitError, err
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return exitError, fmt.Errorf("time zone: %w", err)
	}
	series, rule, err := a.expandSeries(sf)
	if err != nil {
		return exitError, err
	}

	ev := ics.Event{
		SeriesID: recurrence.Fingerprint(series.Anchor, rule, a.expander.Expander),
		Title:    *title,
		Start:    from,
		End:      to,
		Location: loc,
	}
	if err := ics.Export(a.stdout, ev, series, time.Now()); err != nil {
		return exitError, err
	}
	return exitOK, nil
}
