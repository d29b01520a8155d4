package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/verte-zerg/tafels/internal/session"
)

var (
	okColor    = color.New(color.FgGreen)
	wrongColor = color.New(color.FgRed)
	infoColor  = color.New(color.FgCyan)
	gradeColor = color.New(color.FgYellow, color.Bold)
)

// runDrill asks the session's facts on in until the run ends. An empty input
// stream or "q" stops the run.
func runDrill(ctx context.Context, sess *session.Session, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, in)

	for sess.Running() {
		f, ok := sess.Current()
		if !ok {
			break
		}
		if err := prompt(out, sess, f.String()); err != nil {
			return err
		}

		var line string
		var open bool
		if sess.State() == session.Testing {
			timer := time.NewTimer(sess.TimeLeft())
			select {
			case line, open = <-lines:
				timer.Stop()
			case <-timer.C:
				if _, err := fmt.Fprintln(out); err != nil {
					return err
				}
				report, err := sess.Expire(ctx)
				if report != nil {
					if perr := printReport(out, *report); perr != nil {
						return perr
					}
				}
				if err != nil {
					return err
				}
				continue
			}
		} else {
			line, open = <-lines
		}
		if !open || strings.TrimSpace(line) == "q" {
			sess.Stop()
			_, err := fmt.Fprintln(out, "\nStopped.")
			return err
		}

		value, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			if _, err := wrongColor.Fprintln(out, "Please enter a whole number."); err != nil {
				return err
			}
			continue
		}

		outcome, err := sess.Answer(ctx, value)
		if errors.Is(err, session.ErrInvalidTransition) || errors.Is(err, session.ErrNoCurrentFact) {
			return err
		}
		if ferr := printFeedback(out, sess, outcome); ferr != nil {
			return ferr
		}
		if outcome.Report != nil {
			if perr := printReport(out, *outcome.Report); perr != nil {
				return perr
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func prompt(out io.Writer, sess *session.Session, question string) error {
	done, total := sess.Progress()
	status := fmt.Sprintf("[%d/%d]", done+1, total)
	if sess.State() == session.Testing {
		status = fmt.Sprintf("[%d/%d %s]", done+1, total, sess.TimeLeft().Round(time.Second))
	}
	if _, err := infoColor.Fprint(out, status); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, " %s = ", question)
	return err
}

func printFeedback(out io.Writer, sess *session.Session, outcome session.Outcome) error {
	if outcome.Correct {
		_, err := okColor.Fprintf(out, "Correct (%.1fs)\n", outcome.Elapsed.Seconds())
		return err
	}
	if sess.State() == session.Practice {
		_, err := wrongColor.Fprintln(out, "Wrong, try again.")
		return err
	}
	_, err := wrongColor.Fprintf(out, "Wrong, %s = %d\n", outcome.Fact, outcome.Fact.Answer())
	return err
}

func printReport(out io.Writer, report session.Report) error {
	r := report.Result
	header := fmt.Sprintf("\n%d of %d correct (%.0f%%)", r.Correct, r.Size, r.Score()*100)
	if r.TimedOut {
		header += ", time is up"
	}
	if _, err := fmt.Fprintln(out, header); err != nil {
		return err
	}
	for _, a := range r.Answers {
		line := fmt.Sprintf("  %s = %d", a.Fact, a.Given)
		var err error
		if a.Correct {
			_, err = okColor.Fprintln(out, line)
		} else {
			_, err = wrongColor.Fprintf(out, "%s (expected %d)\n", line, a.Fact.Answer())
		}
		if err != nil {
			return err
		}
	}
	_, err := gradeColor.Fprintf(out, "Grade: %s\n", report.Grade)
	return err
}
