package scenario

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/atoms/internal/errors"
	"github.com/vango-dev/atoms/pkg/atom"
)

// Report summarizes a scenario run.
type Report struct {
	Name          string
	Steps         int
	Gets          int
	Sets          int
	Errors        int
	Notifications map[string]int
	Final         map[string]string
	Duration      time.Duration
}

// TotalNotifications returns the number of listener calls across all atoms.
func (r *Report) TotalNotifications() int {
	n := 0
	for _, c := range r.Notifications {
		n += c
	}
	return n
}

// Run executes the scenario steps against s, writing one line per step and
// one indented line per notification to w. A get of an errored atom is
// reported and counted; a failing set stops the run.
func (p *Program) Run(ctx context.Context, s *atom.Store, w io.Writer) (*Report, error) {
	start := time.Now()
	r := &Report{
		Name:          p.file.Name,
		Notifications: make(map[string]int),
		Final:         make(map[string]string),
	}

	subs := make(map[string]func())
	defer func() {
		for _, unsubscribe := range subs {
			unsubscribe()
		}
	}()

	for _, st := range p.file.Steps {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		r.Steps++

		switch st.Kind {
		case StepGet:
			r.Gets++
			v, err := atom.Get(s, p.atoms[st.Atom])
			if err != nil {
				r.Errors++
				fmt.Fprintf(w, "get %s: error: %v\n", st.Atom, err)
				continue
			}
			fmt.Fprintf(w, "get %s = %s\n", st.Atom, formatFloat(v))

		case StepSet:
			r.Sets++
			parts := make([]string, len(st.Assign))
			for i, as := range st.Assign {
				parts[i] = as.Atom + " = " + formatFloat(as.Value)
			}
			fmt.Fprintf(w, "set %s\n", strings.Join(parts, ", "))

			err := s.Batch(func(set atom.Setter) error {
				for _, as := range st.Assign {
					if err := atom.Set(set, p.values[as.Atom], as.Value); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return r, p.stepError(st, err)
			}

		case StepSubscribe:
			if _, ok := subs[st.Atom]; ok {
				fmt.Fprintf(w, "subscribe %s: already subscribed\n", st.Atom)
				continue
			}
			fmt.Fprintf(w, "subscribe %s\n", st.Atom)
			name := st.Atom
			subs[name] = atom.Watch(s, p.atoms[name], func(v float64, err error) {
				r.Notifications[name]++
				if err != nil {
					fmt.Fprintf(w, "  notify %s: error: %v\n", name, err)
					return
				}
				fmt.Fprintf(w, "  notify %s = %s\n", name, formatFloat(v))
			})

		case StepUnsubscribe:
			unsubscribe, ok := subs[st.Atom]
			if !ok {
				fmt.Fprintf(w, "unsubscribe %s: not subscribed\n", st.Atom)
				continue
			}
			unsubscribe()
			delete(subs, st.Atom)
			fmt.Fprintf(w, "unsubscribe %s\n", st.Atom)
		}
	}

	for _, name := range p.order {
		v, err := atom.Get(s, p.atoms[name])
		if err != nil {
			r.Final[name] = "error: " + err.Error()
			continue
		}
		r.Final[name] = formatFloat(v)
	}
	r.Duration = time.Since(start)
	return r, nil
}

func (p *Program) stepError(st Step, err error) error {
	e := errors.FromError(err, "A165")
	if p.file.path != "" && st.Line > 0 {
		e.WithLocation(p.file.path, st.Line, st.Column)
	}
	return e
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
