package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/songledger/songledger/pkg/event"
	"github.com/songledger/songledger/pkg/record"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

const helpText = `commands:
  use <songs|report>             switch table
  find [term]                    filter rows (no term clears the filter)
  sort <column> [asc|desc|none]  order rows
  save col=value ...             create a row, or update it when id= is given
  del <id> [id...]               delete rows
  show                           print the current rows
  quit                           leave`

// Console turns typed commands into bus events. All printing happens on the
// UI loop.
type Console struct {
	bus     event.Publisher
	loop    *Loop
	printer *Printer
	views   map[event.Group]*View
	active  atomic.Int32
}

// NewConsole creates a console over views; the first view is active.
func NewConsole(bus event.Publisher, loop *Loop, printer *Printer, views ...*View) *Console {
	c := &Console{
		bus:     bus,
		loop:    loop,
		printer: printer,
		views:   make(map[event.Group]*View, len(views)),
	}
	for i, v := range views {
		c.views[v.Group()] = v
		if i == 0 {
			c.active.Store(int32(v.Group()))
		}
	}
	return c
}

// Active returns the group commands currently apply to.
func (c *Console) Active() event.Group { return event.Group(c.active.Load()) }

// Follow reprints the active view whenever an event changes it, and
// rejected saves for any view. Call it before the bus starts.
func (c *Console) Follow() {
	for _, v := range c.views {
		v.OnChange(func(v *View) {
			if p := v.Problems(); len(p) > 0 {
				_ = c.printer.PrintProblems(p)
				return
			}
			if v.Group() == c.Active() {
				_ = c.printer.PrintView(v)
			}
		})
	}
}

// Run reads commands from in until EOF, quit or ctx cancellation, then
// stops the loop.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	defer c.loop.Quit()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if err := c.Exec(ctx, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				c.post(func() { _ = c.printer.PrintError(err) })
			}
			c.prompt()
		}
	}
}

// Exec runs a single command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToLower(cmd) {
	case "":
		return nil
	case "help", "?":
		c.post(func() { _, _ = fmt.Fprintln(c.printer.stdout, helpText) })
		return nil
	case "quit", "exit", "q":
		return ErrQuit
	case "use":
		if len(args) != 1 {
			return errors.New("usage: use <songs|report>")
		}
		g, err := event.ParseGroup(args[0])
		if err != nil {
			return err
		}
		if _, ok := c.views[g]; !ok {
			return fmt.Errorf("table %q is not open", args[0])
		}
		c.active.Store(int32(g))
		c.show()
		return nil
	case "show":
		c.show()
		return nil
	case "find":
		c.publish(ctx, event.TypeSearchTermChanged, event.SearchTermChanged{Term: rest})
		return nil
	case "sort":
		key, err := c.sortKey(args)
		if err != nil {
			return err
		}
		c.publish(ctx, event.TypeSortChanged, event.SortChanged{Key: key})
		return nil
	case "save":
		fields, err := ParseAssignments(rest, c.view().Columns())
		if err != nil {
			return err
		}
		c.publish(ctx, event.TypeSaveRequested, event.SaveRequested{Fields: fields})
		return nil
	case "del", "delete", "rm":
		if len(args) == 0 {
			return errors.New("usage: del <id> [id...]")
		}
		c.publish(ctx, event.TypeRecordsDeleted, event.RecordsDeleted{IDs: args})
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

func (c *Console) sortKey(args []string) (record.SortKey, error) {
	if len(args) == 0 || len(args) > 2 {
		return record.SortKey{}, errors.New("usage: sort <column> [asc|desc|none]")
	}
	cols := c.view().Columns()
	idx := slices.Index(cols, strings.ToLower(args[0]))
	if idx < 0 {
		return record.SortKey{}, fmt.Errorf("unknown column %q (columns: %s)", args[0], strings.Join(cols, ", "))
	}
	dir := record.Ascending
	if len(args) == 2 {
		d, err := record.ParseDirection(args[1])
		if err != nil {
			return record.SortKey{}, err
		}
		dir = d
	}
	return record.SortKey{Column: idx, Name: cols[idx], Direction: dir}, nil
}

// ParseAssignments parses "col=value col=value" where a value runs until the
// next known column name followed by '='.
func ParseAssignments(s string, columns []string) (map[string]string, error) {
	fields := map[string]string{}
	current := ""
	for _, tok := range strings.Fields(s) {
		if k, v, ok := strings.Cut(tok, "="); ok && slices.Contains(columns, strings.ToLower(k)) {
			current = strings.ToLower(k)
			fields[current] = v
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("expected column=value, got %q", tok)
		}
		if fields[current] == "" {
			fields[current] = tok
		} else {
			fields[current] += " " + tok
		}
	}
	if len(fields) == 0 {
		return nil, errors.New("usage: save col=value ...")
	}
	return fields, nil
}

func (c *Console) view() *View { return c.views[c.Active()] }

func (c *Console) publish(ctx context.Context, t event.Type, payload any) {
	c.bus.Publish(ctx, event.Of(t).In(c.Active()), payload)
}

func (c *Console) show() {
	v := c.view()
	c.post(func() { _ = c.printer.PrintView(v) })
}

func (c *Console) prompt() {
	name := c.Active().String()
	c.post(func() { _, _ = fmt.Fprint(c.printer.stdout, c.printer.Prompt(name)) })
}

func (c *Console) post(fn func()) {
	if c.printer == nil {
		return
	}
	c.loop.Post(fn)
}
