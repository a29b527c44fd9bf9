package engine

import (
	"fmt"
	"reflect"

	"github.com/roach88/eventbind/internal/ir"
)

// Command is an action with an availability predicate.
type Command interface {
	Execute(param any)
	CanExecute(param any) bool
}

// CanExecuteNotifier is implemented by commands whose availability changes
// over time.
type CanExecuteNotifier interface {
	OnCanExecuteChanged(fn func()) (cancel func())
}

const commandMethod = "Execute"

var anyType = reflect.TypeFor[any]()

// commandRoot is the root command bindings resolve against. Every command
// binding shares its type, so they share one template per event signature.
type commandRoot struct {
	cmd Command
}

// Execute runs the command. CanExecute only drives the element's enabled
// state; a disabled host is expected not to raise the event.
func (r *commandRoot) Execute(param any) {
	r.cmd.Execute(param)
}

// staticRoot is a RootProvider whose root never changes.
type staticRoot struct {
	root any
}

func (s staticRoot) Root() any                      { return s.root }
func (s staticRoot) OnRootChanged(func(any)) func() { return nil }

// BindCommand executes cmd with param whenever event fires on el.
//
// When el implements Enabler its enabled state follows CanExecute: it is
// set once now and again on every change reported by a CanExecuteNotifier
// command, until the binding closes.
func (b *Binder) BindCommand(el Element, event string, cmd Command, param any) (*Binding, error) {
	if cmd == nil {
		return nil, fmt.Errorf("bind command to %q: nil command", event)
	}
	source, err := b.eventSource(el, event)
	if err != nil {
		return nil, err
	}

	decl, err := ir.NewDeclaration(commandMethod,
		[]ir.ArgumentSpec{ir.Literal{Value: param, Type: anyType}},
		ir.WithName("command:"+event),
		ir.WithEvents(event))
	if err != nil {
		return nil, err
	}

	var cleanup []func()
	if en, ok := el.(Enabler); ok {
		syncEnabled := func() { en.SetEnabled(cmd.CanExecute(param)) }
		syncEnabled()
		if n, ok := cmd.(CanExecuteNotifier); ok {
			cleanup = append(cleanup, n.OnCanExecuteChanged(syncEnabled))
		}
	}

	return b.bindSource(bindingParts{
		decl:      decl,
		eventName: event,
		source:    source,
		roots:     staticRoot{root: &commandRoot{cmd: cmd}},
		signals:   el,
		attached:  isAttached(el),
		cleanup:   cleanup,
	}, el)
}

// ActionCommand adapts a function to a Command that can always execute.
type ActionCommand func(param any)

// Execute calls f.
func (f ActionCommand) Execute(param any) { f(param) }

// CanExecute always returns true.
func (f ActionCommand) CanExecute(any) bool { return true }

// BindAction calls action with param whenever event fires on el.
func (b *Binder) BindAction(el Element, event string, action func(param any), param any) (*Binding, error) {
	if action == nil {
		return nil, fmt.Errorf("bind action to %q: nil action", event)
	}
	return b.BindCommand(el, event, ActionCommand(action), param)
}
