package editor

import (
	"context"
	"errors"
	"sync"
)

// Mode is what an open dialog is editing.
type Mode int

const (
	ModeClosed Mode = iota
	ModeCreate
	ModeEdit
)

var ErrDialogClosed = errors.New("dialog is not open")

// Dialog is the open/closed state of an editor modal.
//
// Submit closes the dialog once the persistence call returns, whether or not
// it failed. OnError may keep the dialog open by returning true.
type Dialog struct {
	OnError func(error) (keepOpen bool)

	mu     sync.Mutex
	mode   Mode
	target uint
}

func (d *Dialog) Open(mode Mode, target uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
	d.target = target
}

func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = ModeClosed
	d.target = 0
}

func (d *Dialog) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Target is the record id being edited, 0 when creating.
func (d *Dialog) Target() uint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

func (d *Dialog) IsOpen() bool {
	return d.Mode() != ModeClosed
}

// Submit runs call and closes the dialog. The call error is returned as is.
func (d *Dialog) Submit(ctx context.Context, call func(context.Context) error) error {
	if !d.IsOpen() {
		return ErrDialogClosed
	}
	err := call(ctx)
	if err != nil && d.OnError != nil && d.OnError(err) {
		return err
	}
	d.Close()
	return err
}
