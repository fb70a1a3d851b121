package models

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrConflictNotFound = errors.New("conflict not found")
	ErrChangeRejected   = errors.New("change rejected by server")
	ErrAckTimeout       = errors.New("timed out waiting for ack")
	ErrTransportClosed  = errors.New("transport closed")
)

// PushError reports a failed push of one queued change. The change
// remains queued; the next drain retries it.
type PushError struct {
	ChangeID    string
	SettingType SettingType
	SettingKey  string
	Err         error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push change %s (%s/%s): %v",
		e.ChangeID, e.SettingType, e.SettingKey, e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}
