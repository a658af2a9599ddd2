package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Command is a user action on a session. The set is closed: only the types
// in this file implement it.
type Command interface {
	apply(s *Session)
}

type AddTest struct{ ID int64 }
type RemoveTest struct{ ID int64 }
type AddGroup struct{ ID int64 }
type RemoveGroup struct{ ID int64 }
type EditDiscount struct{ Value string }
type EditTotal struct{ Value string }
type EditPaid struct{ Value string }

func (c AddTest) apply(s *Session)      { s.AddTest(c.ID) }
func (c RemoveTest) apply(s *Session)   { s.RemoveTest(c.ID) }
func (c AddGroup) apply(s *Session)     { s.AddGroup(c.ID) }
func (c RemoveGroup) apply(s *Session)  { s.RemoveGroup(c.ID) }
func (c EditDiscount) apply(s *Session) { s.OnDiscountEdited(c.Value) }
func (c EditTotal) apply(s *Session)    { s.OnTotalEdited(c.Value) }
func (c EditPaid) apply(s *Session)     { s.OnPaidEdited(c.Value) }

// Dispatch applies cmd to the session.
func (s *Session) Dispatch(cmd Command) {
	cmd.apply(s)
}

// Envelope is the wire form of a command:
//
//	{"type": "add_test", "id": 12}
//	{"type": "edit_discount", "value": "50"}
//
// value may be a JSON string or number; null or absent means blank.
type Envelope struct {
	Type  string          `json:"type"`
	ID    int64           `json:"id,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (e Envelope) text() (string, error) {
	raw := bytes.TrimSpace(e.Value)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode value: %w", err)
		}
		return s, nil
	}
	return string(raw), nil
}

// Command converts the envelope into a typed command.
func (e Envelope) Command() (Command, error) {
	switch e.Type {
	case "add_test", "remove_test", "add_group", "remove_group":
		if e.ID <= 0 {
			return nil, fmt.Errorf("%s requires a positive id", e.Type)
		}
	}

	switch e.Type {
	case "add_test":
		return AddTest{ID: e.ID}, nil
	case "remove_test":
		return RemoveTest{ID: e.ID}, nil
	case "add_group":
		return AddGroup{ID: e.ID}, nil
	case "remove_group":
		return RemoveGroup{ID: e.ID}, nil
	case "edit_discount", "edit_total", "edit_paid":
		v, err := e.text()
		if err != nil {
			return nil, err
		}
		switch e.Type {
		case "edit_discount":
			return EditDiscount{Value: v}, nil
		case "edit_total":
			return EditTotal{Value: v}, nil
		default:
			return EditPaid{Value: v}, nil
		}
	default:
		return nil, fmt.Errorf("unknown command type %q", e.Type)
	}
}
