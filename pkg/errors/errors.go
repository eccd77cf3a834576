package errors

import (
	"encoding/json"
	"errors"
)

// Error is an error with a category and a message meant for whoever
// is at the keyboard. The category says whose move it is next:
//  - Server: the registry (or the network) misbehaved; trying again may help.
//  - Missing: the thing asked for does not exist.
//  - User: nothing will work until the user changes something, e.g.,
//    supplies credentials or a registry URL.
type Error struct {
	Type Type
	// a message that can be printed out for the user
	Help string `json:"help"`
	// the underlying error, for logs
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Type string

const (
	Server  Type = "server"
	Missing Type = "missing"
	User    Type = "user"
)

func typeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

func IsMissing(err error) bool {
	return typeOf(err) == Missing
}

func IsUser(err error) bool {
	return typeOf(err) == User
}

func IsServer(err error) bool {
	return typeOf(err) == Server
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{
		Type: string(e.Type),
		Help: e.Help,
		Err:  errMsg,
	}
	return json.Marshal(jsonable)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{}
	if err := json.Unmarshal(data, &jsonable); err != nil {
		return err
	}
	e.Type = Type(jsonable.Type)
	e.Help = jsonable.Help
	if jsonable.Err != "" {
		e.Err = errors.New(jsonable.Err)
	}
	return nil
}

// CoverAllError gives an arbitrary error a generic help message, so
// that it can be shown like any other *Error.
func CoverAllError(err error) *Error {
	return &Error{
		Type: User,
		Err:  err,
		Help: `Error: ` + err.Error() + `

We don't have a specific help message for the error above.

It would help us remedy this if you log an issue at

    https://github.com/fluxcd/regbrowser/issues

saying what you were doing when you saw this, and quoting the message
at the top.
`,
	}
}
