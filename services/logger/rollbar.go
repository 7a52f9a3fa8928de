package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// RollbarLogger prints to a std logger and reports every entry to rollbar.
// Args may hold an error, any number of core.LogFields (merged into the
// rollbar custom data) and the acting user.User.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

type entry struct {
	err    error
	fields core.LogFields
	actor  *user.User
	extras []interface{}
}

func newEntry(args []interface{}) entry {
	var e entry
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			if e.err == nil {
				e.err = v
			} else {
				e.extras = append(e.extras, v)
			}
		case core.LogFields:
			if e.fields == nil {
				e.fields = core.LogFields{}
			}
			for k, val := range v {
				e.fields[k] = val
			}
		case user.User:
			if e.actor == nil && v.ID != "" {
				usr := v
				e.actor = &usr
			}
		default:
			e.extras = append(e.extras, v)
		}
	}
	return e
}

// rollbarArgs follows the rollbar-go convention: msg, then an optional error
// and an optional map of custom data.
func (e entry) rollbarArgs(msg string) []interface{} {
	args := []interface{}{msg}
	if e.err != nil {
		args = append(args, e.err)
	}
	custom := map[string]interface{}{}
	for k, v := range e.fields {
		custom[k] = v
	}
	if len(e.extras) > 0 {
		custom["extra"] = e.extras
	}
	if len(custom) > 0 {
		args = append(args, custom)
	}
	return args
}

func (e entry) line(msg string) string {
	var sb strings.Builder
	sb.WriteString(msg)
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.fields[k])
	}
	if e.actor != nil {
		fmt.Fprintf(&sb, " user=%s", e.actor.Email)
	}
	return sb.String()
}

func (l RollbarLogger) report(level string, msg string, args []interface{}) {
	e := newEntry(args)
	if e.actor != nil {
		rollbar.SetPerson(e.actor.ID, e.actor.Name, e.actor.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, e.rollbarArgs(msg)...)

	l.std.Println(e.line(msg))
	if e.err != nil && e.err.Error() != msg {
		l.std.Printf("%+v\n", e.err)
	}
	for _, x := range e.extras {
		l.std.Printf("%+v\n", x)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.report(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.report(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
