package logsvc

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

func Test_newEntry(t *testing.T) {
	err := errors.New("boom")
	ann := user.User{ID: "1", Name: "Ann", Email: "ann@x.com"}

	e := newEntry([]interface{}{
		err, core.LogFields{"batch": "2024"}, ann, user.User{ID: "2"}, core.LogFields{"line": 3}, "extra",
	})
	assert.Equal(t, err, e.err)
	assert.Equal(t, core.LogFields{"batch": "2024", "line": 3}, e.fields)
	assert.Equal(t, &ann, e.actor, "only the first user is kept")
	assert.Equal(t, []interface{}{"extra"}, e.extras)

	assert.Equal(t, "saving batch batch=2024 line=3 user=ann@x.com", e.line("saving batch"))
	assert.Equal(t, []interface{}{
		"saving batch", err, map[string]interface{}{"batch": "2024", "line": 3, "extra": []interface{}{"extra"}},
	}, e.rollbarArgs("saving batch"))

	assert.Equal(t, []interface{}{"ping"}, newEntry(nil).rollbarArgs("ping"))
	assert.Nil(t, newEntry([]interface{}{user.User{}}).actor, "anonymous users are not reported")
}

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{})
	logger.Enable(false)

	logger.Error("creating the account", errors.New("db gone"), core.LogFields{"line": 4})
	// pkg/errors appends the stack trace after the message
	assert.True(t, strings.HasPrefix(buf.String(), "creating the account line=4\ndb gone\n"), buf.String())

	buf.Reset()
	logger.Info("Application stopped")
	assert.Equal(t, "Application stopped\n", buf.String())
}
