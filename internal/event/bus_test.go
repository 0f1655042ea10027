package event

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DispatchInOrder(t *testing.T) {
	b := NewBus()

	var got []string
	b.Subscribe("saved", func(ev Event) { got = append(got, "first:"+ev.Detail.(string)) })
	b.Subscribe("saved", func(ev Event) { got = append(got, "second:"+ev.Detail.(string)) })
	b.Subscribe("other", func(ev Event) { got = append(got, "other") })

	n := b.Dispatch("saved", "x")

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"first:x", "second:x"}, got)
}

func TestBus_DispatchWithoutHandlers(t *testing.T) {
	b := NewBus()
	assert.Zero(t, b.Dispatch("nobody", nil))
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()

	var n int
	unsubscribe := b.Subscribe("e", func(Event) { n++ })
	b.Dispatch("e", nil)
	unsubscribe()
	unsubscribe()
	b.Dispatch("e", nil)

	assert.Equal(t, 1, n)
	assert.Empty(t, b.Names())
}

func TestBus_HandlerMayDispatch(t *testing.T) {
	b := NewBus()

	var got []string
	b.Subscribe("outer", func(Event) {
		got = append(got, "outer")
		b.Dispatch("inner", nil)
	})
	b.Subscribe("inner", func(Event) { got = append(got, "inner") })

	b.Dispatch("outer", nil)
	assert.Equal(t, []string{"outer", "inner"}, got)
}

func TestBus_PanicIsContained(t *testing.T) {
	var buf bytes.Buffer
	b := NewBus(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	var reached bool
	b.Subscribe("e", func(Event) { panic("handler bug") })
	b.Subscribe("e", func(Event) { reached = true })

	assert.NotPanics(t, func() { b.Dispatch("e", nil) })
	assert.True(t, reached)
	assert.Contains(t, buf.String(), "handler bug")
}

func TestBus_Names(t *testing.T) {
	b := NewBus()
	b.Subscribe("b", func(Event) {})
	b.Subscribe("a", func(Event) {})
	assert.Equal(t, []string{"a", "b"}, b.Names())
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
}
