package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/uniflow/internal/ir"
)

func TestCollector_RecordsInOrder(t *testing.T) {
	c := NewCollector()
	c.Accept(ir.InitMsg{})
	c.Accept(ir.IdleMsg{})

	assert.Equal(t, []ir.Msg{ir.InitMsg{}, ir.IdleMsg{}}, c.Msgs())
	assert.Equal(t, []string{"ir.InitMsg", "ir.IdleMsg"}, c.Types())
}

func TestCollector_WaitFor(t *testing.T) {
	c := NewCollector()
	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Accept(ir.InitMsg{})
	}()

	assert.True(t, c.WaitFor(1, time.Second))
	assert.False(t, c.WaitFor(2, 20*time.Millisecond))
}
