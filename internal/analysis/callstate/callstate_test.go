package callstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contract-ace/smartace/internal/ast"
)

func TestThreadingFor(t *testing.T) {
	assert.Equal(t, Full, ThreadingFor(ast.MutNonpayable, false))
	assert.Equal(t, SelfOnly, ThreadingFor(ast.MutPure, false))
	assert.Equal(t, None, ThreadingFor(ast.MutPure, true))
}

func TestNextExternal_SetsPaidAndSender(t *testing.T) {
	cur := State{Sender: "sender", Value: "value", Blocknum: "blocknum", Timestamp: "timestamp", Origin: "origin"}
	next := NextExternal(cur, "self_addr", "")
	assert.True(t, next.Paid)
	assert.Equal(t, "self_addr", next.Sender)
	assert.Equal(t, "0", next.Value)
	assert.Equal(t, "blocknum", next.Blocknum)
}

func TestNextInternal_ClearsPaid(t *testing.T) {
	cur := State{Sender: "sender", Paid: true}
	next := NextInternal(cur)
	assert.False(t, next.Paid)
	assert.Equal(t, "sender", next.Sender)
}
