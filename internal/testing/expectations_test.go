package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	loginSuccessURI = "https://schemas.identity.wso2.org/events/login/event-type/loginSuccess"
	loginFailedURI  = "https://schemas.identity.wso2.org/events/login/event-type/loginFailed"
)

func TestExpectationStack_GlobalInsertionOrder(t *testing.T) {
	s := NewExpectationStack()
	assert.True(t, s.IsEmpty())

	s.Push(loginSuccessURI, map[string]interface{}{"n": 1})
	s.Push(loginFailedURI, map[string]interface{}{"n": 2})
	s.Push(loginSuccessURI, map[string]interface{}{"n": 3})

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 2, s.Pending(loginSuccessURI))
	assert.Equal(t, 1, s.Pending(loginFailedURI))

	var order []interface{}
	for {
		e, ok := s.PopOldest()
		if !ok {
			break
		}
		order = append(order, e.Payload["n"])
	}
	assert.Equal(t, []interface{}{1, 2, 3}, order)
	assert.True(t, s.IsEmpty())
}

func TestExpectationStack_PopEmpty(t *testing.T) {
	s := NewExpectationStack()
	e, ok := s.PopOldest()
	assert.False(t, ok)
	assert.Empty(t, e.EventURI)
}

func TestExpectationStack_Clear(t *testing.T) {
	s := NewExpectationStack()
	s.Push(loginSuccessURI, nil)
	s.Push(loginFailedURI, nil)

	s.Clear()
	assert.True(t, s.IsEmpty())
	assert.Zero(t, s.Pending(loginSuccessURI))

	// Pushing after Clear starts a fresh round
	s.Push(loginFailedURI, nil)
	e, ok := s.PopOldest()
	require.True(t, ok)
	assert.Equal(t, loginFailedURI, e.EventURI)
}

func TestExpectationStack_SnapshotIsCopy(t *testing.T) {
	s := NewExpectationStack()
	s.Push(loginSuccessURI, nil)

	snap := s.Snapshot()
	s.Push(loginFailedURI, nil)

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, s.Len())
}
