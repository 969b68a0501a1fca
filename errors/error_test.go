package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")
	require.NotNil(t, err)
	require.Equal(t, ERR_NOT_FOUND, err.code)
	require.Equal(t, "resource not found", err.message)

	secondErr := New(ERR_INVALID_ARGUMENT, "bad argument: %s", "x", err)
	thirdErr := New(ERR_TX_INVALID, "tx failed: %s", "y", secondErr)
	anotherErr := New(ERR_TX_INVALID, "another tx invalid error")
	fourthErr := New(ERR_PROTOCOL_VIOLATION, "wrapping: ", thirdErr)

	require.True(t, anotherErr.Is(thirdErr))
	require.True(t, fourthErr.Is(New(ERR_TX_INVALID, "")))
	require.True(t, fourthErr.Is(ErrTxInvalid))
	require.True(t, fourthErr.Is(err))

	require.False(t, anotherErr.Is(fourthErr))
}

func TestFmtErrorCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")
	wrapped := fmt.Errorf("error: %w", err)

	require.True(t, Is(wrapped, err))
	require.ErrorContains(t, wrapped, "resource not found")
}

func TestAsTarget(t *testing.T) {
	err := New(ERR_BAD_DATA, "header chain broken")

	var target *Error
	require.True(t, As(err, &target))
	require.Equal(t, ERR_BAD_DATA, target.Code())
}

func TestErrDataRoundtrip(t *testing.T) {
	err := New(ERR_MEMPOOL_FULL, "pool at capacity")
	err.SetData("capacity", 100000)

	require.Equal(t, 100000, err.GetData("capacity"))
}

func TestSentinelConstructors(t *testing.T) {
	require.True(t, Is(NewTxDuplicateError("dup"), ErrTxDuplicate))
	require.True(t, Is(NewMempoolFullError("full"), ErrMempoolFull))
	require.True(t, Is(NewPeerBannedError("banned"), ErrPeerBanned))
}
