package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvCredentialsReadsSlotAndPIN(t *testing.T) {
	t.Setenv("SIGNBRIDGE_SLOT_ID", "2")
	t.Setenv("SIGNBRIDGE_PIN", "1234")

	slotID, pin, err := newEnvCredentials().SlotAndPIN(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint(2), slotID)
	require.Equal(t, "1234", pin)
}

func TestEnvCredentialsErrorsWhenSlotMissing(t *testing.T) {
	t.Setenv("SIGNBRIDGE_SLOT_ID", "")
	t.Setenv("SIGNBRIDGE_PIN", "1234")

	_, _, err := newEnvCredentials().SlotAndPIN(context.Background())
	require.Error(t, err)
}

func TestEnvCredentialsErrorsWhenSlotIsNotANumber(t *testing.T) {
	t.Setenv("SIGNBRIDGE_SLOT_ID", "not-a-number")
	t.Setenv("SIGNBRIDGE_PIN", "1234")

	_, _, err := newEnvCredentials().SlotAndPIN(context.Background())
	require.Error(t, err)
}
