package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// envCredentials stands in for the GUI token-picker/PIN-prompt collaborator
// (out of scope per spec.md §1): it reads the slot and PIN from environment
// variables set by whatever process launched this host. A real desktop
// build wires host.Credentials to the actual GUI instead.
type envCredentials struct{}

func newEnvCredentials() *envCredentials {
	return &envCredentials{}
}

func (envCredentials) SlotAndPIN(ctx context.Context) (uint, string, error) {
	slotStr := os.Getenv("SIGNBRIDGE_SLOT_ID")
	if slotStr == "" {
		return 0, "", fmt.Errorf("SIGNBRIDGE_SLOT_ID is not set")
	}
	slotID, err := strconv.ParseUint(slotStr, 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("SIGNBRIDGE_SLOT_ID %q is not a valid slot id: %w", slotStr, err)
	}

	pin := os.Getenv("SIGNBRIDGE_PIN")
	if pin == "" {
		return 0, "", fmt.Errorf("SIGNBRIDGE_PIN is not set")
	}

	return uint(slotID), pin, nil
}
