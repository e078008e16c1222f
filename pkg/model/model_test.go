package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusActive(t *testing.T) {
	assert.True(t, StatusPending.Active())
	assert.True(t, StatusNeedsDNS.Active())
	assert.True(t, StatusVerifying.Active())
	assert.False(t, StatusVerified.Active())
	assert.False(t, StatusAssigned.Active())
	assert.False(t, StatusError.Active())
}

func TestStatusOwnershipProven(t *testing.T) {
	assert.True(t, StatusVerified.OwnershipProven())
	assert.True(t, StatusAssigned.OwnershipProven())
	assert.False(t, StatusNeedsDNS.OwnershipProven())
	assert.False(t, StatusError.OwnershipProven())
}

func TestVerificationTypeIsValid(t *testing.T) {
	assert.NoError(t, VerificationTypeTxt.IsValid())
	assert.NoError(t, VerificationTypeCname.IsValid())
	assert.Error(t, VerificationType("MX").IsValid())
	assert.Error(t, VerificationType("").IsValid())
}

func TestTXTRecordName(t *testing.T) {
	assert.Equal(t, "_verify.example.com", TXTRecordName("example.com"))
}
