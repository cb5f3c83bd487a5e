package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSubsystem(t *testing.T) {
	sub := NewSubsystem()
	assert.NotNil(t, sub.Registry)
	assert.NotNil(t, sub.Manager)
}

func TestDefaultSubsystemAccessor(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	sub := NewSubsystem()
	SetDefault(sub)

	assert.Same(t, sub, Default())
}
