package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNotifier_Notify(t *testing.T) {
	t.Run("sends to the operator", func(t *testing.T) {
		platform := new(MockPlatform)
		platform.On("SendText", mock.Anything, testOperator, "hello").Return(1, nil).Once()

		NewNotifier(platform, testOperator).Notify(context.Background(), "hello")

		platform.AssertExpectations(t)
	})

	t.Run("swallows failures", func(t *testing.T) {
		platform := new(MockPlatform)
		platform.On("SendText", mock.Anything, testOperator, "hello").Return(0, errors.New("chat not found")).Once()

		assert.NotPanics(t, func() {
			NewNotifier(platform, testOperator).Notify(context.Background(), "hello")
		})
		platform.AssertExpectations(t)
	})

	t.Run("disabled without an operator", func(t *testing.T) {
		platform := new(MockPlatform)

		NewNotifier(platform, 0).Notify(context.Background(), "hello")

		assert.Empty(t, platform.Calls)
	})
}
