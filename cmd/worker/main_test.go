package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campuspass/backend/config"
)

func TestQueueOptions(t *testing.T) {
	opts := queueOptions(config.NotificationsConfig{
		QueueName:          "campuspass:notifications",
		MaxRetries:         4,
		PollTimeoutSeconds: 7,
	})
	assert.Equal(t, "campuspass:notifications", opts.Name)
	assert.Equal(t, 4, opts.MaxRetries)
	assert.Equal(t, 7*time.Second, opts.PollTimeout)
}
