package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"querysync/internal/core/errors"
	"querysync/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_WatchResyncsOnChange(t *testing.T) {
	env := newTestEnv(t, fixture(t))
	svc, err := NewService(env.deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan error, 8)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, func(_ ports.SyncResult, err error) {
			results <- err
		})
	}()

	select {
	case err := <-results:
		require.NoError(t, err, "initial sync")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the initial sync")
	}

	src := filepath.Join(env.root, "java", "com", "test", "Class2.java")
	require.NoError(t, os.WriteFile(src, []byte("package com.test;\nclass Class2 {}"), 0o644))

	select {
	case err := <-results:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the watch-triggered sync")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestService_WatchWithoutImportRoots(t *testing.T) {
	env := newTestEnv(t, fixture(t))
	require.NoError(t, os.RemoveAll(filepath.Join(env.root, "java")))
	svc, err := NewService(env.deps)
	require.NoError(t, err)

	err = svc.Watch(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}
