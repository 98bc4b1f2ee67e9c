package sysinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectReportsUsableWorkers(t *testing.T) {
	info := Detect()
	assert.GreaterOrEqual(t, info.DefaultWorkers(), 1)
	assert.Greater(t, info.MaxThreads, 0)
	assert.NotEmpty(t, info.String())
}

func TestDefaultWorkersIsCappedByMaxThreads(t *testing.T) {
	assert.Equal(t, 4, Info{LogicalCores: 16, MaxThreads: 4}.DefaultWorkers())
	assert.Equal(t, 8, Info{LogicalCores: 8, MaxThreads: 32}.DefaultWorkers())
	assert.GreaterOrEqual(t, Info{}.DefaultWorkers(), 1)
}

func TestCheckBuffers(t *testing.T) {
	info := Info{MemoryMB: 100}
	assert.NoError(t, info.CheckBuffers(1024*1024))
	assert.Error(t, info.CheckBuffers(100*1024*1024))
	assert.NoError(t, Info{}.CheckBuffers(1<<40))
}
