package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPhoto(t *testing.T) {
	before := testutil.ToFloat64(PhotosTotal.WithLabelValues("failure"))
	RecordPhoto(errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(PhotosTotal.WithLabelValues("failure")))
}

func TestRecordRecording_DurationOnlyOnSuccess(t *testing.T) {
	before := testutil.CollectAndCount(RecordingDuration)
	RecordRecording(errors.New("encoder"), 3)
	RecordRecording(nil, 3)
	assert.Equal(t, before, testutil.CollectAndCount(RecordingDuration), "histogram is a single series")
	assert.GreaterOrEqual(t, testutil.ToFloat64(RecordingsTotal.WithLabelValues("success")), 1.0)
}

func TestSetRecording(t *testing.T) {
	SetRecording(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(Recording))
	SetRecording(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(Recording))
}

func TestRecordPermission(t *testing.T) {
	before := testutil.ToFloat64(PermissionResultsTotal.WithLabelValues("microphone", "false"))
	RecordPermission("microphone", false)
	assert.Equal(t, before+1, testutil.ToFloat64(PermissionResultsTotal.WithLabelValues("microphone", "false")))
}
