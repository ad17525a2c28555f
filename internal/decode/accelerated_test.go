package decode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vzahanych/barcode-scanner/internal/logger"
)

func TestNewAccelerated_InitFailure(t *testing.T) {
	_, err := NewAccelerated(&fakeDetector{initErr: errDetector}, nil, logger.NewNopLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccelerationInit)

	_, err = NewAccelerated(nil, nil, logger.NewNopLogger())
	assert.ErrorIs(t, err, ErrAccelerationInit)
}

func TestAccelerated_EmitsFirstCandidate(t *testing.T) {
	det := &fakeDetector{candidates: []Candidate{
		{Value: "5901234123457", Format: FormatEAN13},
		{Value: "96385074", Format: FormatEAN8},
	}}
	acc, err := NewAccelerated(det, []Format{FormatEAN13, FormatEAN8}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatEAN13, FormatEAN8}, det.formats)

	sink := &detectionSink{}
	require.NoError(t, acc.Start(context.Background(), nil, sink.emit))
	acc.OnFrame(context.Background(), blankFrame())

	require.Equal(t, 1, sink.count())
	assert.Equal(t, "5901234123457", sink.first().Value)
	assert.Equal(t, FormatEAN13, sink.first().Format)
	assert.Equal(t, KindAccelerated, acc.Kind())
}

func TestAccelerated_TransientFailuresAreSilent(t *testing.T) {
	det := &fakeDetector{}
	acc, err := NewAccelerated(det, nil, logger.NewNopLogger())
	require.NoError(t, err)
	sink := &detectionSink{}
	require.NoError(t, acc.Start(context.Background(), nil, sink.emit))

	acc.OnFrame(context.Background(), blankFrame())
	det.detectErr = errDetector
	acc.OnFrame(context.Background(), blankFrame())

	assert.Equal(t, 2, det.calls)
	assert.Zero(t, sink.count())
}

func TestAccelerated_IgnoresFramesWhenStopped(t *testing.T) {
	det := &fakeDetector{candidates: []Candidate{{Value: "x", Format: FormatCode128}}}
	acc, err := NewAccelerated(det, nil, logger.NewNopLogger())
	require.NoError(t, err)
	sink := &detectionSink{}

	acc.OnFrame(context.Background(), blankFrame())
	assert.Zero(t, det.calls)

	require.NoError(t, acc.Start(context.Background(), nil, sink.emit))
	require.NoError(t, acc.Stop())
	assert.True(t, det.closed)

	acc.OnFrame(context.Background(), blankFrame())
	assert.Zero(t, sink.count())
	require.NoError(t, acc.Stop())
}

func TestAccelerated_CancelledContextDropsResult(t *testing.T) {
	det := &fakeDetector{candidates: []Candidate{{Value: "x", Format: FormatCode128}}}
	acc, err := NewAccelerated(det, nil, logger.NewNopLogger())
	require.NoError(t, err)
	sink := &detectionSink{}
	require.NoError(t, acc.Start(context.Background(), nil, sink.emit))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	acc.OnFrame(ctx, blankFrame())
	assert.Zero(t, sink.count())
}

func TestAccelerated_StopClosesUnstartedDetector(t *testing.T) {
	det := &fakeDetector{}
	acc, err := NewAccelerated(det, nil, logger.NewNopLogger())
	require.NoError(t, err)

	require.Error(t, acc.Start(context.Background(), nil, nil))
	require.NoError(t, acc.Stop())
	assert.True(t, det.closed)

	sink := &detectionSink{}
	assert.Error(t, acc.Start(context.Background(), nil, sink.emit))
}
