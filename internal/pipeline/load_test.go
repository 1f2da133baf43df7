package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidewatch/internal/types"
)

func TestLoadModelsRestoresAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := serviceAt(t, dir)
	_, err := first.Train(ctx, fullTrainRequest())
	require.NoError(t, err)
	_, err = first.ClassifyThreat(ctx, types.ConditionsInput{})
	require.NoError(t, err)

	second := serviceAt(t, dir)
	restored := second.LoadModels(ctx)
	assert.Equal(t, 5, restored) // three forecasters, detector pair, classifier pair

	fromFirst, err := first.PredictWaterLevels(ctx, 12)
	require.NoError(t, err)
	fromSecond, err := second.PredictWaterLevels(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, fromFirst.Predictions, fromSecond.Predictions)

	rows := hourlySeries(3, func(i int) float64 { return 1.1 })
	for i := range rows {
		rows[i].SensorType = string(types.SensorWaterLevel)
	}
	_, err = second.DetectAnomalies(ctx, rows)
	require.NoError(t, err)

	status, err := second.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ClassifierBootstrapped, status.ClassifierState)

	verdict, err := second.ClassifyThreat(ctx, types.ConditionsInput{WaterLevel: fptr(0.3)})
	require.NoError(t, err)
	assert.NotEmpty(t, verdict.PredictedLevel)
}

func TestLoadModelsSkipsCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := serviceAt(t, dir)
	_, err := first.Train(ctx, map[types.SensorType][]types.RawReading{
		types.SensorWaterLevel: hourlySeries(30, func(i int) float64 { return 1.0 }),
	})
	require.NoError(t, err)

	payload := filepath.Join(dir, "forecaster_water_level.json.zst")
	require.NoError(t, os.WriteFile(payload, []byte("not a zstd frame"), 0o644))

	second := serviceAt(t, dir)
	assert.Equal(t, 0, second.LoadModels(ctx))

	_, err = second.PredictWaterLevels(ctx, 24)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeModelNotReady))
}

func TestLoadModelsEmptyRegistry(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, 0, svc.LoadModels(context.Background()))
}

func TestLoadModelsIncompletePairStaysUntrained(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := serviceAt(t, dir)
	_, err := first.Train(ctx, fullTrainRequest())
	require.NoError(t, err)

	// Drop the detector's scaler half; the forest alone must not install.
	require.NoError(t, os.Remove(filepath.Join(dir, "scaler.json.zst")))
	require.NoError(t, os.Remove(filepath.Join(dir, "scaler.info.json")))

	second := serviceAt(t, dir)
	assert.Equal(t, 3, second.LoadModels(ctx))

	_, err = second.DetectAnomalies(ctx, nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeModelNotReady))

	_, err = second.PredictWaterLevels(ctx, 6)
	require.NoError(t, err)
}
