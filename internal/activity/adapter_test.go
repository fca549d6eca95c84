package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenmobilitypass/tripdetect/internal/activity"
)

type captureSink struct {
	observations []activity.Observation
	full         bool
}

func (s *captureSink) OfferObservation(obs activity.Observation) bool {
	if s.full {
		return false
	}
	s.observations = append(s.observations, obs)
	return true
}

func TestAdapter_Deliver(t *testing.T) {
	sink := &captureSink{}
	adapter := activity.NewAdapter(sink, zerolog.Nop())

	now := time.Now().UnixNano()
	adapter.Deliver(activity.RawTransition{
		Activity:             "WALKING",
		Transition:           "ENTER",
		ElapsedRealtimeNanos: now,
		Confidence:           87,
	})

	require.Len(t, sink.observations, 1)
	obs := sink.observations[0]
	assert.Equal(t, activity.TypeWalking, obs.Activity)
	assert.Equal(t, activity.TransitionEnter, obs.Transition)
	assert.Equal(t, 87, obs.Confidence)
	assert.Equal(t, time.Unix(0, now), obs.ObservedAt)
}

func TestAdapter_Deliver_ClampsConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "negative", in: -5, want: 0},
		{name: "above range", in: 140, want: 100},
		{name: "in range", in: 55, want: 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			adapter := activity.NewAdapter(sink, zerolog.Nop())

			adapter.Deliver(activity.RawTransition{
				Activity:   "ON_BICYCLE",
				Transition: "EXIT",
				Confidence: tt.in,
			})

			require.Len(t, sink.observations, 1)
			assert.Equal(t, tt.want, sink.observations[0].Confidence)
		})
	}
}

func TestAdapter_Deliver_DropsUnsupported(t *testing.T) {
	sink := &captureSink{}
	adapter := activity.NewAdapter(sink, zerolog.Nop())

	adapter.Deliver(activity.RawTransition{Activity: "TILTING", Transition: "ENTER"})
	adapter.Deliver(activity.RawTransition{Activity: "JETPACK", Transition: "ENTER"})
	adapter.Deliver(activity.RawTransition{Activity: "WALKING", Transition: "SIDEWAYS"})

	assert.Empty(t, sink.observations)
}

func TestAdapter_Deliver_FullSinkDoesNotPanic(t *testing.T) {
	sink := &captureSink{full: true}
	adapter := activity.NewAdapter(sink, zerolog.Nop())

	adapter.Deliver(activity.RawTransition{Activity: "WALKING", Transition: "ENTER"})

	assert.Empty(t, sink.observations)
}

func TestReplaySource_DeliversInOrder(t *testing.T) {
	source := &activity.ReplaySource{
		Steps: []activity.ReplayStep{
			{Raw: activity.RawTransition{Activity: "WALKING", Transition: "ENTER", Confidence: 80}},
			{Raw: activity.RawTransition{Activity: "WALKING", Transition: "EXIT", Confidence: 70}},
			{Raw: activity.RawTransition{Activity: "STILL", Transition: "ENTER", Confidence: 90}},
		},
	}

	sink := &captureSink{}
	adapter := activity.NewAdapter(sink, zerolog.Nop())

	err := adapter.Run(context.Background(), source)
	require.NoError(t, err)

	require.Len(t, sink.observations, 3)
	assert.Equal(t, activity.TypeWalking, sink.observations[0].Activity)
	assert.Equal(t, activity.TransitionExit, sink.observations[1].Transition)
	assert.Equal(t, activity.TypeStill, sink.observations[2].Activity)
}

func TestReplaySource_CancelledContext(t *testing.T) {
	source := &activity.ReplaySource{
		Steps: []activity.ReplayStep{
			{Delay: time.Second, Raw: activity.RawTransition{Activity: "WALKING", Transition: "ENTER"}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &captureSink{}
	adapter := activity.NewAdapter(sink, zerolog.Nop())

	err := adapter.Run(ctx, source)
	require.Error(t, err)
	assert.Empty(t, sink.observations)
}

func TestType_Moving(t *testing.T) {
	assert.True(t, activity.TypeWalking.Moving())
	assert.True(t, activity.TypeRunning.Moving())
	assert.True(t, activity.TypeOnBicycle.Moving())
	assert.True(t, activity.TypeInVehicle.Moving())
	assert.False(t, activity.TypeStill.Moving())
	assert.False(t, activity.TypeTilting.Moving())
	assert.False(t, activity.TypeUnknown.Moving())
}
