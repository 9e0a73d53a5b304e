package media_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"connectmeet/internal/media"
)

func TestCaptureUserMediaTrackIdentity(t *testing.T) {
	dev := media.NewSyntheticDevice()

	stream, err := dev.CaptureUserMedia(context.Background(), media.DefaultConstraints())
	require.NoError(t, err)
	defer stream.Stop()

	videos := stream.VideoTracks()
	audios := stream.AudioTracks()
	require.Len(t, videos, 1)
	require.Len(t, audios, 1)

	require.NotEqual(t, videos[0].ID(), audios[0].ID())
	require.Equal(t, stream.ID(), videos[0].Local().StreamID())
	require.Equal(t, stream.ID(), audios[0].Local().StreamID())
}

func TestCameraAndDisplayTracksAreDistinct(t *testing.T) {
	dev := media.NewSyntheticDevice()

	cam, err := dev.CaptureUserMedia(context.Background(), media.DefaultConstraints())
	require.NoError(t, err)
	defer cam.Stop()

	screen, err := dev.CaptureDisplay(context.Background())
	require.NoError(t, err)
	defer screen.Stop()

	camTrack := cam.VideoTracks()[0]
	screenTrack := screen.VideoTracks()[0]

	require.NotEqual(t, camTrack.ID(), screenTrack.ID())
	require.NotEqual(t, cam.ID(), screen.ID())
	require.Equal(t, "camera", camTrack.Label())
	require.Equal(t, "display", screenTrack.Label())
}
