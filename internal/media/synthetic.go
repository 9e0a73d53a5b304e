package media

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	pionmedia "github.com/pion/webrtc/v3/pkg/media"
)

const audioFrameInterval = 20 * time.Millisecond

// SyntheticDevice generates media in-process: a blank video pattern and
// silent audio. It stands in for OS capture where no camera exists (servers,
// tests) and exercises the same track lifecycle.
type SyntheticDevice struct{}

func NewSyntheticDevice() *SyntheticDevice {
	return &SyntheticDevice{}
}

func (d *SyntheticDevice) CaptureUserMedia(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.Width <= 0 || c.Height <= 0 || c.FrameRate <= 0 {
		c = DefaultConstraints()
	}

	streamID := uuid.NewString()

	video, err := d.videoTrack("camera", streamID, c)
	if err != nil {
		return nil, err
	}

	audio, err := d.audioTrack(streamID)
	if err != nil {
		video.Stop()
		return nil, err
	}

	return NewStream(streamID, video, audio), nil
}

func (d *SyntheticDevice) CaptureDisplay(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	streamID := uuid.NewString()

	video, err := d.videoTrack("display", streamID, DefaultConstraints())
	if err != nil {
		return nil, err
	}

	return NewStream(streamID, video), nil
}

func (d *SyntheticDevice) videoTrack(label, streamID string, c Constraints) (*Track, error) {
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		uuid.NewString(), streamID,
	)
	if err != nil {
		return nil, ErrUnsupported
	}

	interval := time.Second / time.Duration(c.FrameRate)
	stop := make(chan struct{})
	track := NewTrack(KindVideo, label, local, func() { close(stop) })

	frame := make([]byte, c.Width*c.Height/16)
	go pumpSamples(local, track, frame, interval, stop)

	return track, nil
}

func (d *SyntheticDevice) audioTrack(streamID string) (*Track, error) {
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		uuid.NewString(), streamID,
	)
	if err != nil {
		return nil, ErrUnsupported
	}

	stop := make(chan struct{})
	track := NewTrack(KindAudio, "microphone", local, func() { close(stop) })

	silence := make([]byte, 960)
	go pumpSamples(local, track, silence, audioFrameInterval, stop)

	return track, nil
}

// pumpSamples writes a fixed payload at the given interval until the track
// is stopped. Disabled tracks keep the clock running but send nothing, so
// re-enabling resumes on the same track identity.
func pumpSamples(local *webrtc.TrackLocalStaticSample, track *Track, payload []byte, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !track.Enabled() {
				continue
			}
			_ = local.WriteSample(pionmedia.Sample{
				Data:     payload,
				Duration: interval,
			})
		}
	}
}
