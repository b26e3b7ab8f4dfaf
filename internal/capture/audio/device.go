// Package audio implements capture.Device on top of miniaudio (malgo): the
// microphone is recorded to a raw PCM file while a ring buffer keeps recent
// samples for a level meter.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/capture"
	"github.com/alkime/wardrobe/pkg/channels"
	"github.com/alkime/wardrobe/pkg/collections"
	"github.com/alkime/wardrobe/pkg/uictl"
	"github.com/gen2brain/malgo"
)

// DataPacket is one callback's worth of raw sample bytes.
type DataPacket = []byte

// recorderSendTimeout bounds how long the broadcaster waits on a slow disk
// before dropping a packet.
const recorderSendTimeout = time.Second

// Microphone is a capture.Device backed by the default malgo capture device.
type Microphone struct {
	conf   DeviceConfig
	dir    string
	levels *SampleRingBuffer
	logger *slog.Logger

	mu       sync.Mutex
	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
	rec      *session

	// sink is read from the malgo callback thread.
	sink atomic.Pointer[sink]
}

type sink struct {
	input chan<- DataPacket
}

// session is one Start..Stop recording.
type session struct {
	cancel     context.CancelFunc
	bc         *channels.Broadcaster[DataPacket]
	recC       chan DataPacket
	levelC     chan DataPacket
	recorder   *Recorder
	levelsDone chan struct{}
}

// NewMicrophone returns a microphone that records into dir.
func NewMicrophone(conf DeviceConfig, dir string, logger *slog.Logger) *Microphone {
	if logger == nil {
		logger = slog.Default()
	}

	return &Microphone{
		conf:   conf,
		dir:    dir,
		levels: NewSampleRingBuffer(levelWindow * 4),
		logger: logger,
	}
}

var _ capture.Device = (*Microphone)(nil)

func (m *Microphone) Acquire(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mgDevice != nil {
		return nil
	}

	mgCtx, mgDevice, err := m.allocMGDevice()
	if err != nil {
		return classifyAcquireError(err)
	}

	m.mgCtx = mgCtx
	m.mgDevice = mgDevice
	m.logger.Debug("microphone acquired", "sample_rate", m.conf.SampleRate, "channels", m.conf.CaptureChannels)

	return nil
}

func (m *Microphone) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mgDevice == nil {
		return capture.ErrNotAcquired
	}

	if m.rec != nil {
		return nil
	}

	s, err := m.startSession()
	if err != nil {
		return err
	}

	if err := m.mgDevice.Start(); err != nil {
		m.endSession(s)
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	m.rec = s

	return nil
}

func (m *Microphone) Stop(_ context.Context) (artifact.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mgDevice == nil {
		return artifact.Artifact{}, capture.ErrNotAcquired
	}

	if m.rec == nil {
		return artifact.Artifact{}, capture.ErrNotStarted
	}

	stopErr := m.mgDevice.Stop()
	s := m.rec
	m.rec = nil

	recErr := m.endSession(s)
	if err := errors.Join(stopErr, recErr); err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to finish recording: %w", err)
	}

	m.logger.Info("recording stopped", "bytes", s.recorder.BytesWritten(), "path", s.recorder.Path())

	return artifact.FromFile(s.recorder.Path(), artifact.MediaTypePCM)
}

func (m *Microphone) Release(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rec != nil {
		if m.mgDevice != nil {
			_ = m.mgDevice.Stop()
		}

		_ = m.endSession(m.rec)
		m.rec = nil
	}

	m.deallocMGDevice()
}

// Levels exposes recent samples for a waveform display.
func (m *Microphone) Levels() uictl.Levels[int16] {
	return NewWindow(m.levels, levelWindow)
}

// Recorded reports bytes written by the current recording.
func (m *Microphone) Recorded() uictl.Dial[int64] {
	return recordedDial{m: m}
}

type recordedDial struct {
	m *Microphone
}

func (d recordedDial) Read() int64 {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()

	if d.m.rec == nil {
		return 0
	}

	return d.m.rec.recorder.BytesWritten()
}

// startSession wires malgo callback -> broadcaster -> {recorder, levels}.
func (m *Microphone) startSession() (*session, error) {
	recC := make(chan DataPacket, 64)
	levelC := make(chan DataPacket, 8)

	bc := channels.NewBroadcaster[DataPacket]()
	if err := bc.SubscribeWithTimeout(recC, recorderSendTimeout); err != nil {
		return nil, fmt.Errorf("failed to subscribe recorder: %w", err)
	}

	if err := bc.Subscribe(levelC); err != nil {
		return nil, fmt.Errorf("failed to subscribe level meter: %w", err)
	}

	recorder, err := NewRecorder(filepath.Join(m.dir, PCMFile), recC)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	if err := recorder.Start(); err != nil {
		return nil, err
	}

	bcCtx, cancel := context.WithCancel(context.Background())

	input, err := bc.Run(bcCtx)
	if err != nil {
		cancel()
		close(recC)
		_ = recorder.Wait()

		return nil, fmt.Errorf("failed to start broadcaster: %w", err)
	}

	m.levels.Reset()
	levelsDone := make(chan struct{})

	go func() {
		defer close(levelsDone)

		for p := range levelC {
			m.levels.Write(BytesToInt16(p))
		}
	}()

	m.sink.Store(&sink{input: input})

	return &session{
		cancel:     cancel,
		bc:         bc,
		recC:       recC,
		levelC:     levelC,
		recorder:   recorder,
		levelsDone: levelsDone,
	}, nil
}

// endSession drains everything captured so far into the recorder.
func (m *Microphone) endSession(s *session) error {
	m.sink.Store(nil)

	s.cancel()
	s.bc.Wait()

	close(s.recC)
	close(s.levelC)
	<-s.levelsDone

	for i, st := range s.bc.Stats() {
		if st.Dropped > 0 {
			m.logger.Warn("dropped audio packets", "subscriber", i, "dropped", st.Dropped)
		}
	}

	return s.recorder.Wait()
}

func (m *Microphone) onData(_, samples []byte, _ uint32) {
	sk := m.sink.Load()
	if sk == nil {
		return
	}

	// malgo reuses the sample buffer between callbacks
	packet := make(DataPacket, len(samples))
	copy(packet, samples)

	_ = channels.SendNonBlock(sk.input, packet)
}

func (m *Microphone) allocMGDevice() (*malgo.AllocatedContext, *malgo.Device, error) {
	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Capture)
	devCnf.Capture.Format = m.conf.Format
	devCnf.Capture.Channels = uint32(m.conf.CaptureChannels) //nolint:gosec // small positive config value
	devCnf.SampleRate = uint32(m.conf.SampleRate)             //nolint:gosec // small positive config value

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, malgo.DeviceCallbacks{
		Data: m.onData,
	})
	if err != nil {
		uninitializeContext(mgCtx)
		return nil, nil, fmt.Errorf("failed to initialize malgo device: %w", err)
	}

	return mgCtx, mgDevice, nil
}

func (m *Microphone) deallocMGDevice() {
	if m.mgDevice == nil {
		return
	}

	m.mgDevice.Uninit()
	uninitializeContext(m.mgCtx)
	m.mgDevice = nil
	m.mgCtx = nil
	m.logger.Debug("microphone released")
}

// classifyAcquireError maps a malgo failure onto the capture sentinels.
func classifyAcquireError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %w", capture.ErrPermissionDenied, err)
	}

	return fmt.Errorf("%w: %w", capture.ErrDeviceUnavailable, err)
}

// Info describes a capture device reported by the OS.
type Info struct {
	Name        string
	IsDefault   bool
	FormatCount int
	Formats     []string
}

// EnumerateDevices lists the available capture devices.
func EnumerateDevices(_ context.Context) ([]Info, error) {
	devCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer uninitializeContext(devCtx)

	captureDevices, err := devCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture devices: %w", err)
	}

	return collections.Apply(captureDevices, malgoDeviceInfoToDeviceInfo), nil
}

func malgoDeviceInfoToDeviceInfo(mdi malgo.DeviceInfo) Info {
	n := min(int(mdi.FormatCount), len(mdi.Formats))
	formats := make([]string, 0, n)

	for _, mf := range mdi.Formats[:n] {
		formats = append(formats, fmt.Sprintf("(SampleSizeBytes: %d, Channels: %d, SampleRate: %d)",
			malgo.SampleSizeInBytes(mf.Format), mf.Channels, mf.SampleRate))
	}

	return Info{
		Name:        mdi.Name(),
		IsDefault:   mdi.IsDefault != 0,
		FormatCount: int(mdi.FormatCount),
		Formats:     formats,
	}
}

func uninitializeContext(deviceCtx *malgo.AllocatedContext) {
	if deviceCtx == nil {
		return
	}

	if err := deviceCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	deviceCtx.Free()
}
