// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// Compile-time interface checks.
var (
	_ Engine     = (*PionEngine)(nil)
	_ Connection = (*pionConnection)(nil)
)

// opusCapability is the only codec sunset negotiates. Browsers all
// support it and it is what Microphone implementations encode.
var opusCapability = webrtc.RTPCodecCapability{
	MimeType:    webrtc.MimeTypeOpus,
	ClockRate:   48000,
	Channels:    2,
	SDPFmtpLine: "minptime=10;useinbandfec=1",
}

// PionOptions configures a PionEngine.
type PionOptions struct {
	ICE ICEConfig

	// Microphone provides capture. Nil makes AcquireMicrophone fail
	// with ErrNoMicrophone; the peer can still receive audio.
	Microphone Microphone

	// StreamID labels the local media stream, normally the peer ID.
	StreamID string

	// OnRemoteTrack takes ownership of a remote track for playback.
	// When nil, incoming RTP is read and discarded so pion's buffers
	// keep draining.
	OnRemoteTrack func(peer string, track *webrtc.TrackRemote)

	Logger *slog.Logger
}

// PionEngine is the pion/webrtc backed Engine. All connections share one
// local Opus track, so starting or stopping the microphone affects every
// peer at once.
type PionEngine struct {
	api     *webrtc.API
	options PionOptions
	track   *webrtc.TrackLocalStaticSample
	logger  *slog.Logger

	muted atomic.Bool

	mu          sync.Mutex
	capture     Capture
	connections map[*pionConnection]struct{}
}

// NewPionEngine builds the pion API (Opus-only media engine, loopback
// candidates enabled for same-host peers) and the shared local track.
func NewPionEngine(options PionOptions) (*PionEngine, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: opusCapability,
		PayloadType:        111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("registering opus codec: %w", err)
	}

	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	streamID := options.StreamID
	if streamID == "" {
		streamID = "sunset"
	}
	track, err := webrtc.NewTrackLocalStaticSample(opusCapability, "audio", streamID)
	if err != nil {
		return nil, fmt.Errorf("creating local audio track: %w", err)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PionEngine{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithSettingEngine(settingEngine),
		),
		options:     options,
		track:       track,
		logger:      logger.With("component", "media"),
		connections: make(map[*pionConnection]struct{}),
	}, nil
}

// AcquireMicrophone opens the configured microphone and starts pumping
// its frames into the shared track.
func (e *PionEngine) AcquireMicrophone(ctx context.Context) error {
	if e.options.Microphone == nil {
		return ErrNoMicrophone
	}
	e.mu.Lock()
	if e.capture != nil {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	capture, err := e.options.Microphone.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoMicrophone, err)
	}

	e.mu.Lock()
	if e.capture != nil {
		e.mu.Unlock()
		capture.Close()
		return nil
	}
	e.capture = capture
	e.mu.Unlock()

	go e.pump(capture)
	return nil
}

func (e *PionEngine) pump(capture Capture) {
	for {
		frame, duration, err := capture.ReadFrame()
		if err != nil {
			return
		}
		if e.muted.Load() {
			continue
		}
		if err := e.track.WriteSample(pionmedia.Sample{Data: frame, Duration: duration}); err != nil &&
			!errors.Is(err, io.ErrClosedPipe) {
			e.logger.Debug("writing audio sample failed", "error", err)
		}
	}
}

// ReleaseMicrophone closes the capture; the pump goroutine exits.
func (e *PionEngine) ReleaseMicrophone() {
	e.mu.Lock()
	capture := e.capture
	e.capture = nil
	e.mu.Unlock()
	if capture != nil {
		capture.Close()
	}
}

func (e *PionEngine) SetMuted(muted bool) { e.muted.Store(muted) }

func (e *PionEngine) Capturing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capture != nil
}

func (e *PionEngine) Sending() bool { return e.Capturing() && !e.muted.Load() }

// NewConnection creates a PeerConnection to peer and wires its
// callbacks to observer.
func (e *PionEngine) NewConnection(peer string, observer Observer) (Connection, error) {
	pc, err := e.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: e.options.ICE.Servers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating PeerConnection for %s: %w", peer, err)
	}

	connection := &pionConnection{
		engine: e,
		peer:   peer,
		pc:     pc,
		logger: e.logger.With("peer", peer),
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		observer.ConnectionStateChanged(ConnectionState(state.String()))
		if state == webrtc.PeerConnectionStateClosed {
			e.forget(connection)
		}
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		observer.ICEStateChanged(ICEState(state.String()))
	})
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// A nil candidate marks the end of gathering.
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		observer.CandidateGathered(Candidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		observer.TrackReceived(TrackInfo{
			ID:       track.ID(),
			StreamID: track.StreamID(),
			Codec:    track.Codec().MimeType,
		})
		if e.options.OnRemoteTrack != nil {
			e.options.OnRemoteTrack(peer, track)
			return
		}
		go drainRemoteTrack(track)
	})

	e.mu.Lock()
	e.connections[connection] = struct{}{}
	e.mu.Unlock()
	return connection, nil
}

func drainRemoteTrack(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}

func (e *PionEngine) forget(connection *pionConnection) {
	e.mu.Lock()
	delete(e.connections, connection)
	e.mu.Unlock()
}

// Close releases the microphone and closes every open connection.
func (e *PionEngine) Close() error {
	e.ReleaseMicrophone()
	e.mu.Lock()
	connections := make([]*pionConnection, 0, len(e.connections))
	for connection := range e.connections {
		connections = append(connections, connection)
	}
	e.connections = make(map[*pionConnection]struct{})
	e.mu.Unlock()

	var errs []error
	for _, connection := range connections {
		if err := connection.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// pionConnection adapts a pion PeerConnection to Connection.
type pionConnection struct {
	engine *PionEngine
	peer   string
	pc     *webrtc.PeerConnection
	logger *slog.Logger

	mu      sync.Mutex
	senders []*webrtc.RTPSender
}

func (c *pionConnection) AddLocalTracks() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.senders) > 0 {
		return nil
	}
	sender, err := c.pc.AddTrack(c.engine.track)
	if err != nil {
		return fmt.Errorf("adding audio track: %w", err)
	}
	c.senders = append(c.senders, sender)

	// RTCP must be read for interceptors to run; nothing here uses it.
	go func() {
		buffer := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buffer); err != nil {
				return
			}
		}
	}()
	return nil
}

func (c *pionConnection) HasLocalTracks() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.senders) > 0
}

// CreateOffer creates an offer. A connection with no transceivers yet
// gets a receive-only audio transceiver so a peer without a microphone
// still asks for the remote's audio.
func (c *pionConnection) CreateOffer(iceRestart bool) (SessionDescription, error) {
	if len(c.pc.GetTransceivers()) == 0 {
		if _, err := c.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return SessionDescription{}, fmt.Errorf("adding audio transceiver: %w", err)
		}
	}
	offer, err := c.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
	if err != nil {
		return SessionDescription{}, fmt.Errorf("creating offer: %w", err)
	}
	return SessionDescription{Type: SDPOffer, SDP: offer.SDP}, nil
}

func (c *pionConnection) CreateAnswer() (SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return SessionDescription{}, fmt.Errorf("creating answer: %w", err)
	}
	return SessionDescription{Type: SDPAnswer, SDP: answer.SDP}, nil
}

func (c *pionConnection) SetLocalDescription(description SessionDescription) error {
	return c.pc.SetLocalDescription(toPion(description))
}

func (c *pionConnection) SetRemoteDescription(description SessionDescription) error {
	return c.pc.SetRemoteDescription(toPion(description))
}

// Rollback returns to stable from either pending side.
func (c *pionConnection) Rollback() error {
	rollback := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}
	if c.pc.SignalingState() == webrtc.SignalingStateHaveRemoteOffer {
		return c.pc.SetRemoteDescription(rollback)
	}
	return c.pc.SetLocalDescription(rollback)
}

func (c *pionConnection) AddICECandidate(candidate Candidate) error {
	return c.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        candidate.Candidate,
		SDPMid:           candidate.SDPMid,
		SDPMLineIndex:    candidate.SDPMLineIndex,
		UsernameFragment: candidate.UsernameFragment,
	})
}

func (c *pionConnection) SignalingState() SignalingState {
	return SignalingState(c.pc.SignalingState().String())
}

func (c *pionConnection) ICEState() ICEState {
	return ICEState(c.pc.ICEConnectionState().String())
}

func (c *pionConnection) ConnectionState() ConnectionState {
	return ConnectionState(c.pc.ConnectionState().String())
}

func (c *pionConnection) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *pionConnection) Close() error {
	return c.pc.Close()
}

func toPion(description SessionDescription) webrtc.SessionDescription {
	sdpType := webrtc.SDPTypeOffer
	if description.Type == SDPAnswer {
		sdpType = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: sdpType, SDP: description.SDP}
}
