package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/kozaktomas/attendance-kiosk/internal/geofence"
	"github.com/kozaktomas/attendance-kiosk/internal/metrics"
)

// User-visible messages.
const (
	MessageModelLoad      = "Failed to load face recognition models."
	MessageEnrollment     = "Failed to load employee data."
	MessageCameraDenied   = "Camera access denied"
	MessageNotAtLocation  = "Cannot scan: You are not at the required location."
	MessageNotRecognized  = "Face not recognized. Please try again."
	MessageSubmitFallback = "Error marking attendance"
)

// Options wires a session to its collaborators.
type Options struct {
	ID       string
	DeviceID string

	Camera    camera.Device
	Locator   geofence.Locator
	Site      geofence.Site
	Extractor Extractor
	Store     EnrollmentStore
	Submitter Submitter
	Matcher   facematch.Matcher

	// Cooldown is how long success feedback stays before re-arming.
	// Zero means constants.DefaultCooldown.
	Cooldown time.Duration
	// SampleInterval paces frames that produced no match. Zero samples
	// back to back.
	SampleInterval time.Duration

	// OnEvent is called synchronously, in order, with the session lock held.
	// It must not call back into the session.
	OnEvent func(Event)

	Logger *slog.Logger
	Now    func() time.Time
}

// Session is one camera-open-to-close lifetime of the scan engine.
//
// All fields below mu are guarded by it. gen identifies the current
// activity; Stop and Arm bump it so continuations started under an older
// generation discard their results.
type Session struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	state    State
	action   Action
	gen      uint64
	stream   camera.Stream
	matcher  *facematch.Prepared
	location *geofence.Result
	locMsg   string
	message  string
	last     *ScannedEmployee
	cancel   context.CancelFunc
	closed   bool

	wg sync.WaitGroup
}

// NewSession creates an idle session.
func NewSession(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	opts.Matcher = facematch.NewMatcher(opts.Matcher.Threshold, opts.Matcher.Policy, opts.Matcher.Dim)
	if opts.Cooldown <= 0 {
		opts.Cooldown = constants.DefaultCooldown
	}
	if opts.SampleInterval < 0 {
		opts.SampleInterval = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		opts: opts,
		log:  opts.Logger.With("session", opts.ID, "device", opts.DeviceID),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.opts.ID
}

// DeviceID returns the camera device the session owns.
func (s *Session) DeviceID() string {
	return s.opts.DeviceID
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ID:              s.opts.ID,
		DeviceID:        s.opts.DeviceID,
		State:           s.state,
		Action:          s.action,
		LocationMessage: s.locMsg,
		Message:         s.message,
	}
	if s.location != nil {
		loc := *s.location
		st.Location = &loc
	}
	if s.matcher != nil {
		st.Enrolled = s.matcher.Snapshot().Matchable(s.opts.Matcher.Dim)
	}
	if s.last != nil {
		last := *s.last
		st.LastScanned = &last
	}
	return st
}

// Start loads the model and enrollment snapshot, opens the camera and runs
// the one-time geofence check. A failed geofence is not an error: the
// session stays open in LocationDenied. When action is non-empty and the
// location is verified, scanning starts right away.
func (s *Session) Start(ctx context.Context, action Action) error {
	if action != "" {
		if _, err := ParseAction(string(action)); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.state.startable() {
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrBusy, s.state)
	}
	s.gen++
	gen := s.gen
	s.message = ""
	s.setStateLocked(StateAwaitingCamera)
	s.mu.Unlock()

	if err := s.opts.Extractor.Ready(ctx); err != nil {
		s.fail(gen, MessageModelLoad)
		return fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	snapshot, err := s.opts.Store.FetchAll(ctx)
	if err != nil {
		s.fail(gen, MessageEnrollment)
		return fmt.Errorf("%w: %w", ErrEnrollment, err)
	}
	prepared := s.opts.Matcher.Prepare(snapshot)
	if skipped := len(snapshot) - snapshot.Matchable(s.opts.Matcher.Dim); skipped > 0 {
		s.log.Warn("enrolled employees without a usable descriptor", "skipped", skipped, "total", len(snapshot))
	}

	stream, err := s.opts.Camera.Open(ctx)
	if err != nil {
		s.fail(gen, MessageCameraDenied)
		return fmt.Errorf("%w: %w", ErrPermission, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		stream.Close()
		return ErrStopped
	}
	s.stream = stream
	s.matcher = prepared
	s.locMsg = geofence.MessageChecking
	s.setStateLocked(StateCheckingLocation)
	s.mu.Unlock()

	// Evaluated once per session; never re-checked before submission.
	result := geofence.Check(ctx, s.opts.Locator, s.opts.Site)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrStopped
	}
	s.location = &result
	s.locMsg = result.Reason
	if !result.Verified {
		metrics.GeofenceChecks.WithLabelValues("denied").Inc()
		s.log.Info("location not verified", "distance_m", result.DistanceMeters, "reason", result.Reason)
		s.setStateLocked(StateLocationDenied)
		return nil
	}
	metrics.GeofenceChecks.WithLabelValues("verified").Inc()
	s.log.Info("location verified", "distance_m", result.DistanceMeters, "enrolled", prepared.Snapshot().Matchable(s.opts.Matcher.Dim))
	s.setStateLocked(StateArmed)

	if action != "" {
		s.armLocked(action)
	}
	return nil
}

// fail moves a starting session to Error, unless it was stopped meanwhile.
func (s *Session) fail(gen uint64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.message = message
	s.setStateLocked(StateError)
	s.log.Warn("session start failed", "reason", message)
}

// Arm starts the sample loop for action. Only valid from Armed.
func (s *Session) Arm(action Action) error {
	if _, err := ParseAction(string(action)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateArmed:
		s.armLocked(action)
		return nil
	case s.state.busy() || s.state == StateCooldown:
		return fmt.Errorf("%w: session is %s", ErrBusy, s.state)
	case s.state == StateLocationDenied:
		s.setMessageLocked(MessageNotAtLocation)
		return ErrLocationDenied
	default:
		return fmt.Errorf("%w: session is %s", ErrNotArmed, s.state)
	}
}

func (s *Session) armLocked(action Action) {
	s.gen++
	gen := s.gen
	s.action = action
	s.message = ""
	s.setStateLocked(StateScanning)

	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	stream := s.stream
	matcher := s.matcher
	// Frames captured before the arm belong to the previous scan.
	if d, ok := stream.(camera.Drainer); ok {
		d.Drain()
	}

	s.wg.Add(1)
	go s.scanLoop(ctx, gen, stream, matcher, action)
}

// scanLoop samples frames strictly one after another until a match is
// submitted or the generation changes.
func (s *Session) scanLoop(ctx context.Context, gen uint64, stream camera.Stream, matcher *facematch.Prepared, action Action) {
	defer s.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := stream.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, camera.ErrClosed) {
				return
			}
			metrics.FramesProcessed.WithLabelValues(metrics.OutcomeFrameError).Inc()
			s.log.Warn("frame capture failed", "error", err)
			s.pause(ctx)
			continue
		}

		started := time.Now()
		detections, err := s.opts.Extractor.Detect(ctx, frame)
		metrics.ExtractionDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.FramesProcessed.WithLabelValues(metrics.OutcomeExtractionError).Inc()
			s.log.Warn("descriptor extraction failed", "error", err)
			s.pause(ctx)
			continue
		}

		if len(detections) == 0 {
			metrics.FramesProcessed.WithLabelValues(metrics.OutcomeNoFace).Inc()
			if !s.current(gen) {
				return
			}
			s.pause(ctx)
			continue
		}

		result := matcher.Match(detections[0].Descriptor)

		s.mu.Lock()
		if s.gen != gen || s.state != StateScanning {
			s.mu.Unlock()
			return
		}
		if !result.Matched {
			metrics.FramesProcessed.WithLabelValues(metrics.OutcomeNoMatch).Inc()
			s.setMessageLocked(MessageNotRecognized)
			s.mu.Unlock()
			s.pause(ctx)
			continue
		}

		// Leaving Scanning here is what keeps submissions to one per match.
		metrics.FramesProcessed.WithLabelValues(metrics.OutcomeMatch).Inc()
		metrics.MatchDistance.Observe(result.Distance)
		rec := *result.Record
		s.message = ""
		s.setStateLocked(StateMatchFound)
		s.emitLocked(Event{Type: EventMatch, EmployeeID: rec.EmployeeID, Name: rec.DisplayName, Distance: result.Distance})
		event := AttendanceEvent{EmployeeID: rec.EmployeeID, Action: action, SubmittedAt: s.opts.Now()}
		s.setStateLocked(StateSubmitting)
		s.mu.Unlock()

		s.log.Info("face matched", "employee", rec.EmployeeID, "distance", result.Distance, "action", action)
		s.submit(ctx, gen, rec, event)
		return
	}
}

// submit records event and applies the outcome if the session is still on
// generation gen. The request is not cancelled by Stop, only its result is
// discarded, so a ledger write is never left half-known.
func (s *Session) submit(ctx context.Context, gen uint64, rec facematch.Record, event AttendanceEvent) {
	receipt, err := s.opts.Submitter.Record(context.WithoutCancel(ctx), event)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.log.Info("discarding submission result of stopped scan", "employee", rec.EmployeeID, "error", err)
		return
	}

	if err != nil || !receipt.Success {
		msg := submissionMessage(receipt, err)
		metrics.Submissions.WithLabelValues(string(event.Action), "rejected").Inc()
		s.log.Warn("attendance submission failed", "employee", rec.EmployeeID, "action", event.Action, "reason", msg, "error", err)
		s.message = msg
		s.setStateLocked(StateArmed)
		s.mu.Unlock()
		return
	}

	metrics.Submissions.WithLabelValues(string(event.Action), "accepted").Inc()
	s.last = &ScannedEmployee{EmployeeID: rec.EmployeeID, Name: rec.DisplayName, Action: event.Action, At: event.SubmittedAt}
	s.message = fmt.Sprintf("%s, %s! %s", event.Action.greeting(), rec.DisplayName, receipt.Message)
	s.setStateLocked(StateCooldown)
	s.emitLocked(Event{Type: EventSubmitted, EmployeeID: rec.EmployeeID, Name: rec.DisplayName})
	s.mu.Unlock()

	timer := time.NewTimer(s.opts.Cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.state == StateCooldown {
		s.message = ""
		s.setStateLocked(StateArmed)
	}
}

func submissionMessage(receipt Receipt, err error) string {
	var bre *BusinessRuleError
	switch {
	case errors.As(err, &bre):
		return bre.Reason
	case err != nil:
		return MessageSubmitFallback
	case receipt.Message != "":
		return receipt.Message
	default:
		return MessageSubmitFallback
	}
}

// current reports whether gen is still the active scan.
func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.state == StateScanning
}

func (s *Session) pause(ctx context.Context) {
	if s.opts.SampleInterval <= 0 {
		return
	}
	timer := time.NewTimer(s.opts.SampleInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Stop cancels scanning, releases the camera and returns to Idle. It is
// safe to call from any state and any number of times.
func (s *Session) Stop() {
	s.mu.Lock()
	stream := s.stopLocked()
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			s.log.Warn("failed to release camera", "error", err)
		}
	}
}

// stopLocked resets the session and hands back the stream to close.
func (s *Session) stopLocked() camera.Stream {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	stream := s.stream
	s.stream = nil
	s.matcher = nil
	s.location = nil
	s.locMsg = ""
	s.message = ""
	if s.state != StateIdle && s.state != StateStopped {
		s.setStateLocked(StateIdle)
	}
	return stream
}

// Close stops the session for good and waits for its loop to exit or ctx
// to expire.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	var stream camera.Stream
	if !s.closed {
		stream = s.stopLocked()
		s.closed = true
		s.setStateLocked(StateStopped)
	}
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			s.log.Warn("failed to release camera", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.emitLocked(Event{Type: EventState, Message: s.message})
}

func (s *Session) setMessageLocked(message string) {
	s.message = message
	s.emitLocked(Event{Type: EventFeedback, Message: message})
}

func (s *Session) emitLocked(e Event) {
	if s.opts.OnEvent == nil {
		return
	}
	e.SessionID = s.opts.ID
	e.State = s.state
	e.At = s.opts.Now()
	s.opts.OnEvent(e)
}
