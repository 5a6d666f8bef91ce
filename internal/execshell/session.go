package execshell

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultStopPollInterval is the liveness polling period used after a termination signal.
	DefaultStopPollInterval = 50 * time.Millisecond
	// DefaultStopGracePeriod bounds how long a stop waits before escalating to a forceful kill.
	DefaultStopGracePeriod = 800 * time.Millisecond
	// DefaultDrainLinger is how long drains may keep reading after a stopped child exits.
	DefaultDrainLinger = 200 * time.Millisecond
)

const (
	runStartedMessageConstant         = "process started"
	runCompletedMessageConstant       = "process exited"
	runStartFailedMessageConstant     = "process start failed"
	runRejectedMessageConstant        = "run request rejected"
	drainStoppedMessageConstant       = "stream drain stopped"
	stopRequestedMessageConstant      = "stop requested"
	stopIdleMessageConstant           = "stop requested with no process running"
	stopAlreadyClaimedMessageConstant = "stop already in progress"
	stopEscalatedMessageConstant      = "process ignored graceful termination; killing"
	stopSignalFailedMessageConstant   = "unable to signal process"
	stopAlreadyExitedMessageConstant  = "process already exited"
	contextCancelledMessageConstant   = "run context cancelled; stopping process"
	logFieldRunIDConstant             = "run_id"
	logFieldCommandConstant           = "command"
	logFieldProcessIDConstant         = "pid"
	logFieldExitCodeConstant          = "exit_code"
	logFieldStreamConstant            = "stream"
	logFieldOutcomeConstant           = "outcome"
	logFieldStoppedConstant           = "stopped"
	logFieldElevatedConstant          = "elevated"
	standardOutputStreamNameConstant  = "stdout"
	standardErrorStreamNameConstant   = "stderr"
)

// PathResolver maps a binary name and optional directory hint to an invocation path.
type PathResolver interface {
	Resolve(pathHint string, binaryName string) string
}

// StopPolicy bounds the graceful-then-forceful termination sequence.
type StopPolicy struct {
	PollInterval time.Duration
	GracePeriod  time.Duration
	DrainLinger  time.Duration
}

// DefaultStopPolicy returns the standard termination timings.
func DefaultStopPolicy() StopPolicy {
	return StopPolicy{
		PollInterval: DefaultStopPollInterval,
		GracePeriod:  DefaultStopGracePeriod,
		DrainLinger:  DefaultDrainLinger,
	}
}

func (policy StopPolicy) sanitize() StopPolicy {
	defaults := DefaultStopPolicy()
	if policy.PollInterval <= 0 {
		policy.PollInterval = defaults.PollInterval
	}
	if policy.GracePeriod <= 0 {
		policy.GracePeriod = defaults.GracePeriod
	}
	if policy.DrainLinger < 0 {
		policy.DrainLinger = defaults.DrainLinger
	}
	return policy
}

// SessionConfiguration carries optional session collaborators and tuning.
type SessionConfiguration struct {
	ElevationBinary string
	StopPolicy      StopPolicy
	Observer        CommandEventObserver
}

// Session owns at most one externally visible child process at a time.
type Session struct {
	logger          *zap.Logger
	resolver        PathResolver
	observer        CommandEventObserver
	elevationBinary string
	stopPolicy      StopPolicy

	slotMutex sync.Mutex
	current   *runningProcess
}

// NewSession constructs a Session backed by the supplied resolver.
func NewSession(logger *zap.Logger, resolver PathResolver, configuration SessionConfiguration) (*Session, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if resolver == nil {
		return nil, ErrResolverNotConfigured
	}

	observer := configuration.Observer
	if observer == nil {
		observer = noopCommandEventObserver{}
	}

	elevationBinary := strings.TrimSpace(configuration.ElevationBinary)
	if len(elevationBinary) == 0 {
		elevationBinary = DefaultElevationBinary
	}

	return &Session{
		logger:          logger,
		resolver:        resolver,
		observer:        observer,
		elevationBinary: elevationBinary,
		stopPolicy:      configuration.StopPolicy.sanitize(),
	}, nil
}

// Running reports whether a child process currently occupies the session slot.
func (session *Session) Running() bool {
	return session.currentProcess() != nil
}

// Submit performs Run on a background goroutine and delivers exactly one outcome.
func (session *Session) Submit(executionContext context.Context, request RunRequest) <-chan RunOutcome {
	outcomes := make(chan RunOutcome, 1)
	go func() {
		defer close(outcomes)
		result, runError := session.Run(executionContext, request)
		outcomes <- RunOutcome{Result: result, Error: runError}
	}()
	return outcomes
}

// Run starts the requested executable, drains both output streams, waits for
// exit, and returns the collected result.
//
// Validation failures return ArgumentError and start failures return
// ExecutionError. Once the child has started every failure is absorbed and a
// result is always produced. Cancelling executionContext stops the child the
// same way Stop does.
func (session *Session) Run(executionContext context.Context, request RunRequest) (RunResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	binaryName := strings.TrimSpace(request.BinaryName)
	if len(binaryName) == 0 {
		session.logger.Warn(runRejectedMessageConstant, zap.Error(ErrBinaryNameRequired))
		return RunResult{}, ArgumentError{Cause: ErrBinaryNameRequired}
	}

	workingDirectory := strings.TrimSpace(request.WorkingDirectory)
	executablePath := session.resolver.Resolve(workingDirectory, binaryName)
	command := BuildCommand(executablePath, request.Arguments, request.UseElevation, session.elevationBinary)
	runID := uuid.NewString()

	if contextError := executionContext.Err(); contextError != nil {
		return RunResult{}, session.reportStartFailure(runID, command, contextError)
	}

	child, launchError := launchProcess(command, workingDirectory)
	if launchError != nil {
		return RunResult{}, session.reportStartFailure(runID, command, launchError)
	}
	child.runID = runID

	session.publish(child)
	session.logger.Info(
		runStartedMessageConstant,
		zap.String(logFieldRunIDConstant, runID),
		zap.String(logFieldCommandConstant, command.DisplayCommand),
		zap.Int(logFieldProcessIDConstant, child.pid()),
		zap.Bool(logFieldElevatedConstant, command.Elevated),
	)
	session.observer.CommandStarted(command)

	runFinished := make(chan struct{})
	go session.stopOnCancellation(executionContext, child, runFinished)

	var standardOutput, standardError outputBuffer
	var joinGroup errgroup.Group
	joinGroup.Go(func() error {
		session.logDrainOutcome(child, standardOutputStreamNameConstant, drainStream(child.standardOutputReader, &standardOutput))
		return nil
	})
	joinGroup.Go(func() error {
		session.logDrainOutcome(child, standardErrorStreamNameConstant, drainStream(child.standardErrorReader, &standardError))
		return nil
	})
	joinGroup.Go(func() error {
		child.wait()
		return nil
	})
	_ = joinGroup.Wait()

	close(runFinished)
	child.closeReaders()
	session.clearIfCurrent(child)

	result := RunResult{
		RunID:          runID,
		StandardOutput: standardOutput.String(),
		StandardError:  standardError.String(),
		ExitCode:       child.exitCode(),
		DisplayCommand: command.DisplayCommand,
		Stopped:        child.terminationSent.Load(),
	}

	session.logger.Info(
		runCompletedMessageConstant,
		zap.String(logFieldRunIDConstant, runID),
		zap.String(logFieldCommandConstant, command.DisplayCommand),
		zap.Int(logFieldExitCodeConstant, result.ExitCode),
		zap.Bool(logFieldStoppedConstant, result.Stopped),
	)
	session.observer.CommandCompleted(command, result)

	return result, nil
}

// Stop terminates the current child, if any: a graceful signal, bounded
// liveness polling, then a forceful kill. Only one of several concurrent
// callers performs the termination; the others report false.
func (session *Session) Stop(executionContext context.Context) StopResult {
	if executionContext == nil {
		executionContext = context.Background()
	}

	child := session.currentProcess()
	if child == nil {
		session.logger.Debug(stopIdleMessageConstant)
		return StopResult{Stopped: false}
	}

	return StopResult{Stopped: session.terminate(executionContext, child)}
}

func (session *Session) terminate(executionContext context.Context, child *runningProcess) bool {
	if !child.stopClaimed.CompareAndSwap(false, true) {
		session.logger.Debug(stopAlreadyClaimedMessageConstant, zap.String(logFieldRunIDConstant, child.runID))
		return false
	}
	if !child.alive() {
		session.logger.Debug(stopAlreadyExitedMessageConstant, zap.String(logFieldRunIDConstant, child.runID))
		session.releaseStop(child)
		return false
	}

	session.logger.Info(
		stopRequestedMessageConstant,
		zap.String(logFieldRunIDConstant, child.runID),
		zap.String(logFieldCommandConstant, child.command.DisplayCommand),
		zap.Int(logFieldProcessIDConstant, child.pid()),
	)
	session.observer.CommandStopRequested(child.command)

	child.terminationSent.Store(true)
	gracefulError := signalGraceful(child.process())
	switch {
	case errors.Is(gracefulError, os.ErrProcessDone):
		session.logger.Debug(stopAlreadyExitedMessageConstant, zap.String(logFieldRunIDConstant, child.runID))
		session.releaseStop(child)
		return false
	case gracefulError != nil:
		session.logger.Debug(stopSignalFailedMessageConstant, zap.String(logFieldRunIDConstant, child.runID), zap.Error(gracefulError))
	default:
		if session.awaitExit(executionContext, child) {
			session.finishTermination(child)
			return true
		}
	}

	session.logger.Info(stopEscalatedMessageConstant, zap.String(logFieldRunIDConstant, child.runID))
	forcefulError := signalForceful(child.process())
	if forcefulError != nil && !errors.Is(forcefulError, os.ErrProcessDone) {
		session.logger.Debug(stopSignalFailedMessageConstant, zap.String(logFieldRunIDConstant, child.runID), zap.Error(forcefulError))
		if gracefulError != nil {
			session.releaseStop(child)
			return false
		}
	}

	session.awaitExit(context.Background(), child)
	session.finishTermination(child)
	return true
}

// awaitExit polls the child's liveness until it exits, the grace period
// elapses, or the context is cancelled. It reports whether the child exited.
func (session *Session) awaitExit(executionContext context.Context, child *runningProcess) bool {
	pollTicker := time.NewTicker(session.stopPolicy.PollInterval)
	defer pollTicker.Stop()

	var waited time.Duration
	for child.alive() && waited < session.stopPolicy.GracePeriod {
		select {
		case <-executionContext.Done():
			return !child.alive()
		case <-pollTicker.C:
			waited += session.stopPolicy.PollInterval
		}
	}
	return !child.alive()
}

// releaseStop undoes a claim that delivered no signal so a later stop can
// retry. Drains still end after the linger once the child has exited.
func (session *Session) releaseStop(child *runningProcess) {
	child.terminationSent.Store(false)
	child.scheduleReaderClose(session.stopPolicy.DrainLinger)
	child.stopClaimed.Store(false)
}

func (session *Session) finishTermination(child *runningProcess) {
	child.scheduleReaderClose(session.stopPolicy.DrainLinger)
	if !child.alive() {
		session.clearIfCurrent(child)
	}
}

func (session *Session) stopOnCancellation(executionContext context.Context, child *runningProcess, runFinished <-chan struct{}) {
	select {
	case <-runFinished:
	case <-executionContext.Done():
		session.logger.Info(contextCancelledMessageConstant, zap.String(logFieldRunIDConstant, child.runID))
		session.terminate(context.Background(), child)
	}
}

func (session *Session) reportStartFailure(runID string, command ResolvedCommand, failure error) error {
	session.logger.Error(
		runStartFailedMessageConstant,
		zap.String(logFieldRunIDConstant, runID),
		zap.String(logFieldCommandConstant, command.DisplayCommand),
		zap.Error(failure),
	)
	session.observer.CommandExecutionFailed(command, failure)
	return ExecutionError{DisplayCommand: command.DisplayCommand, Cause: failure}
}

func (session *Session) logDrainOutcome(child *runningProcess, streamName string, outcome readOutcome) {
	if outcome.kind == readOutcomeEndOfStream {
		return
	}
	session.logger.Debug(
		drainStoppedMessageConstant,
		zap.String(logFieldRunIDConstant, child.runID),
		zap.String(logFieldStreamConstant, streamName),
		zap.Stringer(logFieldOutcomeConstant, outcome.kind),
		zap.Error(outcome.err),
	)
}

func (session *Session) publish(child *runningProcess) {
	session.slotMutex.Lock()
	defer session.slotMutex.Unlock()
	session.current = child
}

func (session *Session) currentProcess() *runningProcess {
	session.slotMutex.Lock()
	defer session.slotMutex.Unlock()
	return session.current
}

func (session *Session) clearIfCurrent(child *runningProcess) {
	session.slotMutex.Lock()
	defer session.slotMutex.Unlock()
	if session.current == child {
		session.current = nil
	}
}
