package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish the link to the driver under test.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// or Client without a transport.
	//
	// This can occur if the Dialer returned a nil Transport or if the Modem
	// was not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrLoopRunning is returned when Loop is called while another call to
	// Loop is still active.
	ErrLoopRunning = errors.New("loop already running")

	// ErrCommandFailed is returned by Client.Exec when the modem answers
	// with a final result other than OK.
	ErrCommandFailed = errors.New("command failed")

	// ErrNoResponse is returned by Client.Exec when no final result arrives
	// within the reply timeout.
	//
	// The emulator is silent for lines it dropped as too long, so this is
	// also the expected outcome of sending an over-long command.
	ErrNoResponse = errors.New("no response received")
)
