package pcm

// Result is the discriminated code every fallible operation in the library
// reports failures with. Result implements error; success is represented by
// a nil error rather than a success constant, so call sites read naturally:
//
//	if err := dev.Start(); errors.Is(err, pcm.ResultDeviceAlreadyStarted) { ... }
type Result int

const (
	ResultError Result = iota + 1

	// Argument errors.
	ResultInvalidArgs
	ResultInvalidDeviceConfig

	// Resource errors.
	ResultOutOfMemory
	ResultNoBackend
	ResultNoDevice
	ResultAPINotFound
	ResultAccessDenied

	// State errors.
	ResultDeviceNotInitialized
	ResultDeviceBusy
	ResultDeviceAlreadyStarted
	ResultDeviceAlreadyStarting
	ResultDeviceAlreadyStopped
	ResultDeviceAlreadyStopping

	// I/O errors.
	ResultFailedToReadDataFromClient
	ResultFailedToSendDataToClient
	ResultFailedToReadDataFromDevice
	ResultFailedToSendDataToDevice
	ResultFailedToMapDeviceBuffer
	ResultFailedToOpenBackendDevice
	ResultFailedToStartBackendDevice
	ResultFailedToStopBackendDevice

	// Setup errors.
	ResultFormatNotSupported
	ResultFailedToInitBackend
	ResultFailedToCreateMutex
	ResultFailedToCreateEvent
	ResultFailedToCreateThread
)

var resultText = map[Result]string{
	ResultError:                      "generic error",
	ResultInvalidArgs:                "invalid arguments",
	ResultInvalidDeviceConfig:        "invalid device config",
	ResultOutOfMemory:                "out of memory",
	ResultNoBackend:                  "no backend available",
	ResultNoDevice:                   "no such device",
	ResultAPINotFound:                "backend API not found",
	ResultAccessDenied:               "access denied",
	ResultDeviceNotInitialized:       "device not initialized",
	ResultDeviceBusy:                 "device busy",
	ResultDeviceAlreadyStarted:       "device already started",
	ResultDeviceAlreadyStarting:      "device already starting",
	ResultDeviceAlreadyStopped:       "device already stopped",
	ResultDeviceAlreadyStopping:      "device already stopping",
	ResultFailedToReadDataFromClient: "failed to read data from client",
	ResultFailedToSendDataToClient:   "failed to send data to client",
	ResultFailedToReadDataFromDevice: "failed to read data from device",
	ResultFailedToSendDataToDevice:   "failed to send data to device",
	ResultFailedToMapDeviceBuffer:    "failed to map device buffer",
	ResultFailedToOpenBackendDevice:  "failed to open backend device",
	ResultFailedToStartBackendDevice: "failed to start backend device",
	ResultFailedToStopBackendDevice:  "failed to stop backend device",
	ResultFormatNotSupported:         "format not supported",
	ResultFailedToInitBackend:        "failed to initialize backend",
	ResultFailedToCreateMutex:        "failed to create mutex",
	ResultFailedToCreateEvent:        "failed to create event",
	ResultFailedToCreateThread:       "failed to create thread",
}

func (r Result) Error() string {
	if s, ok := resultText[r]; ok {
		return s
	}
	return "unknown error"
}
